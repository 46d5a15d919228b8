package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"findocs/internal/domain"
)

// DecodeModelOutput parses a model's raw text answer into a typed
// extraction result. Code fences are tolerated even though the prompt
// forbids them; models add them anyway.
func DecodeModelOutput(text string) (domain.ExtractedData, error) {
	cleaned := stripCodeFences(text)

	data, err := domain.UnmarshalExtractedData(json.RawMessage(cleaned))
	if err != nil {
		return nil, fmt.Errorf("parsing model JSON output: %w (raw: %s)", err, truncate(cleaned, 500))
	}
	return data, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
