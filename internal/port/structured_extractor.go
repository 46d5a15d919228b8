package port

import (
	"context"

	"findocs/internal/domain"
)

// ExtractMode selects how document content is handed to the remote model.
type ExtractMode string

const (
	// ModeText sends locally extracted text (cheap).
	ModeText ExtractMode = "text"
	// ModeVision sends raw file bytes to a vision-capable model (expensive).
	ModeVision ExtractMode = "vision"
)

// ExtractInput carries one structured-extraction request. Exactly one of
// Text (ModeText) or FileBytes (ModeVision) is populated.
type ExtractInput struct {
	Mode        ExtractMode
	Text        string
	FileBytes   []byte
	ContentType string
	SchemaHint  domain.SchemaKind
	Tabular     bool
}

// ExtractOutput is the typed result from the remote extraction capability.
// The effective schema of Data may differ from the request's SchemaHint.
type ExtractOutput struct {
	Data       domain.ExtractedData
	ModelUsed  string
	PromptUsed string
}

// StructuredExtractor abstracts the remote AI extraction capability. The
// caller bounds each call with a context timeout; implementations must
// honor cancellation.
type StructuredExtractor interface {
	Extract(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
}
