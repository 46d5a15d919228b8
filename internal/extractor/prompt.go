package extractor

import (
	"fmt"

	"findocs/internal/domain"
)

// BuildExtractionPrompt returns the structured-extraction prompt for the
// given schema hint. The model must answer with the tagged envelope
// {"schema": ..., "data": ...} and may select a different schema than the
// hint when the document clearly belongs elsewhere.
func BuildExtractionPrompt(hint domain.SchemaKind, tabular bool) string {
	tableNote := ""
	if tabular {
		tableNote = "\n- The content appears to be tabular. Prefer row-oriented, line-item extraction and keep every row."
	}

	return fmt.Sprintf(`You are a financial document data extraction assistant. Extract structured data from the provided document.

IMPORTANT INSTRUCTIONS:
- The document was classified as %q, but this is a hint. If the content clearly matches a different schema, use that schema instead.
- Extract EVERY line item. Do not skip, summarize, or omit entries.
- All monetary amounts are plain numbers with no currency symbols or thousands separators.%s

Return ONLY valid JSON with no markdown formatting, no code fences, no explanation.

The top-level object has two keys: "schema" and "data".
"schema" is one of "profit_loss", "payroll", or "generic".

For "profit_loss", "data" is:
{"period": "", "revenue_lines": [{"label": "", "amount": 0}], "expenses": [{"category": "", "amount": 0}], "total_revenue": 0, "total_expenses": 0, "net_income": 0}

For "payroll", "data" is:
{"pay_period": "", "entries": [{"employee": "", "hours": 0, "gross_pay": 0, "net_pay": 0}], "total_gross": 0, "total_net": 0}

For "generic", "data" is:
{"fields": {"key": "value"}, "line_items": [{"label": "", "value": "", "amount": 0}]}`, hint, tableNote)
}
