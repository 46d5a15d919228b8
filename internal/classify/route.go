package classify

// Strategy is the ordering of extraction attempts for a PDF.
type Strategy string

const (
	// StrategyTextFirst attempts cheap local text extraction before the
	// remote vision-capable model.
	StrategyTextFirst Strategy = "text_first"
	// StrategyVisionRequired goes straight to the remote vision model.
	StrategyVisionRequired Strategy = "vision_required"
)

// TextFirstSizeLimit is the byte-size boundary between the two strategies.
// Small PDFs are assumed text-native and cheap to parse locally; at or above
// the limit the document is assumed scan-heavy or layout-complex and routed
// to the vision model directly.
const TextFirstSizeLimit = 100_000

// Route picks the extraction strategy for a PDF of the given byte size.
// The choice only orders the attempts; the caller keeps the other path as a
// fallback, since text extraction can succeed above the limit and fail
// below it.
func Route(size int64) Strategy {
	if size < TextFirstSizeLimit {
		return StrategyTextFirst
	}
	return StrategyVisionRequired
}
