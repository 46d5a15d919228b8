// Package pdftext extracts raw text from PDF byte buffers without invoking
// any AI model. Extraction failure is a structured result, never a panic
// that aborts the pipeline.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// MaxPDFBytes is the safety limit on buffers accepted for local extraction.
const MaxPDFBytes = 50 * 1024 * 1024

// Result holds the outcome of one text extraction call. It is ephemeral:
// consumed by the routing/mapping stages and discarded.
type Result struct {
	Success   bool
	Text      string
	PageTexts []string
	PageCount int
	Duration  time.Duration
	Error     string
}

// Extract pulls the page count, full text, and a per-page breakdown out of
// a PDF buffer. A page that fails to decode yields an empty segment while
// the remaining pages keep going. An unparseable or oversized buffer
// produces Success=false with the reason in Error.
func Extract(buf []byte) *Result {
	start := time.Now()

	res := &Result{}
	fail := func(msg string) *Result {
		res.Success = false
		res.Error = msg
		res.Duration = time.Since(start)
		return res
	}

	if len(buf) == 0 {
		return fail("empty buffer")
	}
	if len(buf) > MaxPDFBytes {
		return fail(fmt.Sprintf("buffer exceeds %d byte safety limit", MaxPDFBytes))
	}

	reader, err := newReader(buf)
	if err != nil {
		return fail(fmt.Sprintf("invalid or corrupt PDF: %v", err))
	}

	res.PageCount = reader.NumPage()
	res.PageTexts = make([]string, 0, res.PageCount)

	var full strings.Builder
	for i := 1; i <= res.PageCount; i++ {
		text := extractPage(reader, i)
		res.PageTexts = append(res.PageTexts, text)
		if text == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString("\n\n")
		}
		full.WriteString(text)
	}

	res.Text = full.String()
	res.Success = true
	res.Duration = time.Since(start)
	return res
}

// newReader opens the buffer, converting library panics on malformed input
// into errors.
func newReader(buf []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
}

// extractPage returns the plain text of one page, or "" when the page is
// empty or fails to decode.
func extractPage(r *pdf.Reader, pageIndex int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
		}
	}()

	p := r.Page(pageIndex)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
