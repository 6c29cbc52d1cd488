// Package extract contains the format-specific raw-text readers the
// pipeline routes to: PDF text layer, office documents, plain text and
// image normalization ahead of OCR.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText extracts the native text layer of a PDF. It returns the raw
// concatenated text without trimming: the caller decides what an
// empty/whitespace-only layer means (likely a scanned document). Pages that
// fail to decode are skipped.
func PDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
