package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF extracts text from PDF bytes. Each page is prefixed with a
// "--- Page N ---" marker so downstream chunking can split on page boundaries
// and snippets can be attributed to a source page.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i+1, err)
		}
		fmt.Fprintf(&buf, "--- Page %d ---\n", i+1)
		buf.WriteString(text)
		if i < numPages-1 {
			buf.WriteString("\n\n")
		}
	}
	return buf.String(), nil
}
