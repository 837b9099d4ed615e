package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// odContentPath is the path to the main content inside an OpenDocument zip.
const odContentPath = "content.xml"

// odTextTags match OpenDocument text elements (with optional attributes). We use separate patterns
// so opening and closing tags match (e.g. <text:p>...</text:p> only).
var (
	odTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// extractOpenDoc extracts text from OpenDocument bytes (.odt text documents and
// .odp presentations share the same container: a ZIP holding content.xml).
// We extract all text from text:p, text:span, and text:h elements.
func extractOpenDoc(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: not a zip: %w", err)
	}
	var contentXML []byte
	for _, f := range zr.File {
		if f.Name != odContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract OpenDocument: open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return "", fmt.Errorf("extract OpenDocument: read %s: %w", f.Name, err)
		}
		_ = rc.Close()
		contentXML = buf.Bytes()
		break
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", odContentPath)
	}
	s := string(contentXML)
	var b strings.Builder
	appendMatches := func(parts [][]string) {
		for _, p := range parts {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(p[1]))
		}
	}
	appendMatches(odTextP.FindAllStringSubmatch(s, -1))
	appendMatches(odTextSpan.FindAllStringSubmatch(s, -1))
	appendMatches(odTextH.FindAllStringSubmatch(s, -1))
	return strings.TrimSpace(b.String()), nil
}
