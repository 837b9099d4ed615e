package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

const (
	// Default location of the document body inside a .docx package.
	docxBodyPath = "word/document.xml"

	ooxmlTypesPath = "[Content_Types].xml"
	docxBodyCtype  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// runText matches the inner text of <w:t> run elements, with or without
// attributes such as xml:space="preserve".
var runText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// Override elements in [Content_Types].xml may list PartName and ContentType
// in either order.
var (
	bodyOverridePN = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxBodyCtype) + `"`)
	bodyOverrideCT = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxBodyCtype) + `"[^>]+PartName="([^"]+)"`)
)

// docxBodyPart resolves the document body path from [Content_Types].xml.
// Returns the path without leading slash, or empty when unresolvable.
func docxBodyPart(zr *zip.Reader) string {
	content, err := readZipFile(zr, ooxmlTypesPath)
	if err != nil {
		return ""
	}
	if m := bodyOverridePN.FindSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	if m := bodyOverrideCT.FindSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	return ""
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%s not found", name)
}

// extractDOCX pulls text out of a .docx package. Runs within a paragraph are
// joined with spaces and paragraphs are separated by blank lines, so the
// chunker's paragraph splitting still sees document structure. lu4p/cat is not
// used here: its <w:p> regex does not tolerate attributes, so real-world
// documents (e.g. <w:p w:rsidR="...">) come back empty.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	bodyPath := docxBodyPart(zr)
	if bodyPath == "" {
		bodyPath = docxBodyPath
	}

	bodyXML, err := readZipFile(zr, bodyPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var b strings.Builder
	for _, para := range strings.Split(string(bodyXML), "</w:p>") {
		runs := runText.FindAllStringSubmatch(para, -1)
		if len(runs) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		for i, r := range runs {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(r[1]))
		}
	}
	return strings.TrimSpace(b.String()), nil
}
