package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lu4p/cat/rtftxt"
)

// extractRTF extracts text from RTF bytes.
func extractRTF(content []byte) (string, error) {
	buf, err := rtftxt.Text(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
