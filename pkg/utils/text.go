// Package utils holds small helpers shared across the service: logging
// construction, vector math, and text previews.
package utils

// Truncate shortens s to at most max runes, appending "..." when anything was
// cut. Rune-based so multi-byte scanned text is never split mid-character.
// Non-positive max returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
