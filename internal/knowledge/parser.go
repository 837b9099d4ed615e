package knowledge

import (
	"regexp"
	"strings"
)

// NoSnippetsSentinel is the phrase the extraction prompt asks the model to
// return when a segment holds nothing relevant to the query.
const NoSnippetsSentinel = "No relevant snippets found in this segment."

// snippetSeparator is the fallback delimiter the prompt offers for
// separating snippets in plain responses.
const snippetSeparator = "---SNIPPET---"

var (
	// snippetBlockRe matches ```snippet fenced blocks in model responses.
	snippetBlockRe = regexp.MustCompile("(?s)```snippet\\s*\\n(.*?)\\n```")
	// snippetPrefixRe strips "Snippet 1:", "Snippet 2." style labels.
	snippetPrefixRe = regexp.MustCompile(`(?i)^snippet\s*\d+\s*[:.-]\s*`)
)

// ParseSnippets extracts snippet texts from a model response.
// Fenced ```snippet blocks are preferred; failing that, the response is split
// on the ---SNIPPET--- separator with label prefixes stripped. A response
// with no recognizable structure is treated as a single snippet (e.g. a
// summary), unless it is the no-snippets sentinel.
func ParseSnippets(response string) []string {
	var snippets []string

	for _, m := range snippetBlockRe.FindAllStringSubmatch(response, -1) {
		if s := strings.TrimSpace(m[1]); s != "" {
			snippets = append(snippets, s)
		}
	}
	if len(snippets) > 0 {
		return snippets
	}

	if strings.Contains(response, snippetSeparator) {
		for _, part := range strings.Split(response, snippetSeparator) {
			s := strings.TrimSpace(part)
			s = snippetPrefixRe.ReplaceAllString(s, "")
			s = strings.TrimSpace(s)
			if s != "" {
				snippets = append(snippets, s)
			}
		}
		if len(snippets) > 0 {
			return snippets
		}
	}

	trimmed := strings.TrimSpace(response)
	if trimmed == "" || strings.Contains(trimmed, NoSnippetsSentinel) {
		return nil
	}
	trimmed = strings.TrimSpace(snippetPrefixRe.ReplaceAllString(trimmed, ""))
	if trimmed == "" {
		return nil
	}
	return []string{trimmed}
}
