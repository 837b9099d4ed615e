package enhance

import (
	"regexp"
	"strings"
)

// Verdict is the Checker's judgement of one LLM response.
type Verdict struct {
	// Cleaned is the response after echo-marker stripping.
	Cleaned string
	// Violation reports that the response breaks the single-task contract
	// and a corrective retry should be issued.
	Violation bool
	// Translated reports that the violation looks like a full-language
	// translation of the input rather than a correction.
	Translated bool
	// EchoStripped reports that an echoed prompt marker was removed.
	EchoStripped bool
}

// metaCommentaryPhrases flags responses that talk about the text instead of
// returning it. Substring matches against the lowercased response.
var metaCommentaryPhrases = []string{
	"this text",
	"the passage",
	"this appears to be",
	"this seems to be",
	"the document",
	"the author",
	"the text is about",
	"it appears that",
	"in this text",
	"in summary",
	"overall,",
	"please provide the input text",
}

// metaCommentaryPrefixes flags conversational preambles at the start of the
// response.
var metaCommentaryPrefixes = []string{
	"i've corrected",
	"here is the corrected",
	"here's the corrected",
	"i understand",
	"okay, here is",
	"certainly",
	"i will follow your instructions",
}

var (
	italianMarkerRe = regexp.MustCompile(`(?i)\b(della|sono|una|questo|nella|degli|alla)\b`)
	englishMarkerRe = regexp.MustCompile(`(?i)\b(the|and|this|is|was)\b`)
	codeFenceEdgeRe = regexp.MustCompile("^\\s*`{0,3}\\s*|\\s*`{0,3}\\s*$")
	correctedHdrRe  = regexp.MustCompile(`(?i)^CORRECTED OUTPUT:\s*\n?`)
)

// Checker classifies LLM responses against the correction contract. The
// heuristics are approximate; thresholds and phrase lists are fields so they
// can be tuned without touching the orchestration loop.
type Checker struct {
	// MinLengthRatio is the response/input length ratio below which the
	// response is treated as a summary rather than a correction.
	MinLengthRatio float64
	// Phrases and Prefixes override the default meta-commentary lists when
	// non-nil.
	Phrases  []string
	Prefixes []string
}

// NewChecker returns a Checker with the default heuristics.
func NewChecker() *Checker {
	return &Checker{MinLengthRatio: 0.8}
}

// Inspect strips echoed prompt markers from response and classifies the
// remainder against the contract for the given original input.
func (c *Checker) Inspect(original, response string) Verdict {
	v := Verdict{Cleaned: response}

	for _, marker := range promptEchoMarkers {
		idx := strings.Index(strings.ToUpper(v.Cleaned), strings.ToUpper(marker))
		if idx < 0 {
			continue
		}
		after := strings.TrimSpace(codeFenceEdgeRe.ReplaceAllString(v.Cleaned[idx+len(marker):], ""))
		if after != "" && after != v.Cleaned {
			v.Cleaned = after
			v.EchoStripped = true
			break
		}
	}

	lower := strings.ToLower(v.Cleaned)

	likelySummary := len(v.Cleaned) > 0 && len(original) > 0 &&
		float64(len(v.Cleaned)) < float64(len(original))*c.MinLengthRatio

	commentary := false
	for _, phrase := range c.phrases() {
		if strings.Contains(lower, phrase) {
			commentary = true
			break
		}
	}
	if !commentary {
		for _, prefix := range c.prefixes() {
			if strings.HasPrefix(lower, prefix) {
				commentary = true
				break
			}
		}
	}

	likelyItalian := italianMarkerRe.MatchString(original)
	mostlyEnglish := englishMarkerRe.MatchString(lower) && !italianMarkerRe.MatchString(lower)
	if likelyItalian && mostlyEnglish {
		v.Translated = true
	}

	if likelySummary || commentary || v.Translated || (v.EchoStripped && v.Cleaned == "") {
		v.Violation = true
	}
	return v
}

func (c *Checker) phrases() []string {
	if c.Phrases != nil {
		return c.Phrases
	}
	return metaCommentaryPhrases
}

func (c *Checker) prefixes() []string {
	if c.Prefixes != nil {
		return c.Prefixes
	}
	return metaCommentaryPrefixes
}

// CleanResponse strips code-fence edges and a leading "CORRECTED OUTPUT:"
// header that stubborn models prepend.
func CleanResponse(response string) string {
	cleaned := strings.TrimSpace(codeFenceEdgeRe.ReplaceAllString(response, ""))
	return strings.TrimSpace(correctedHdrRe.ReplaceAllString(cleaned, ""))
}
