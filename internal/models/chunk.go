package models

// Chunk is a bounded-size contiguous slice of a larger text. Ordering by
// Index is significant and must be preserved through processing and merge.
type Chunk struct {
	Index          int    `json:"index"`
	Text           string `json:"text"`
	IsPageBoundary bool   `json:"is_page_boundary"`
	PageNumber     int    `json:"page_number,omitempty"`
}

// EnhancementResult is the output of one LLM enhancement round, possibly
// after a corrective retry.
type EnhancementResult struct {
	Text         string `json:"text"`
	WasCorrected bool   `json:"was_corrected"`
}
