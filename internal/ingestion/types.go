// Package ingestion defines the corpus records consumed by the index build
// and the documents held by the content store.
package ingestion

// Record is one corpus entry as supplied to the build. Content is raw text
// that the configured normalizer reduces to a term sequence.
type Record struct {
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Document is the immutable content-store entry for a record. TotalTerms is
// the length of the document's normalized term sequence.
type Document struct {
	DocID      string `json:"doc_id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Content    string `json:"content"`
	TotalTerms int    `json:"total_terms"`
}
