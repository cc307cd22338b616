package domain

// HistoryEntry is a previously loaded file. Content is the JSON text handed to
// the extractor, never the projected form; reloading always re-extracts.
type HistoryEntry struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
	Digest    string `json:"digest,omitempty"`
}
