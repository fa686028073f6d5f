package mediafetch

import (
	"time"
)

const (
	EventItemCompleted string = "item.completed"
	ItemsChannel       string = "mediafetch:items"
)

// Item is a crawled record as it travels through the pipeline.
type Item map[string]any

// FileResult is one entry of an item's result field.
type FileResult struct {
	Container string `json:"container"`
	Key       string `json:"key"`
	Checksum  string `json:"checksum"`
	SourceURL string `json:"source_url"`
}

// Event is published once per processed item.
type Event struct {
	Type      string       `json:"type"`
	ItemID    string       `json:"itemId"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
	Timestamp time.Time    `json:"timestamp"`
}

// Stat mirrors the store's object metadata response.
type Stat struct {
	Hash     string `json:"hash"`
	Fsize    int64  `json:"fsize"`
	MimeType string `json:"mimeType"`
	PutTime  int64  `json:"putTime"`
}

// FetchResult mirrors the store's fetch response.
type FetchResult struct {
	Hash     string `json:"hash"`
	Key      string `json:"key"`
	Fsize    int64  `json:"fsize"`
	MimeType string `json:"mimeType"`
}

// LastModified converts PutTime (100ns units) to wall time.
func (s Stat) LastModified() time.Time {
	return time.Unix(s.PutTime/10000000, 0).UTC()
}
