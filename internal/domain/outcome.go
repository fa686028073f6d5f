package domain

import (
	"github.com/totegamma/mediafetch"
)

// FetchOutcome is the resolution of one resource request.
type FetchOutcome struct {
	SourceURL    string
	Destination  Destination
	Status       OutcomeStatus
	Checksum     string
	LastModified int64
	Err          error
}

func (o FetchOutcome) OK() bool {
	return o.Status == OutcomeCached || o.Status == OutcomeFetched
}

func (o FetchOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func (o FetchOutcome) FileResult() mediafetch.FileResult {
	return mediafetch.FileResult{
		Container: o.Destination.Bucket,
		Key:       o.Destination.Key,
		Checksum:  o.Checksum,
		SourceURL: o.SourceURL,
	}
}

// ItemRecord is the persisted view of a processed item.
type ItemRecord struct {
	ID        string          `json:"id"`
	Item      mediafetch.Item `json:"item"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Fetches   []FetchLog      `json:"fetches"`
}

// FetchLog records one resource's outcome, failures included.
type FetchLog struct {
	SourceURL string `json:"sourceUrl"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Checksum  string `json:"checksum,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

func NewFetchLog(o FetchOutcome) FetchLog {
	return FetchLog{
		SourceURL: o.SourceURL,
		Bucket:    o.Destination.Bucket,
		Key:       o.Destination.Key,
		Checksum:  o.Checksum,
		Status:    o.Status.String(),
		Reason:    o.Reason(),
	}
}
