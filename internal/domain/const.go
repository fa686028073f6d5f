package domain

import "time"

const (
	DefaultURLsField   = "file_urls"
	DefaultResultField = "files"
	DefaultKeyGenField = "file_keygen"
	ItemIDField        = "id"
)

const (
	DefaultConcurrency = 16
	DefaultStatTTL     = 10 * time.Minute
)

type OutcomeStatus int

const (
	OutcomeUnknown OutcomeStatus = iota
	OutcomeCached
	OutcomeFetched
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeCached:
		return "cached"
	case OutcomeFetched:
		return "fetched"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "error"
	}
}
