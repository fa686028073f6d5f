package domain

import (
	"errors"
	"fmt"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ErrAuth marks missing or unusable store credentials.
var ErrAuth = errors.New("store credentials missing")

// ErrStageDisabled is reported when the fetch stage is switched off.
var ErrStageDisabled = errors.New("fetch stage disabled")

// ConfigError is fatal and surfaces once at startup.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Setting, e.Err)
	}
	return fmt.Sprintf("config: %s not specified", e.Setting)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InvalidRuleOutputError is returned when a custom key rule yields no key.
type InvalidRuleOutputError struct {
	URL  string
	Rule string
}

func (e *InvalidRuleOutputError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("key rule %q returned no key for %s", e.Rule, e.URL)
	}
	return fmt.Sprintf("key rule returned no key for %s", e.URL)
}

// FetchError covers every way a fetch trigger can fail.
type FetchError struct {
	URL         string
	Destination Destination
	StatusCode  int
	Message     string
	Cause       error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s into %s: %s", e.URL, e.Destination, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// StatError is a stat failure other than "not found". It must never be read
// as a cache miss.
type StatError struct {
	Destination Destination
	StatusCode  int
	Cause       error
}

func (e *StatError) Error() string {
	msg := fmt.Sprintf("stat %s failed", e.Destination)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *StatError) Unwrap() error {
	return e.Cause
}
