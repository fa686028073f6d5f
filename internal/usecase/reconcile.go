package usecase

import (
	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
)

// ResultSetter lets non-map items receive their file results.
type ResultSetter interface {
	SetFileResults(results []mediafetch.FileResult)
}

// FileResults keeps the successful outcomes, in request order.
func FileResults(outcomes []domain.FetchOutcome) []mediafetch.FileResult {
	results := make([]mediafetch.FileResult, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		results = append(results, o.FileResult())
	}
	return results
}

// Complete writes the results of all of an item's outcomes into its result
// field. The field is rebuilt on every call. Items that are neither maps nor
// ResultSetters are returned untouched.
func Complete(item any, resultField string, outcomes []domain.FetchOutcome) any {
	if resultField == "" {
		resultField = domain.DefaultResultField
	}

	switch v := item.(type) {
	case mediafetch.Item:
		if v == nil {
			return item
		}
		v[resultField] = FileResults(outcomes)
	case map[string]any:
		if v == nil {
			return item
		}
		v[resultField] = FileResults(outcomes)
	case ResultSetter:
		v.SetFileResults(FileResults(outcomes))
	}

	return item
}
