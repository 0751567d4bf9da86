package core

import (
	"fmt"
	"time"

	"capconv/internal/errors"
)

// Summary aggregates the results of a run.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
	Rows      int64
	Dropped   int
	Nulled    int64
	Bytes     int64
	Elapsed   time.Duration
}

// Summarize folds results into a Summary.
func Summarize(results []Result, elapsed time.Duration) Summary {
	s := Summary{Results: results, Elapsed: elapsed}
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Skipped:
			s.Skipped++
		default:
			s.Succeeded++
			s.Rows += r.Rows
			s.Dropped += r.Dropped
			s.Nulled += r.Nulled
			s.Bytes += r.Bytes
		}
	}
	return s
}

// Merge appends the results of o to s.
func (s Summary) Merge(o Summary) Summary {
	all := make([]Result, 0, len(s.Results)+len(o.Results))
	all = append(all, s.Results...)
	all = append(all, o.Results...)
	return Summarize(all, s.Elapsed+o.Elapsed)
}

// Failures returns the failed results in dispatch order.
func (s Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err returns an error wrapping errors.ErrBatchFailed if any capture
// failed, nil otherwise.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d captures failed", errors.ErrBatchFailed, s.Failed, len(s.Results))
}
