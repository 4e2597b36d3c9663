package watch

import (
	"time"

	"fuelalert/lib/phase"
	"fuelalert/services/notifier"
)

// CityResult is one city's row in the run summary.
type CityResult struct {
	City     string
	Previous phase.Phase
	Phase    phase.Phase
	Tip      string
	// Skipped carries the reason when the city was not evaluated at
	// all (missing advisory section).
	Skipped string
	// Warning carries a soft failure note: classification failure or
	// an uncommitted dry-run transition.
	Warning   string
	Notified  int
	Failures  []notifier.Failure
	Committed bool
}

// Transitioned reports whether this row fired a WAIT to BUY alert.
func (r CityResult) Transitioned() bool {
	return r.Previous == phase.Wait && r.Phase == phase.Buy && r.Skipped == ""
}

// Report is the operator-facing summary of one batch run.
type Report struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Cities     []CityResult
}

func (r Report) NotifiedTotal() int {
	total := 0
	for _, c := range r.Cities {
		total += c.Notified
	}
	return total
}

func (r Report) FailureTotal() int {
	total := 0
	for _, c := range r.Cities {
		total += len(c.Failures)
	}
	return total
}

func (r Report) SkippedTotal() int {
	total := 0
	for _, c := range r.Cities {
		if c.Skipped != "" {
			total++
		}
	}
	return total
}
