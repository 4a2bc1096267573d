package enrich

import (
	"fmt"
	"time"

	"example.com/stravaweather/internal/domain"
)

// Report summarises a run.
type Report struct {
	RunID      string
	State      domain.RunState
	History    []domain.RunState
	StartedAt  time.Time
	FinishedAt time.Time
	Listed     int
	Outcomes   map[domain.Outcome]int
}

func newReport(runID string, started time.Time) *Report {
	return &Report{
		RunID:     runID,
		State:     domain.RunStateInit,
		History:   []domain.RunState{domain.RunStateInit},
		StartedAt: started,
		Outcomes:  make(map[domain.Outcome]int),
	}
}

func (r *Report) transition(next domain.RunState) {
	if r.State.Terminal() {
		return
	}
	r.State = next
	r.History = append(r.History, next)
}

func (r *Report) record(outcome domain.Outcome) {
	r.Outcomes[outcome]++
}

// Updated is the number of activities that gained a weather block.
func (r *Report) Updated() int {
	return r.Outcomes[domain.OutcomeUpdated]
}

// Failed is the number of activities skipped because a remote call failed.
func (r *Report) Failed() int {
	return r.Outcomes[domain.OutcomeDetailsFailed] +
		r.Outcomes[domain.OutcomeWeatherFailed] +
		r.Outcomes[domain.OutcomeUpdateFailed]
}

// Summary renders the counts for the final log line.
func (r *Report) Summary() string {
	return fmt.Sprintf("listed=%d updated=%d already_tagged=%d no_location=%d dry_run=%d failed=%d",
		r.Listed,
		r.Updated(),
		r.Outcomes[domain.OutcomeAlreadyTagged],
		r.Outcomes[domain.OutcomeNoLocation],
		r.Outcomes[domain.OutcomeDryRun],
		r.Failed(),
	)
}
