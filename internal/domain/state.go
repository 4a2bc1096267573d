package domain

// RunState represents the phase of a single annotation run.
type RunState string

const (
	RunStateInit          RunState = "init"
	RunStateAuthenticated RunState = "authenticated"
	RunStateListing       RunState = "listing"
	RunStatePerActivity   RunState = "per_activity"
	RunStateDone          RunState = "done"
	RunStateFailed        RunState = "failed"
)

// Terminal reports whether the run can no longer transition.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// Outcome describes what happened to a single activity during a run.
type Outcome string

const (
	OutcomeUpdated       Outcome = "updated"
	OutcomeAlreadyTagged Outcome = "already_tagged"
	OutcomeNoLocation    Outcome = "no_location"
	OutcomeWeatherFailed Outcome = "weather_failed"
	OutcomeDetailsFailed Outcome = "details_failed"
	OutcomeUpdateFailed  Outcome = "update_failed"
	OutcomeDryRun        Outcome = "dry_run"
)
