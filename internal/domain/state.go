package domain

import "time"

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// Completed reports whether the phase ends a refresh attempt.
func (p Phase) Completed() bool { return p == PhaseSuccess || p == PhaseFailure }

// PhaseOf maps a completed result onto its terminal phase.
func PhaseOf(r Result) Phase {
	if r.Success {
		return PhaseSuccess
	}
	return PhaseFailure
}

// State is the current phase and last result of one check.
// Result is nil until the first attempt completes and while Loading.
type State struct {
	Key       Key       `json:"key"`
	Phase     Phase     `json:"phase"`
	Result    *Result   `json:"result,omitempty"`
	Manual    bool      `json:"manual"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition is emitted every time a check changes phase.
type Transition struct {
	ID     string    `json:"id"`
	Check  Check     `json:"-"`
	Key    Key       `json:"key"`
	Phase  Phase     `json:"phase"`
	Result *Result   `json:"result,omitempty"`
	Manual bool      `json:"manual"`
	At     time.Time `json:"at"`
}

func (t Transition) State() State {
	return State{Key: t.Key, Phase: t.Phase, Result: t.Result, Manual: t.Manual, UpdatedAt: t.At}
}
