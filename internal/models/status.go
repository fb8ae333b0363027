package models

import "fmt"

// SessionStatus is the measurement session state machine.
//
//	idle ──> capturing ──> processing ──> complete
//	            │  ^              │
//	            └──┘ (retake)     └─────> capturing (consistency retake)
//
// failed is reachable from any non-terminal state and, like complete, is
// terminal. Retakes re-enter capturing without clearing the photo slot;
// the next upload for that slot overwrites it.
type SessionStatus string

const (
	StatusIdle       SessionStatus = "idle"
	StatusCapturing  SessionStatus = "capturing"
	StatusProcessing SessionStatus = "processing"
	StatusComplete   SessionStatus = "complete"
	StatusFailed     SessionStatus = "failed"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	StatusIdle:       {StatusCapturing, StatusFailed},
	StatusCapturing:  {StatusCapturing, StatusProcessing, StatusFailed},
	StatusProcessing: {StatusComplete, StatusCapturing, StatusFailed},
	StatusComplete:   {},
	StatusFailed:     {},
}

// IsTerminal reports whether the session can never be mutated again.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransitionTo reports whether the transition table allows moving to next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the session to the next status, rejecting anything the
// transition table does not allow. All status mutations go through here so
// no call site can invent its own lifecycle.
func (s *MeasurementSession) Transition(next SessionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal session transition %s -> %s", s.Status, next)
	}
	s.Status = next
	return nil
}
