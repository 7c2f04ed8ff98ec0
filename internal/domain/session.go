package domain

import "time"

// State is a conversation state tag in "flow.step" form. The zero value is idle.
type State string

// StateIdle is the state of a user with no active flow.
const StateIdle State = ""

// Session is the per-user conversation context.
type Session struct {
	UserID    int64
	State     State
	Data      map[string]string
	Pending   *PendingPost
	UpdatedAt time.Time

	// Version counts stored writes. Saves are conditional on it, so two
	// processes handling the same user cannot overwrite each other.
	Version int64
}

// Value returns a scratchpad field or "".
func (s Session) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// Idle reports whether no flow is active.
func (s Session) Idle() bool {
	return s.State == StateIdle
}
