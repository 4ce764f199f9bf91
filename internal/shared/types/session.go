package types

import "time"

// PlaybackState represents the session state machine position
type PlaybackState string

const (
	StateRunning PlaybackState = "running"
	StatePaused  PlaybackState = "paused"
	StateAborted PlaybackState = "aborted"
)

// PauseReason represents why a session entered the paused state
type PauseReason string

const (
	PauseFocusLost        PauseReason = "focus_lost"
	PauseUserRequested    PauseReason = "user_requested"
	PauseApplicationError PauseReason = "application_error"
)

// Valid reports whether the reason is one of the known pause causes
func (r PauseReason) Valid() bool {
	switch r {
	case PauseFocusLost, PauseUserRequested, PauseApplicationError:
		return true
	}
	return false
}

// PlaybackSession represents one active replay session. PauseReason is
// set only while State is paused; AbortReason only once State is aborted.
type PlaybackSession struct {
	ID              string            `json:"id"`
	TargetAppID     string            `json:"target_app_id"`
	TargetProcessID uint32            `json:"target_process_id"`
	Strategy        FocusLossStrategy `json:"strategy"`

	State       PlaybackState `json:"state"`
	PauseReason PauseReason   `json:"pause_reason,omitempty"`
	AbortReason string        `json:"abort_reason,omitempty"`

	CurrentStep        int           `json:"current_step"`
	StartedAt          time.Time     `json:"started_at"`
	PausedAt           *time.Time    `json:"paused_at,omitempty"`
	ResumedAt          *time.Time    `json:"resumed_at,omitempty"`
	TotalPauseDuration time.Duration `json:"total_pause_duration"`
}

// IsRunning reports whether actions may currently execute
func (s *PlaybackSession) IsRunning() bool {
	return s.State == StateRunning
}

// IsPaused reports whether the session is paused for any reason
func (s *PlaybackSession) IsPaused() bool {
	return s.State == StatePaused
}

// IsAborted reports whether the session reached the terminal aborted state
func (s *PlaybackSession) IsAborted() bool {
	return s.State == StateAborted
}

// Clone returns a deep copy safe to hand outside the controller
func (s *PlaybackSession) Clone() *PlaybackSession {
	if s == nil {
		return nil
	}
	dup := *s
	if s.PausedAt != nil {
		t := *s.PausedAt
		dup.PausedAt = &t
	}
	if s.ResumedAt != nil {
		t := *s.ResumedAt
		dup.ResumedAt = &t
	}
	return &dup
}
