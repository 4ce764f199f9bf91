package types

import "time"

// FocusLossStrategy represents the policy applied when the target
// application loses OS focus during playback. Immutable per session.
type FocusLossStrategy string

const (
	// StrategyAutoPause pauses playback on focus loss and resumes when
	// the target regains focus.
	StrategyAutoPause FocusLossStrategy = "auto_pause"
	// StrategyStrictError aborts the session the moment focus is lost.
	StrategyStrictError FocusLossStrategy = "strict_error"
	// StrategyIgnore logs focus changes without touching session state.
	StrategyIgnore FocusLossStrategy = "ignore"
)

// Valid reports whether the strategy is one of the known policies
func (s FocusLossStrategy) Valid() bool {
	switch s {
	case StrategyAutoPause, StrategyStrictError, StrategyIgnore:
		return true
	}
	return false
}

// FocusEventType represents the kind of focus change observed
type FocusEventType string

const (
	FocusEventLost   FocusEventType = "target_lost_focus"
	FocusEventGained FocusEventType = "target_gained_focus"
	FocusEventError  FocusEventType = "focus_error"
)

// FocusEvent represents one observed focus change on the monitored
// process. AppID and ProcessID identify the monitored target, not the
// application that took focus; NewFocusedApp carries that name when the
// platform layer can resolve it.
type FocusEvent struct {
	Type          FocusEventType `json:"type"`
	AppID         string         `json:"app_id,omitempty"`
	ProcessID     uint32         `json:"process_id,omitempty"`
	NewFocusedApp *string        `json:"new_focused_app,omitempty"`
	WindowTitle   string         `json:"window_title,omitempty"`
	Err           string         `json:"error,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// NewFocusLostEvent creates an event recording that the target lost focus
// to newFocusedApp (nil when the successor is unknown)
func NewFocusLostEvent(appID string, pid uint32, newFocusedApp *string) FocusEvent {
	return FocusEvent{
		Type:          FocusEventLost,
		AppID:         appID,
		ProcessID:     pid,
		NewFocusedApp: newFocusedApp,
		Timestamp:     time.Now(),
	}
}

// NewFocusGainedEvent creates an event recording that the target regained focus
func NewFocusGainedEvent(appID string, pid uint32, windowTitle string) FocusEvent {
	return FocusEvent{
		Type:        FocusEventGained,
		AppID:       appID,
		ProcessID:   pid,
		WindowTitle: windowTitle,
		Timestamp:   time.Now(),
	}
}

// NewFocusErrorEvent creates an event recording a focus observation failure
func NewFocusErrorEvent(err error) FocusEvent {
	ev := FocusEvent{Type: FocusEventError, Timestamp: time.Now()}
	if err != nil {
		ev.Err = err.Error()
	}
	return ev
}

// FocusState represents the last known focus position. Owned exclusively
// by the focus monitor; callers receive copies.
type FocusState struct {
	IsTargetFocused    bool      `json:"is_target_focused"`
	FocusedProcessID   *uint32   `json:"focused_process_id,omitempty"`
	FocusedWindowTitle *string   `json:"focused_window_title,omitempty"`
	LastChange         time.Time `json:"last_change"`
}

// Clone returns an independent copy of the focus state
func (s FocusState) Clone() FocusState {
	dup := s
	if s.FocusedProcessID != nil {
		pid := *s.FocusedProcessID
		dup.FocusedProcessID = &pid
	}
	if s.FocusedWindowTitle != nil {
		title := *s.FocusedWindowTitle
		dup.FocusedWindowTitle = &title
	}
	return dup
}
