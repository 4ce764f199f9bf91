package playback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/replaykit/replayd/internal/domain/validate"
	"github.com/replaykit/replayd/internal/shared/types"
)

var (
	// ErrPlaybackActive rejects starting or restoring over a live session.
	ErrPlaybackActive = errors.New("playback session already active")
	// ErrNoActiveSession rejects operations that need a session.
	ErrNoActiveSession = errors.New("no active playback session")
	// ErrMonitorAttached rejects a second monitor attachment. Detach the
	// current monitor first.
	ErrMonitorAttached = errors.New("focus monitor already attached")
	// ErrNoMonitorAttached rejects detaching when nothing is attached.
	ErrNoMonitorAttached = errors.New("no focus monitor attached")
	// ErrInvalidProcessID rejects a zero process id before any mutation.
	ErrInvalidProcessID = errors.New("process id must be non-zero")
)

// TransitionError reports an operation invalid in the session's current
// state, such as pausing a session that is already paused.
type TransitionError struct {
	Op    string
	State types.PlaybackState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s: session is %s", e.Op, e.State)
}

// FocusVerificationError blocks one action before injection. A failed
// verification never mutates session state, so the caller may retry
// once focus is restored.
type FocusVerificationError struct {
	Reason string
}

func (e *FocusVerificationError) Error() string {
	return "focus verification failed: " + e.Reason
}

// ValidationError carries the validator's rejection of one action.
type ValidationError struct {
	Result validate.Result
}

func (e *ValidationError) Error() string {
	return "action validation failed: " + e.Result.Reason
}

// HealthKind names a detected application failure.
type HealthKind string

const (
	HealthClosed       HealthKind = "application_closed"
	HealthUnresponsive HealthKind = "application_unresponsive"
)

func (k HealthKind) describe() string {
	switch k {
	case HealthClosed:
		return "has closed"
	case HealthUnresponsive:
		return "is not responding"
	}
	return string(k)
}

// HealthError reports a detected application failure together with the
// recovery options open to the operator.
type HealthError struct {
	Kind    HealthKind
	AppID   string
	Options []types.RecoveryStrategy
}

func (e *HealthError) Error() string {
	names := make([]string, len(e.Options))
	for i, opt := range e.Options {
		names[i] = string(opt)
	}
	return fmt.Sprintf("application %s %s (%s); recovery options: %s",
		e.AppID, e.Kind.describe(), e.Kind, strings.Join(names, ", "))
}
