package types

import "time"

// ProgressSnapshot represents a point-in-time capture of a playback
// session, sufficient to reconstruct it after a crash or error.
// Immutable once created.
type ProgressSnapshot struct {
	SnapshotID      string            `json:"snapshot_id"`
	SessionID       string            `json:"session_id"`
	TargetAppID     string            `json:"target_app_id"`
	TargetProcessID uint32            `json:"target_process_id"`
	CurrentStep     int               `json:"current_step"`
	State           PlaybackState     `json:"state"`
	PauseReason     PauseReason       `json:"pause_reason,omitempty"`
	AbortReason     string            `json:"abort_reason,omitempty"`
	Strategy        FocusLossStrategy `json:"strategy"`
	ErrorContext    string            `json:"error_context,omitempty"`
	SavedAt         time.Time         `json:"saved_at"`
	StartedAt       time.Time         `json:"started_at"`
	PausedAt        *time.Time        `json:"paused_at,omitempty"`
}

// IsRecoverable reports whether resuming from this snapshot is advisable.
// Snapshots captured from an aborted session are not: the abort reason
// recorded the target as unusable at capture time. Restore itself stays
// permissive and always yields a paused session awaiting explicit resume.
func (s *ProgressSnapshot) IsRecoverable() bool {
	return s.State != StateAborted
}

// Age returns how long ago the snapshot was captured
func (s *ProgressSnapshot) Age() time.Duration {
	return time.Since(s.SavedAt)
}
