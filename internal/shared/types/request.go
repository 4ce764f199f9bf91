package types

// StartPlaybackRequest represents a session start request. A zero
// ProcessID resolves from the registered application's attached runtime.
type StartPlaybackRequest struct {
	AppID     string            `json:"app_id" binding:"required"`
	ProcessID uint32            `json:"process_id,omitempty"`
	Strategy  FocusLossStrategy `json:"strategy,omitempty"`
}

// PausePlaybackRequest represents a manual pause request. Reason defaults
// to user_requested when omitted.
type PausePlaybackRequest struct {
	Reason PauseReason `json:"reason,omitempty"`
}

// AbortPlaybackRequest represents an explicit abort request
type AbortPlaybackRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CheckpointRequest represents a recovery checkpoint request
type CheckpointRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RestoreRequest represents a snapshot restore request
type RestoreRequest struct {
	SnapshotID string `json:"snapshot_id" binding:"required"`
}

// RecoveryRequest represents an error recovery attempt
type RecoveryRequest struct {
	Strategy RecoveryStrategy `json:"strategy" binding:"required"`
}

// RegisterApplicationRequest represents an application registration request
type RegisterApplicationRequest struct {
	Name            string            `json:"name" binding:"required"`
	ExecutablePath  string            `json:"executable_path"`
	ProcessName     string            `json:"process_name" binding:"required"`
	BundleID        *string           `json:"bundle_id,omitempty"`
	DefaultStrategy FocusLossStrategy `json:"default_strategy,omitempty"`
}

// AttachRuntimeRequest represents runtime handle attachment after the
// target application has been located
type AttachRuntimeRequest struct {
	ProcessID    uint32       `json:"process_id" binding:"required"`
	WindowHandle WindowHandle `json:"window_handle,omitempty"`
}

// RunScenarioRequest represents a scenario execution request
type RunScenarioRequest struct {
	Path string `json:"path" binding:"required"`
}

// StreamEvent represents a state-transition event pushed to WebSocket
// stream subscribers
type StreamEvent struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	AppID     string        `json:"app_id,omitempty"`
	State     PlaybackState `json:"state,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp"`
}
