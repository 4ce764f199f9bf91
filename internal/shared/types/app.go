package types

import "time"

// ApplicationStatus represents the detected health of a target application
type ApplicationStatus string

const (
	AppStatusActive             ApplicationStatus = "active"
	AppStatusInactive           ApplicationStatus = "inactive"
	AppStatusNotFound           ApplicationStatus = "not_found"
	AppStatusError              ApplicationStatus = "error"
	AppStatusPermissionDenied   ApplicationStatus = "permission_denied"
	AppStatusSecureInputBlocked ApplicationStatus = "secure_input_blocked"
)

// WindowHandle identifies an OS-level window. Zero means no window resolved.
type WindowHandle uint64

// NoWindow is the zero handle used when the target has no resolvable window.
const NoWindow WindowHandle = 0

// RegisteredApplication represents an application registered as an
// automation target. ProcessID and WindowHandle are runtime handles
// re-resolved on every launch and never persisted.
type RegisteredApplication struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ExecutablePath string  `json:"executable_path"`
	ProcessName    string  `json:"process_name"`
	BundleID       *string `json:"bundle_id,omitempty"`

	ProcessID    uint32       `json:"-"`
	WindowHandle WindowHandle `json:"-"`

	Status       ApplicationStatus `json:"status"`
	StatusDetail string            `json:"status_detail,omitempty"` // Populated when Status is error
	RegisteredAt time.Time         `json:"registered_at"`
	LastSeenAt   time.Time         `json:"last_seen_at"`

	DefaultStrategy FocusLossStrategy `json:"default_strategy"`
}

// Clone returns a deep copy safe to hand outside the owning manager.
func (a *RegisteredApplication) Clone() RegisteredApplication {
	dup := *a
	if a.BundleID != nil {
		b := *a.BundleID
		dup.BundleID = &b
	}
	return dup
}

// HasWindow reports whether a window handle has been resolved for the app.
func (a *RegisteredApplication) HasWindow() bool {
	return a.WindowHandle != NoWindow
}
