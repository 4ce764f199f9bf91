package remote

import (
	"github.com/replaykit/replayd/internal/shared/types"
)

// Operation names on the driver protocol.
const (
	OpProcessExists     = "process_exists"
	OpProcessResponsive = "process_responsive"
	OpFocusedProcess    = "focused_process"
	OpResolveWindow     = "resolve_window"
	OpWindowBounds      = "window_bounds"
	OpMouseMove         = "mouse_move"
	OpMouseClick        = "mouse_click"
	OpMouseDrag         = "mouse_drag"
	OpTypeText          = "type_text"
	OpPressKey          = "press_key"
	OpWatch             = "watch"
	OpUnwatch           = "unwatch"
	OpFocusChange       = "focus_change" // server push
)

// Error codes carried in failed responses.
const (
	CodeProcessNotFound = "process_not_found"
	CodeWindowNotFound  = "window_not_found"
)

// Request is one client-to-driver call.
type Request struct {
	ID      string             `json:"id"`
	Op      string             `json:"op"`
	PID     uint32             `json:"pid,omitempty"`
	Handle  types.WindowHandle `json:"handle,omitempty"`
	WatchID string             `json:"watch_id,omitempty"`
	Point   *types.Point       `json:"point,omitempty"`
	From    *types.Point       `json:"from,omitempty"`
	To      *types.Point       `json:"to,omitempty"`
	Text    string             `json:"text,omitempty"`
	Key     string             `json:"key,omitempty"`
}

// Envelope is one driver-to-client frame: a response when ID is set, a
// focus-change push when Op is focus_change.
type Envelope struct {
	ID    string `json:"id,omitempty"`
	Op    string `json:"op,omitempty"`
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`

	// Response payloads
	Exists     *bool              `json:"exists,omitempty"`
	Responsive *bool              `json:"responsive,omitempty"`
	PID        uint32             `json:"pid,omitempty"`
	Name       string             `json:"name,omitempty"`
	Handle     types.WindowHandle `json:"handle,omitempty"`
	Bounds     *types.Bounds      `json:"bounds,omitempty"`
	WatchID    string             `json:"watch_id,omitempty"`

	// Focus-change push payload
	TargetFocused bool   `json:"target_focused,omitempty"`
	HolderPID     uint32 `json:"holder_pid,omitempty"`
	HolderName    string `json:"holder_name,omitempty"`
	WindowTitle   string `json:"window_title,omitempty"`
	At            int64  `json:"at,omitempty"` // unix milliseconds
}
