package platform

import (
	"context"
	"errors"
	"time"

	"github.com/replaykit/replayd/internal/shared/types"
)

var (
	// ErrProcessNotFound is returned when a process id cannot be resolved.
	ErrProcessNotFound = errors.New("process not found")
	// ErrWindowNotFound is returned when no window exists for a process or
	// a handle has gone stale.
	ErrWindowNotFound = errors.New("window not found")
	// ErrDriverClosed is returned on calls against a closed driver.
	ErrDriverClosed = errors.New("platform driver closed")
)

// FocusChange is one raw observation from the OS focus stream. The
// watcher reports who holds focus now; interpreting transitions is the
// focus monitor's job.
type FocusChange struct {
	TargetFocused bool
	HolderPID     uint32
	HolderName    string
	WindowTitle   string
	Err           error
	At            time.Time
}

// ProcessInfo identifies a running process.
type ProcessInfo struct {
	PID  uint32
	Name string
}

// FocusWatcher produces an ordered focus-change stream for one process.
// The stream is closed when ctx is cancelled or the driver shuts down.
type FocusWatcher interface {
	Watch(ctx context.Context, pid uint32) (<-chan FocusChange, error)
}

// ApplicationDetector answers liveness and foreground queries. All
// methods return typed errors on missing processes, never panic.
type ApplicationDetector interface {
	ProcessExists(ctx context.Context, pid uint32) (bool, error)
	ProcessResponsive(ctx context.Context, pid uint32) (bool, error)
	FocusedProcess(ctx context.Context) (ProcessInfo, error)
}

// WindowResolver resolves window handles and screen bounds.
type WindowResolver interface {
	ResolveWindow(ctx context.Context, pid uint32) (types.WindowHandle, error)
	WindowBounds(ctx context.Context, handle types.WindowHandle) (types.Bounds, error)
}

// InputInjector synthesizes mouse and keyboard input. Calls are
// synchronous and atomic; the caller decides whether to retry.
type InputInjector interface {
	MouseMove(ctx context.Context, p types.Point) error
	MouseClick(ctx context.Context, p types.Point) error
	MouseDrag(ctx context.Context, from, to types.Point) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
}

// Driver bundles every capability a platform implementation provides.
type Driver interface {
	FocusWatcher
	ApplicationDetector
	WindowResolver
	InputInjector
	Close() error
}

// Inject dispatches one automation action to the injector.
func Inject(ctx context.Context, in InputInjector, action types.Action) error {
	switch action.Type {
	case types.ActionMouseClick:
		return in.MouseClick(ctx, action.Point)
	case types.ActionMouseMove:
		return in.MouseMove(ctx, action.Point)
	case types.ActionMouseDrag:
		return in.MouseDrag(ctx, action.From, action.To)
	case types.ActionKeyboardInput:
		return in.TypeText(ctx, action.Text)
	case types.ActionKeyPress:
		return in.PressKey(ctx, action.Key)
	}
	return errors.New("unknown action type: " + string(action.Type))
}
