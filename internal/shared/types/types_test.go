package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsContains(t *testing.T) {
	b := Bounds{X: 100, Y: 200, Width: 800, Height: 600}

	tests := []struct {
		name  string
		point Point
		want  bool
	}{
		{"center", Point{X: 500, Y: 500}, true},
		{"top left corner", Point{X: 100, Y: 200}, true},
		{"left of window", Point{X: 99, Y: 500}, false},
		{"above window", Point{X: 500, Y: 199}, false},
		{"right edge exclusive", Point{X: 900, Y: 500}, false},
		{"bottom edge exclusive", Point{X: 500, Y: 800}, false},
		{"last interior pixel", Point{X: 899, Y: 799}, true},
		{"negative coordinates", Point{X: -10, Y: -10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Contains(tt.point))
		})
	}
}

func TestActionKindPredicates(t *testing.T) {
	tests := []struct {
		name     string
		action   Action
		mouse    bool
		keyboard bool
	}{
		{"click", NewMouseClick(Point{X: 10, Y: 20}), true, false},
		{"move", NewMouseMove(Point{X: 10, Y: 20}), true, false},
		{"drag", NewMouseDrag(Point{X: 0, Y: 0}, Point{X: 5, Y: 5}), true, false},
		{"type text", NewKeyboardInput("hello"), false, true},
		{"key press", NewKeyPress("Enter"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.mouse, tt.action.IsMouse())
			assert.Equal(t, tt.keyboard, tt.action.IsKeyboard())
		})
	}
}

func TestActionTargetPoints(t *testing.T) {
	click := NewMouseClick(Point{X: 1, Y: 2})
	assert.Equal(t, []Point{{X: 1, Y: 2}}, click.TargetPoints())

	drag := NewMouseDrag(Point{X: 1, Y: 2}, Point{X: 3, Y: 4})
	require.Len(t, drag.TargetPoints(), 2)
	assert.Equal(t, Point{X: 1, Y: 2}, drag.TargetPoints()[0])
	assert.Equal(t, Point{X: 3, Y: 4}, drag.TargetPoints()[1])

	typed := NewKeyboardInput("abc")
	assert.Empty(t, typed.TargetPoints())
}

func TestSessionClone(t *testing.T) {
	pausedAt := time.Now()
	sess := &PlaybackSession{
		ID:          "sess_01",
		State:       StatePaused,
		PauseReason: PauseFocusLost,
		PausedAt:    &pausedAt,
	}

	dup := sess.Clone()
	require.NotNil(t, dup)
	require.NotNil(t, dup.PausedAt)

	// Mutating the clone must not touch the original
	*dup.PausedAt = dup.PausedAt.Add(time.Hour)
	dup.State = StateRunning

	assert.Equal(t, pausedAt, *sess.PausedAt)
	assert.Equal(t, StatePaused, sess.State)
}

func TestSnapshotIsRecoverable(t *testing.T) {
	running := &ProgressSnapshot{State: StateRunning}
	paused := &ProgressSnapshot{State: StatePaused, PauseReason: PauseApplicationError}
	aborted := &ProgressSnapshot{State: StateAborted, AbortReason: "target crashed"}

	assert.True(t, running.IsRecoverable())
	assert.True(t, paused.IsRecoverable())
	assert.False(t, aborted.IsRecoverable())
}

func TestSnapshotAge(t *testing.T) {
	snap := &ProgressSnapshot{SavedAt: time.Now().Add(-time.Minute)}
	assert.GreaterOrEqual(t, snap.Age(), time.Minute)
	assert.Less(t, snap.Age(), 2*time.Minute)
}

func TestRecoveryStrategyMetadata(t *testing.T) {
	for _, r := range []RecoveryStrategy{
		RecoveryGracefulStop,
		RecoveryWaitAndRetry,
		RecoveryRestartApplication,
		RecoveryManualIntervention,
	} {
		assert.NotEmpty(t, r.Description(), "strategy %s", r)
	}

	assert.False(t, RecoveryGracefulStop.RequiresUserInteraction())
	assert.False(t, RecoveryWaitAndRetry.RequiresUserInteraction())
	assert.True(t, RecoveryManualIntervention.RequiresUserInteraction())

	assert.False(t, RecoveryGracefulStop.PreservesProgress())
	assert.True(t, RecoveryWaitAndRetry.PreservesProgress())
}

func TestFocusLossStrategyValid(t *testing.T) {
	assert.True(t, StrategyAutoPause.Valid())
	assert.True(t, StrategyStrictError.Valid())
	assert.True(t, StrategyIgnore.Valid())
	assert.False(t, FocusLossStrategy("panic").Valid())
	assert.False(t, FocusLossStrategy("").Valid())
}

func TestFocusStateClone(t *testing.T) {
	pid := uint32(4242)
	title := "Invoices - Billing"
	state := FocusState{
		IsTargetFocused:    true,
		FocusedProcessID:   &pid,
		FocusedWindowTitle: &title,
		LastChange:         time.Now(),
	}

	dup := state.Clone()
	*dup.FocusedProcessID = 1
	*dup.FocusedWindowTitle = "other"

	assert.Equal(t, uint32(4242), *state.FocusedProcessID)
	assert.Equal(t, "Invoices - Billing", *state.FocusedWindowTitle)
}

func TestRegisteredApplicationClone(t *testing.T) {
	bundle := "com.example.calc"
	app := &RegisteredApplication{
		ID:           "app_01",
		Name:         "Calculator",
		BundleID:     &bundle,
		ProcessID:    101,
		WindowHandle: WindowHandle(0xbeef),
		Status:       AppStatusActive,
	}

	dup := app.Clone()
	*dup.BundleID = "com.example.other"
	dup.Status = AppStatusNotFound

	assert.Equal(t, "com.example.calc", *app.BundleID)
	assert.Equal(t, AppStatusActive, app.Status)
	assert.True(t, dup.HasWindow())
}
