package playback

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replayd/internal/domain/focus"
	"github.com/replaykit/replayd/internal/domain/validate"
	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/platform/sim"
	"github.com/replaykit/replayd/internal/shared/types"
)

var testMetrics = monitoring.NewMetrics()

const (
	targetApp         = "app_editor"
	targetPID  uint32 = 101
	otherPID   uint32 = 202
	testWindow        = types.WindowHandle(0xed17)
)

var testBounds = types.Bounds{X: 0, Y: 0, Width: 1280, Height: 720}

type noteEntry struct {
	kind  string
	appID string
	msg   string
}

// noteRecorder is a notify.Service capturing every call for assertions.
type noteRecorder struct {
	mu      sync.Mutex
	entries []noteEntry
}

func (r *noteRecorder) record(kind, appID, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, noteEntry{kind: kind, appID: appID, msg: msg})
}

func (r *noteRecorder) NotifyAutomationPaused(appID, msg string)  { r.record("paused", appID, msg) }
func (r *noteRecorder) NotifyAutomationResumed(appID, msg string) { r.record("resumed", appID, msg) }
func (r *noteRecorder) NotifyApplicationError(appID, msg string)  { r.record("error", appID, msg) }

func (r *noteRecorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *noteRecorder) lastMessage(kind string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].kind == kind {
			return r.entries[i].msg
		}
	}
	return ""
}

type fixture struct {
	sim        *sim.Sim
	controller *Controller
	monitor    *focus.Monitor
	validator  *validate.Validator
	notes      *noteRecorder
	events     <-chan types.FocusEvent
}

// newFixture builds a controller over a simulated desktop: the target
// app (focused, with a window) and one other app to steal focus.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	drv := sim.New()
	drv.AddProcess(targetPID, "editor")
	drv.SetWindow(targetPID, testWindow, testBounds)
	drv.SetTitle(targetPID, "Editor (untitled)")
	drv.AddProcess(otherPID, "slack")
	drv.SetTitle(otherPID, "Slack")
	drv.SetFocus(targetPID)

	logger := logging.NewNop()
	validator := validate.NewValidator(drv, logger, testMetrics)
	validator.SetTargetApplication(types.RegisteredApplication{
		ID:           targetApp,
		Name:         "Editor",
		ProcessID:    targetPID,
		WindowHandle: testWindow,
		Status:       types.AppStatusActive,
	})

	notes := &noteRecorder{}
	return &fixture{
		sim:        drv,
		controller: NewController(drv, drv, validator, notes, logger, testMetrics),
		monitor:    focus.NewMonitor(drv, logger, testMetrics),
		validator:  validator,
		notes:      notes,
	}
}

// start begins a session and brings focus monitoring up.
func (f *fixture) start(t *testing.T, strategy types.FocusLossStrategy) types.PlaybackSession {
	t.Helper()

	session, err := f.controller.StartPlayback(targetApp, targetPID, strategy)
	require.NoError(t, err)

	events, err := f.monitor.StartMonitoring(targetApp, targetPID)
	require.NoError(t, err)
	f.events = events
	t.Cleanup(func() { _ = f.monitor.StopMonitoring() })

	require.NoError(t, f.controller.AttachFocusMonitor(f.monitor))
	f.awaitFocus(t, true)
	return session
}

func (f *fixture) awaitFocus(t *testing.T, focused bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.monitor.CurrentFocusState().IsTargetFocused == focused
	}, time.Second, 2*time.Millisecond)
}

func (f *fixture) session(t *testing.T) types.PlaybackSession {
	t.Helper()
	session, ok := f.controller.Session()
	require.True(t, ok, "expected an active session")
	return session
}

func strPtr(s string) *string { return &s }

func TestStartPlayback(t *testing.T) {
	f := newFixture(t)

	session, err := f.controller.StartPlayback(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(session.ID, "sess_"), "session id %q", session.ID)
	assert.Equal(t, targetApp, session.TargetAppID)
	assert.Equal(t, targetPID, session.TargetProcessID)
	assert.Equal(t, types.StrategyAutoPause, session.Strategy)
	assert.Equal(t, types.StateRunning, session.State)
	assert.Zero(t, session.CurrentStep)
	assert.WithinDuration(t, time.Now(), session.StartedAt, time.Second)
	assert.Nil(t, session.PausedAt)
	assert.Zero(t, session.TotalPauseDuration)

	// the returned session is a copy
	session.CurrentStep = 99
	assert.Zero(t, f.session(t).CurrentStep)
}

func TestStartPlaybackValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.StartPlayback("", targetPID, types.StrategyAutoPause)
	require.ErrorContains(t, err, "application id is required")

	_, err = f.controller.StartPlayback(targetApp, 0, types.StrategyAutoPause)
	require.ErrorIs(t, err, ErrInvalidProcessID)

	_, err = f.controller.StartPlayback(targetApp, targetPID, "yolo")
	require.ErrorContains(t, err, "unknown focus-loss strategy")

	_, ok := f.controller.Session()
	assert.False(t, ok, "failed starts must not leave a session behind")
}

func TestStartPlaybackSecondRejected(t *testing.T) {
	f := newFixture(t)

	first, err := f.controller.StartPlayback(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	_, err = f.controller.StartPlayback("app_other", otherPID, types.StrategyIgnore)
	require.ErrorIs(t, err, ErrPlaybackActive)

	current := f.session(t)
	assert.Equal(t, first.ID, current.ID)
	assert.Equal(t, types.StateRunning, current.State)
	assert.Equal(t, targetApp, current.TargetAppID)
}

func TestPauseResumeBookkeeping(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	paused := f.session(t)
	assert.Equal(t, types.StatePaused, paused.State)
	assert.Equal(t, types.PauseUserRequested, paused.PauseReason)
	require.NotNil(t, paused.PausedAt)
	assert.Equal(t, 1, f.notes.count("paused"))
	assert.Contains(t, f.notes.lastMessage("paused"), "user_requested")

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, f.controller.ResumePlayback())
	resumed := f.session(t)
	assert.Equal(t, types.StateRunning, resumed.State)
	assert.Empty(t, resumed.PauseReason)
	assert.Nil(t, resumed.PausedAt)
	require.NotNil(t, resumed.ResumedAt)
	assert.GreaterOrEqual(t, resumed.TotalPauseDuration, 10*time.Millisecond)
	assert.Equal(t, 1, f.notes.count("resumed"))

	// a second cycle strictly increases the accounted total
	first := resumed.TotalPauseDuration
	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	require.NoError(t, f.controller.ResumePlayback())
	assert.Greater(t, f.session(t).TotalPauseDuration, first)
}

func TestTransitionErrors(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.controller.PausePlayback(types.PauseUserRequested), ErrNoActiveSession)
	require.ErrorIs(t, f.controller.ResumePlayback(), ErrNoActiveSession)
	require.ErrorIs(t, f.controller.AbortPlayback("x"), ErrNoActiveSession)
	require.ErrorIs(t, f.controller.StopPlayback(), ErrNoActiveSession)

	f.start(t, types.StrategyAutoPause)

	require.ErrorContains(t, f.controller.PausePlayback("because"), "unknown pause reason")

	err := f.controller.ResumePlayback()
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "cannot resume playback: session is running", terr.Error())

	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	err = f.controller.PausePlayback(types.PauseUserRequested)
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, types.StatePaused, terr.State)
}

func TestAbortPlayback(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	require.NoError(t, f.controller.AbortPlayback("operator killed it"))
	session := f.session(t)
	assert.Equal(t, types.StateAborted, session.State)
	assert.Equal(t, "operator killed it", session.AbortReason)
	assert.Equal(t, 1, f.notes.count("error"))

	// aborted is terminal for everything but stop
	var terr *TransitionError
	require.ErrorAs(t, f.controller.PausePlayback(types.PauseUserRequested), &terr)
	require.ErrorAs(t, f.controller.ResumePlayback(), &terr)
	require.ErrorAs(t, f.controller.AbortPlayback("again"), &terr)

	require.NoError(t, f.controller.StopPlayback())
	_, ok := f.controller.Session()
	assert.False(t, ok)
}

func TestAbortFromPaused(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	require.NoError(t, f.controller.AbortPlayback("gave up while paused"))
	assert.Equal(t, types.StateAborted, f.session(t).State)
}

func TestStopFromEveryState(t *testing.T) {
	for _, tc := range []struct {
		name    string
		arrange func(t *testing.T, f *fixture)
	}{
		{"running", func(t *testing.T, f *fixture) {}},
		{"paused", func(t *testing.T, f *fixture) {
			require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
		}},
		{"aborted", func(t *testing.T, f *fixture) {
			require.NoError(t, f.controller.AbortPlayback("x"))
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.start(t, types.StrategyAutoPause)
			tc.arrange(t, f)

			require.NoError(t, f.controller.StopPlayback())
			_, ok := f.controller.Session()
			assert.False(t, ok)

			// a fresh session can start afterwards
			_, err := f.controller.StartPlayback(targetApp, targetPID, types.StrategyIgnore)
			require.NoError(t, err)
		})
	}
}

func TestVerifyFocusBeforeAction(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.controller.VerifyFocusBeforeAction(), ErrNoActiveSession)

	_, err := f.controller.StartPlayback(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	// no monitor attached
	var fve *FocusVerificationError
	err = f.controller.VerifyFocusBeforeAction()
	require.ErrorAs(t, err, &fve)
	assert.Contains(t, fve.Reason, "no focus monitoring active")

	// attached but not started
	require.NoError(t, f.controller.AttachFocusMonitor(f.monitor))
	err = f.controller.VerifyFocusBeforeAction()
	require.ErrorAs(t, err, &fve)
	assert.Contains(t, fve.Reason, "no focus monitoring active")

	events, err := f.monitor.StartMonitoring(targetApp, targetPID)
	require.NoError(t, err)
	f.events = events
	t.Cleanup(func() { _ = f.monitor.StopMonitoring() })
	f.awaitFocus(t, true)

	// paused wins over everything that follows it
	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	err = f.controller.VerifyFocusBeforeAction()
	require.ErrorAs(t, err, &fve)
	assert.Contains(t, fve.Reason, "paused")
	assert.Contains(t, fve.Reason, "user_requested")

	f.sim.SetFocus(otherPID)
	f.awaitFocus(t, false)
	err = f.controller.VerifyFocusBeforeAction()
	require.ErrorAs(t, err, &fve)
	assert.Contains(t, fve.Reason, "paused", "paused must be reported before the focus check")

	// running but unfocused
	require.NoError(t, f.controller.ResumePlayback())
	err = f.controller.VerifyFocusBeforeAction()
	require.ErrorAs(t, err, &fve)
	assert.Contains(t, fve.Reason, "does not hold focus")

	// focused and running
	f.sim.SetFocus(targetPID)
	f.awaitFocus(t, true)
	require.NoError(t, f.controller.VerifyFocusBeforeAction())

	// aborted is reported with its reason
	require.NoError(t, f.controller.AbortPlayback("fatal: window vanished"))
	err = f.controller.VerifyFocusBeforeAction()
	require.ErrorAs(t, err, &fve)
	assert.Contains(t, fve.Reason, "aborted")
	assert.Contains(t, fve.Reason, "fatal: window vanished")
}

func TestExecuteAction(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)
	ctx := context.Background()

	require.NoError(t, f.controller.ExecuteAction(ctx, types.NewMouseClick(types.Point{X: 100, Y: 100})))
	assert.Equal(t, 1, f.session(t).CurrentStep)

	require.NoError(t, f.controller.ExecuteAction(ctx, types.NewKeyboardInput("hello")))
	assert.Equal(t, 2, f.session(t).CurrentStep)

	journal := f.sim.Journal()
	require.Len(t, journal, 2)
	assert.Equal(t, types.ActionMouseClick, journal[0].Type)
	assert.Equal(t, types.ActionKeyboardInput, journal[1].Type)

	// validation failures do not advance the step
	var verr *ValidationError
	err := f.controller.ExecuteAction(ctx, types.NewMouseClick(types.Point{X: 9999, Y: 9999}))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validate.CodeOutOfBounds, verr.Result.Code)
	assert.Equal(t, 2, f.session(t).CurrentStep)

	// injector failures do not advance the step
	f.sim.FailInjection(errors.New("injector exploded"))
	err = f.controller.ExecuteAction(ctx, types.NewKeyPress("enter"))
	require.ErrorContains(t, err, "inject key_press")
	assert.Equal(t, 2, f.session(t).CurrentStep)
	f.sim.FailInjection(nil)

	// focus loss blocks execution until focus returns
	f.sim.SetFocus(otherPID)
	f.awaitFocus(t, false)
	var fve *FocusVerificationError
	err = f.controller.ExecuteAction(ctx, types.NewKeyPress("enter"))
	require.ErrorAs(t, err, &fve)
	assert.Equal(t, 2, f.session(t).CurrentStep)

	f.sim.SetFocus(targetPID)
	f.awaitFocus(t, true)
	require.NoError(t, f.controller.ExecuteAction(ctx, types.NewKeyPress("enter")))
	assert.Equal(t, 3, f.session(t).CurrentStep)

	stats, err := f.controller.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ActionsExecuted)
	assert.Equal(t, 2, stats.ActionsFailed)
}

func TestExecuteActionNoSession(t *testing.T) {
	f := newFixture(t)
	err := f.controller.ExecuteAction(context.Background(), types.NewKeyPress("a"))
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestAttachDetachMonitor(t *testing.T) {
	f := newFixture(t)

	require.ErrorContains(t, f.controller.AttachFocusMonitor(nil), "monitor is required")
	assert.False(t, f.controller.HasMonitor())

	require.NoError(t, f.controller.AttachFocusMonitor(f.monitor))
	assert.True(t, f.controller.HasMonitor())

	require.ErrorIs(t, f.controller.AttachFocusMonitor(f.monitor), ErrMonitorAttached)

	require.NoError(t, f.controller.DetachFocusMonitor())
	assert.False(t, f.controller.HasMonitor())
	require.ErrorIs(t, f.controller.DetachFocusMonitor(), ErrNoMonitorAttached)
}
