package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replayd/internal/domain/playback"
	"github.com/replaykit/replayd/internal/domain/registry"
	"github.com/replaykit/replayd/internal/domain/snapshot"
	"github.com/replaykit/replayd/internal/domain/validate"
	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/notify"
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

type fixture struct {
	sim         *sim.Sim
	svc         *Service
	validator   *validate.Validator
	store       *snapshot.Store
	registry    *registry.Manager
	scenarioDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	drv := sim.New()
	drv.AddProcess(targetPID, "editor")
	drv.SetWindow(targetPID, testWindow, types.Bounds{X: 0, Y: 0, Width: 1280, Height: 720})
	drv.SetTitle(targetPID, "Editor (untitled)")
	drv.AddProcess(otherPID, "slack")
	drv.SetTitle(otherPID, "Slack")
	drv.SetFocus(targetPID)

	logger := logging.NewNop()
	validator := validate.NewValidator(drv, logger, testMetrics)
	controller := playback.NewController(drv, drv, validator, notify.Nop(), logger, testMetrics)

	store, err := snapshot.NewStore(t.TempDir(), logger, testMetrics)
	require.NoError(t, err)
	reg, err := registry.NewManager(t.TempDir(), logger, testMetrics)
	require.NoError(t, err)

	scenarioDir := t.TempDir()
	svc := NewService(controller, validator, store, reg, drv, logger, testMetrics, Config{
		FocusEventBuffer: 16,
		HealthCheckEvery: 10 * time.Millisecond,
		ActionsPerSecond: 1000,
		ActionBurst:      1,
		PausePollEvery:   2 * time.Millisecond,
		ScenarioDir:      scenarioDir,
	})
	t.Cleanup(svc.Close)

	return &fixture{
		sim:         drv,
		svc:         svc,
		validator:   validator,
		store:       store,
		registry:    reg,
		scenarioDir: scenarioDir,
	}
}

func (f *fixture) session(t *testing.T) types.PlaybackSession {
	t.Helper()
	sess, ok := f.svc.Session()
	require.True(t, ok, "expected an active session")
	return sess
}

func (f *fixture) awaitState(t *testing.T, state types.PlaybackState, reason types.PauseReason) {
	t.Helper()
	require.Eventually(t, func() bool {
		sess, ok := f.svc.Session()
		return ok && sess.State == state && sess.PauseReason == reason
	}, time.Second, 2*time.Millisecond)
}

func (f *fixture) writeScenario(t *testing.T, name, body string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.scenarioDir, name), []byte(body), 0o644))
	return name
}

func TestStartEngagesMachinery(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)
	assert.Equal(t, types.StateRunning, sess.State)

	state, ok := f.svc.FocusState()
	require.True(t, ok)
	require.Eventually(t, func() bool {
		state, _ = f.svc.FocusState()
		return state.IsTargetFocused
	}, time.Second, 2*time.Millisecond)

	// The validator follows the session: runtime handles resolved from
	// the driver even though the app is not registered.
	target, ok := f.validator.TargetApplication()
	require.True(t, ok)
	assert.Equal(t, targetPID, target.ProcessID)
	assert.Equal(t, testWindow, target.WindowHandle)
	assert.Equal(t, types.AppStatusActive, target.Status)

	// The pump is live: a focus steal pauses, focus return resumes.
	f.sim.SetFocus(otherPID)
	f.awaitState(t, types.StatePaused, types.PauseFocusLost)
	f.sim.SetFocus(targetPID)
	f.awaitState(t, types.StateRunning, "")

	require.NoError(t, f.svc.Stop())
	_, ok = f.svc.Session()
	assert.False(t, ok)
	_, ok = f.svc.FocusState()
	assert.False(t, ok)
	_, ok = f.validator.TargetApplication()
	assert.False(t, ok)
}

func TestStartSecondSessionRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	_, err = f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.ErrorIs(t, err, playback.ErrPlaybackActive)
}

func TestStartResolvesRuntimeFromRegistry(t *testing.T) {
	f := newFixture(t)

	app, err := f.registry.Register(types.RegisteredApplication{
		Name:            "Editor",
		ProcessName:     "editor",
		DefaultStrategy: types.StrategyStrictError,
	})
	require.NoError(t, err)
	_, err = f.registry.AttachRuntime(app.ID, targetPID, testWindow)
	require.NoError(t, err)

	sess, err := f.svc.Start(app.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, targetPID, sess.TargetProcessID)
	assert.Equal(t, types.StrategyStrictError, sess.Strategy)

	// Registered window handle flows into the validator unchanged.
	target, ok := f.validator.TargetApplication()
	require.True(t, ok)
	assert.Equal(t, testWindow, target.WindowHandle)

	stored, err := f.registry.Get(app.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastSeenAt.After(app.LastSeenAt) || stored.LastSeenAt.Equal(app.LastSeenAt))

	require.NoError(t, f.svc.Stop())

	// An explicit strategy wins over the registered default.
	sess, err = f.svc.Start(app.ID, 0, types.StrategyIgnore)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyIgnore, sess.Strategy)
}

func TestStartWithoutRuntimeHandle(t *testing.T) {
	f := newFixture(t)

	app, err := f.registry.Register(types.RegisteredApplication{
		Name:        "Editor",
		ProcessName: "editor",
	})
	require.NoError(t, err)

	_, err = f.svc.Start(app.ID, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no attached runtime process")

	_, err = f.svc.Start("app_ghost", 0, "")
	require.ErrorIs(t, err, registry.ErrAppNotFound)
}

func TestHealthLoopCheckpointsNewFailures(t *testing.T) {
	f := newFixture(t)

	app, err := f.registry.Register(types.RegisteredApplication{
		Name:        "Editor",
		ProcessName: "editor",
	})
	require.NoError(t, err)
	_, err = f.registry.AttachRuntime(app.ID, targetPID, testWindow)
	require.NoError(t, err)

	_, err = f.svc.Start(app.ID, 0, "")
	require.NoError(t, err)

	f.sim.SetResponsive(targetPID, false)
	f.awaitState(t, types.StatePaused, types.PauseApplicationError)

	var snaps []types.ProgressSnapshot
	require.Eventually(t, func() bool {
		snaps, err = f.store.List()
		return err == nil && len(snaps) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, snaps[0].ErrorContext, "is not responding")
	assert.Equal(t, app.ID, snaps[0].TargetAppID)

	// The same failure kind is not checkpointed again on later probes.
	time.Sleep(60 * time.Millisecond)
	snaps, err = f.store.List()
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	stored, err := f.registry.Get(app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.AppStatusError, stored.Status)
	assert.Contains(t, stored.StatusDetail, "is not responding")
}

func TestRecoverGracefulStopDisengages(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	f.sim.RemoveProcess(targetPID)
	f.awaitState(t, types.StatePaused, types.PauseApplicationError)

	options, err := f.svc.RecoveryOptions()
	require.NoError(t, err)
	assert.Contains(t, options, types.RecoveryRestartApplication)

	require.NoError(t, f.svc.Recover(types.RecoveryGracefulStop))
	_, ok := f.svc.Session()
	assert.False(t, ok)
	_, ok = f.svc.FocusState()
	assert.False(t, ok)
}

func TestAbortKeepsMachineryUntilStop(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	require.NoError(t, f.svc.Abort("operator requested halt"))
	sess := f.session(t)
	assert.Equal(t, types.StateAborted, sess.State)
	assert.Equal(t, "operator requested halt", sess.AbortReason)

	_, ok := f.svc.FocusState()
	assert.True(t, ok, "monitoring should stay engaged while aborted")

	require.NoError(t, f.svc.Stop())
	_, ok = f.svc.FocusState()
	assert.False(t, ok)
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)
	require.NoError(t, f.svc.Pause(types.PauseUserRequested))

	snap, err := f.svc.SaveProgress()
	require.NoError(t, err)

	loaded, err := f.store.Load(snap.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, targetApp, loaded.TargetAppID)
	assert.Equal(t, types.StatePaused, loaded.State)

	require.NoError(t, f.svc.Stop())

	sess, err := f.svc.Restore(snap.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, sess.State)
	assert.Equal(t, types.PauseUserRequested, sess.PauseReason)
	assert.Equal(t, targetApp, sess.TargetAppID)

	_, ok := f.svc.FocusState()
	assert.True(t, ok, "restore should re-engage monitoring")
	target, ok := f.validator.TargetApplication()
	require.True(t, ok)
	assert.Equal(t, targetPID, target.ProcessID)

	require.NoError(t, f.svc.Resume())
	f.awaitState(t, types.StateRunning, "")
}

func TestCheckpointAndSnapshotManagement(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	first, err := f.svc.Checkpoint("before risky sequence")
	require.NoError(t, err)
	second, err := f.svc.SaveProgress()
	require.NoError(t, err)

	snaps, err := f.svc.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	latest, err := f.svc.LatestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, second.SnapshotID, latest.SnapshotID)

	require.NoError(t, f.svc.DeleteSnapshot(first.SnapshotID))
	snaps, err = f.svc.Snapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, second.SnapshotID, snaps[0].SnapshotID)
}

const smokeScenario = `
id: scn_smoke
name: Editor smoke
app_id: app_editor
steps:
  - label: greet
    action:
      type: keyboard_input
      text: hello
  - action:
      type: key_press
      key: enter
  - action:
      type: mouse_click
      point: {x: 320, y: 200}
`

func TestRunScenario(t *testing.T) {
	f := newFixture(t)
	name := f.writeScenario(t, "smoke.yaml", smokeScenario)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	report, err := f.svc.RunScenario(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "scn_smoke", report.ScenarioID)
	assert.Equal(t, 3, report.Executed)
	assert.Zero(t, report.Failed)

	journal := f.sim.Journal()
	require.Len(t, journal, 3)

	sess := f.session(t)
	assert.Equal(t, 3, sess.CurrentStep)
}

func TestRunScenarioRequiresSession(t *testing.T) {
	f := newFixture(t)
	name := f.writeScenario(t, "smoke.yaml", smokeScenario)

	_, err := f.svc.RunScenario(context.Background(), name)
	require.ErrorIs(t, err, playback.ErrNoActiveSession)
}

func TestRunScenarioTargetMismatch(t *testing.T) {
	f := newFixture(t)
	name := f.writeScenario(t, "other.yaml", `
id: scn_other
app_id: app_spreadsheet
steps:
  - action:
      type: key_press
      key: a
`)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	_, err = f.svc.RunScenario(context.Background(), name)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app_spreadsheet")
	assert.Contains(t, err.Error(), targetApp)
}

func TestRunScenarioSingleFlight(t *testing.T) {
	f := newFixture(t)
	slow := f.writeScenario(t, "slow.yaml", `
id: scn_slow
app_id: app_editor
steps:
  - action:
      type: key_press
      key: a
    delay: 300ms
`)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		_, err := f.svc.RunScenario(ctx, slow)
		runDone <- err
	}()

	require.Eventually(t, func() bool {
		_, err := f.svc.RunScenario(context.Background(), slow)
		return errors.Is(err, ErrRunInProgress)
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("scenario run did not stop on cancellation")
	}
}

func TestRunScenarioMissingFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Start(targetApp, targetPID, types.StrategyAutoPause)
	require.NoError(t, err)

	_, err = f.svc.RunScenario(context.Background(), "absent.yaml")
	require.Error(t, err)
}
