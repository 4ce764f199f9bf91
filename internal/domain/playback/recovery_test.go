package playback

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replayd/internal/shared/types"
)

func TestSaveProgress(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.SaveProgress()
	require.ErrorIs(t, err, ErrNoActiveSession)

	session := f.start(t, types.StrategyAutoPause)
	require.NoError(t, f.controller.ExecuteAction(context.Background(), types.NewKeyPress("a")))

	snap, err := f.controller.SaveProgress()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(snap.SnapshotID, "snap_"), "snapshot id %q", snap.SnapshotID)
	assert.Equal(t, session.ID, snap.SessionID)
	assert.Equal(t, targetApp, snap.TargetAppID)
	assert.Equal(t, targetPID, snap.TargetProcessID)
	assert.Equal(t, 1, snap.CurrentStep)
	assert.Equal(t, types.StateRunning, snap.State)
	assert.Equal(t, types.StrategyAutoPause, snap.Strategy)
	assert.Empty(t, snap.ErrorContext)
	assert.True(t, snap.StartedAt.Equal(session.StartedAt))
	assert.WithinDuration(t, time.Now(), snap.SavedAt, time.Second)
	assert.Nil(t, snap.PausedAt)
	assert.True(t, snap.IsRecoverable())
}

func TestSaveProgressWhilePaused(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)
	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))

	snap, err := f.controller.SaveProgress()
	require.NoError(t, err)

	session := f.session(t)
	assert.Equal(t, types.StatePaused, snap.State)
	assert.Equal(t, types.PauseUserRequested, snap.PauseReason)
	require.NotNil(t, snap.PausedAt)
	assert.Equal(t, *session.PausedAt, *snap.PausedAt)
	assert.NotSame(t, session.PausedAt, snap.PausedAt, "snapshot must not alias session state")
}

func TestSaveProgressWithError(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyStrictError)

	_, err := f.controller.SaveProgressWithError("")
	require.ErrorContains(t, err, "error context is required")

	snap, err := f.controller.SaveProgressWithError("window server hiccup")
	require.NoError(t, err)
	assert.Equal(t, "window server hiccup", snap.ErrorContext)
}

func TestCreateRecoveryCheckpoint(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	snap, err := f.controller.CreateRecoveryCheckpoint("")
	require.NoError(t, err)
	assert.Equal(t, "recovery checkpoint", snap.ErrorContext)

	snap, err = f.controller.CreateRecoveryCheckpoint("before risky dialog")
	require.NoError(t, err)
	assert.Equal(t, "before risky dialog", snap.ErrorContext)
}

func TestRestoreProgress(t *testing.T) {
	f := newFixture(t)
	started := f.start(t, types.StrategyStrictError)
	require.NoError(t, f.controller.ExecuteAction(context.Background(), types.NewKeyPress("a")))
	require.NoError(t, f.controller.ExecuteAction(context.Background(), types.NewKeyPress("b")))

	snap, err := f.controller.SaveProgress()
	require.NoError(t, err)

	// restore is rejected while any session is live
	_, err = f.controller.RestoreProgress(snap)
	require.ErrorIs(t, err, ErrPlaybackActive)

	require.NoError(t, f.controller.StopPlayback())
	restored, err := f.controller.RestoreProgress(snap)
	require.NoError(t, err)

	// identity and position come back exactly
	assert.Equal(t, started.ID, restored.ID)
	assert.Equal(t, targetApp, restored.TargetAppID)
	assert.Equal(t, targetPID, restored.TargetProcessID)
	assert.Equal(t, types.StrategyStrictError, restored.Strategy)
	assert.Equal(t, 2, restored.CurrentStep)
	assert.True(t, restored.StartedAt.Equal(started.StartedAt))

	// a restored session always awaits an explicit resume
	assert.Equal(t, types.StatePaused, restored.State)
	assert.Equal(t, types.PauseUserRequested, restored.PauseReason)
	require.NotNil(t, restored.PausedAt)
	assert.Zero(t, restored.TotalPauseDuration, "pause accounting restarts")
	assert.Nil(t, restored.ResumedAt)

	require.NoError(t, f.controller.ResumePlayback())
	assert.Equal(t, types.StateRunning, f.session(t).State)
}

func TestRestoreProgressAlwaysPausedEvenFromRunningSnapshot(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	snap, err := f.controller.SaveProgress()
	require.NoError(t, err)
	require.Equal(t, types.StateRunning, snap.State)

	require.NoError(t, f.controller.StopPlayback())
	restored, err := f.controller.RestoreProgress(snap)
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, restored.State)
	assert.Equal(t, types.PauseUserRequested, restored.PauseReason)
}

func TestRestoreProgressValidation(t *testing.T) {
	f := newFixture(t)

	valid := types.ProgressSnapshot{
		SnapshotID:      "snap_x",
		SessionID:       "sess_x",
		TargetAppID:     targetApp,
		TargetProcessID: targetPID,
		Strategy:        types.StrategyAutoPause,
		State:           types.StateRunning,
		SavedAt:         time.Now(),
		StartedAt:       time.Now(),
	}

	missingID := valid
	missingID.SessionID = ""
	_, err := f.controller.RestoreProgress(missingID)
	require.ErrorContains(t, err, "missing session identity")

	missingApp := valid
	missingApp.TargetAppID = ""
	_, err = f.controller.RestoreProgress(missingApp)
	require.ErrorContains(t, err, "missing session identity")

	zeroPID := valid
	zeroPID.TargetProcessID = 0
	_, err = f.controller.RestoreProgress(zeroPID)
	require.ErrorIs(t, err, ErrInvalidProcessID)

	badStrategy := valid
	badStrategy.Strategy = "improvise"
	_, err = f.controller.RestoreProgress(badStrategy)
	require.ErrorContains(t, err, "unknown focus-loss strategy")

	_, ok := f.controller.Session()
	assert.False(t, ok, "rejected restores must not leave a session")
}

func TestRestoreAbortedSnapshotIsPermissive(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyStrictError)
	require.NoError(t, f.controller.AbortPlayback("window crashed"))

	snap, err := f.controller.SaveProgress()
	require.NoError(t, err)
	assert.False(t, snap.IsRecoverable())
	assert.Equal(t, "window crashed", snap.AbortReason)

	require.NoError(t, f.controller.StopPlayback())
	restored, err := f.controller.RestoreProgress(snap)
	require.NoError(t, err, "restore stays permissive for aborted snapshots")
	assert.Equal(t, types.StatePaused, restored.State)
	assert.Equal(t, types.PauseUserRequested, restored.PauseReason)
	assert.Empty(t, restored.AbortReason)
}

func TestRecoveryOptions(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.RecoveryOptions()
	require.ErrorIs(t, err, ErrNoActiveSession)

	f.start(t, types.StrategyAutoPause)

	base := []types.RecoveryStrategy{
		types.RecoveryGracefulStop,
		types.RecoveryWaitAndRetry,
	}
	all := append(base,
		types.RecoveryRestartApplication,
		types.RecoveryManualIntervention)

	opts, err := f.controller.RecoveryOptions()
	require.NoError(t, err)
	assert.Equal(t, base, opts, "a healthy running session offers the safe pair")

	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	opts, err = f.controller.RecoveryOptions()
	require.NoError(t, err)
	assert.Equal(t, base, opts, "a manual pause is not an error state")

	require.Error(t, f.controller.HandleApplicationClosure())
	opts, err = f.controller.RecoveryOptions()
	require.NoError(t, err)
	assert.Equal(t, all, opts)

	require.NoError(t, f.controller.AbortPlayback("x"))
	opts, err = f.controller.RecoveryOptions()
	require.NoError(t, err)
	assert.Equal(t, all, opts)
}

func TestAttemptRecoveryWaitAndRetry(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.controller.AttemptRecovery(types.RecoveryWaitAndRetry), ErrNoActiveSession)

	f.start(t, types.StrategyAutoPause)

	require.NoError(t, f.controller.AttemptRecovery(types.RecoveryWaitAndRetry))
	session := f.session(t)
	assert.Equal(t, types.StatePaused, session.State)
	assert.Equal(t, types.PauseApplicationError, session.PauseReason)
	require.NotNil(t, session.PausedAt)

	// from a manual pause the reason flips but the interval keeps running
	require.NoError(t, f.controller.ResumePlayback())
	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	pausedAt := *f.session(t).PausedAt
	require.NoError(t, f.controller.AttemptRecovery(types.RecoveryWaitAndRetry))
	session = f.session(t)
	assert.Equal(t, types.PauseApplicationError, session.PauseReason)
	assert.Equal(t, pausedAt, *session.PausedAt)

	require.NoError(t, f.controller.AbortPlayback("x"))
	var terr *TransitionError
	require.ErrorAs(t, f.controller.AttemptRecovery(types.RecoveryWaitAndRetry), &terr)
}

func TestAttemptRecoveryGracefulStop(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)
	require.Error(t, f.controller.HandleApplicationClosure())

	require.NoError(t, f.controller.AttemptRecovery(types.RecoveryGracefulStop))
	_, ok := f.controller.Session()
	assert.False(t, ok)
}

func TestAttemptRecoveryInteractiveRejected(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	err := f.controller.AttemptRecovery(types.RecoveryRestartApplication)
	require.ErrorContains(t, err, "requires user interaction")

	err = f.controller.AttemptRecovery(types.RecoveryManualIntervention)
	require.ErrorContains(t, err, "requires user interaction")

	err = f.controller.AttemptRecovery("reboot_universe")
	require.ErrorContains(t, err, "unknown recovery strategy")

	assert.Equal(t, types.StateRunning, f.session(t).State)
}
