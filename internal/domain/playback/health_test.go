package playback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replayd/internal/shared/types"
)

func TestDetectApplicationClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.DetectApplicationClosure(ctx)
	require.ErrorIs(t, err, ErrNoActiveSession)

	f.start(t, types.StrategyAutoPause)

	closed, err := f.controller.DetectApplicationClosure(ctx)
	require.NoError(t, err)
	assert.False(t, closed)

	f.sim.RemoveProcess(targetPID)
	closed, err = f.controller.DetectApplicationClosure(ctx)
	require.NoError(t, err)
	assert.True(t, closed)

	// the probe alone never transitions
	assert.Equal(t, types.StateRunning, f.session(t).State)
}

func TestDetectApplicationUnresponsiveness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.DetectApplicationUnresponsiveness(ctx)
	require.ErrorIs(t, err, ErrNoActiveSession)

	f.start(t, types.StrategyAutoPause)

	hung, err := f.controller.DetectApplicationUnresponsiveness(ctx)
	require.NoError(t, err)
	assert.False(t, hung)

	f.sim.SetResponsive(targetPID, false)
	hung, err = f.controller.DetectApplicationUnresponsiveness(ctx)
	require.NoError(t, err)
	assert.True(t, hung)

	// a vanished process is closure's condition, not unresponsiveness
	f.sim.RemoveProcess(targetPID)
	hung, err = f.controller.DetectApplicationUnresponsiveness(ctx)
	require.NoError(t, err)
	assert.False(t, hung)
}

func TestDetectErrorConditionsHealthy(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	require.NoError(t, f.controller.DetectErrorConditions(context.Background()))
	assert.Equal(t, types.StateRunning, f.session(t).State)
	assert.Zero(t, f.notes.count("error"))
}

func TestDetectErrorConditionsClosure(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	f.sim.RemoveProcess(targetPID)
	err := f.controller.DetectErrorConditions(context.Background())

	var herr *HealthError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, HealthClosed, herr.Kind)
	assert.Equal(t, targetApp, herr.AppID)
	assert.Contains(t, herr.Error(), "has closed")
	assert.Contains(t, herr.Error(), "graceful_stop")
	assert.Contains(t, herr.Error(), "wait_and_retry")
	assert.ElementsMatch(t, []types.RecoveryStrategy{
		types.RecoveryGracefulStop,
		types.RecoveryWaitAndRetry,
		types.RecoveryRestartApplication,
		types.RecoveryManualIntervention,
	}, herr.Options)

	session := f.session(t)
	assert.Equal(t, types.StatePaused, session.State)
	assert.Equal(t, types.PauseApplicationError, session.PauseReason)
	require.NotNil(t, session.PausedAt)

	assert.Equal(t, 1, f.notes.count("error"))
	assert.Contains(t, f.notes.lastMessage("error"), "has closed")
}

func TestDetectErrorConditionsUnresponsive(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	f.sim.SetResponsive(targetPID, false)
	err := f.controller.DetectErrorConditions(context.Background())

	var herr *HealthError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, HealthUnresponsive, herr.Kind)
	assert.Contains(t, herr.Error(), "is not responding")

	session := f.session(t)
	assert.Equal(t, types.StatePaused, session.State)
	assert.Equal(t, types.PauseApplicationError, session.PauseReason)
}

func TestApplicationFailureWhileAlreadyPaused(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	require.NoError(t, f.controller.PausePlayback(types.PauseUserRequested))
	pausedAt := *f.session(t).PausedAt

	require.Error(t, f.controller.HandleApplicationClosure())

	session := f.session(t)
	assert.Equal(t, types.StatePaused, session.State)
	assert.Equal(t, types.PauseApplicationError, session.PauseReason)
	require.NotNil(t, session.PausedAt)
	assert.Equal(t, pausedAt, *session.PausedAt, "the open pause interval keeps its start")
}

func TestApplicationFailureWhenAborted(t *testing.T) {
	f := newFixture(t)
	f.start(t, types.StrategyAutoPause)

	require.NoError(t, f.controller.AbortPlayback("done for"))
	err := f.controller.HandleApplicationUnresponsiveness()

	var herr *HealthError
	require.ErrorAs(t, err, &herr, "the failure is still reported")
	assert.Equal(t, types.StateAborted, f.session(t).State, "aborted stays aborted")
	assert.Equal(t, "done for", f.session(t).AbortReason)
}

func TestHandleApplicationFailureNoSession(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.controller.HandleApplicationClosure(), ErrNoActiveSession)
	require.ErrorIs(t, f.controller.HandleApplicationUnresponsiveness(), ErrNoActiveSession)
	require.ErrorIs(t, f.controller.DetectErrorConditions(context.Background()), ErrNoActiveSession)
}
