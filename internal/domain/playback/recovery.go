package playback

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/shared/id"
	"github.com/replaykit/replayd/internal/shared/types"
)

// SaveProgress captures the current session as an immutable snapshot.
func (c *Controller) SaveProgress() (types.ProgressSnapshot, error) {
	return c.saveSnapshot("")
}

// SaveProgressWithError captures a snapshot annotated with the error
// context that prompted it.
func (c *Controller) SaveProgressWithError(errCtx string) (types.ProgressSnapshot, error) {
	if errCtx == "" {
		return types.ProgressSnapshot{}, fmt.Errorf("error context is required")
	}
	return c.saveSnapshot(errCtx)
}

// CreateRecoveryCheckpoint captures a snapshot before a risky phase so
// the session can be rebuilt if the phase destroys it.
func (c *Controller) CreateRecoveryCheckpoint(reason string) (types.ProgressSnapshot, error) {
	if reason == "" {
		reason = "recovery checkpoint"
	}
	return c.saveSnapshot(reason)
}

func (c *Controller) saveSnapshot(errCtx string) (types.ProgressSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return types.ProgressSnapshot{}, ErrNoActiveSession
	}

	snap := types.ProgressSnapshot{
		SnapshotID:      string(id.NewSnapshotID()),
		SessionID:       c.session.ID,
		TargetAppID:     c.session.TargetAppID,
		TargetProcessID: c.session.TargetProcessID,
		CurrentStep:     c.session.CurrentStep,
		State:           c.session.State,
		PauseReason:     c.session.PauseReason,
		AbortReason:     c.session.AbortReason,
		Strategy:        c.session.Strategy,
		ErrorContext:    errCtx,
		SavedAt:         time.Now(),
		StartedAt:       c.session.StartedAt,
	}
	if c.session.PausedAt != nil {
		t := *c.session.PausedAt
		snap.PausedAt = &t
	}

	c.metrics.IncSnapshotsSaved()
	c.logger.Info("Progress snapshot captured",
		zap.String("snapshot_id", snap.SnapshotID),
		zap.String("session_id", snap.SessionID),
		zap.Int("current_step", snap.CurrentStep))
	return snap, nil
}

// RestoreProgress rebuilds a session from a snapshot. The restored
// session is always paused(user_requested) regardless of the captured
// state; the operator inspects it and resumes explicitly. Pause
// accounting restarts from zero.
func (c *Controller) RestoreProgress(snap types.ProgressSnapshot) (types.PlaybackSession, error) {
	if snap.SessionID == "" || snap.TargetAppID == "" {
		return types.PlaybackSession{}, fmt.Errorf("snapshot missing session identity")
	}
	if snap.TargetProcessID == 0 {
		return types.PlaybackSession{}, ErrInvalidProcessID
	}
	if !snap.Strategy.Valid() {
		return types.PlaybackSession{}, fmt.Errorf("unknown focus-loss strategy %q", snap.Strategy)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return types.PlaybackSession{}, ErrPlaybackActive
	}

	if !snap.IsRecoverable() {
		c.logger.Warn("Restoring snapshot captured after an abort",
			zap.String("snapshot_id", snap.SnapshotID),
			zap.String("abort_reason", snap.AbortReason))
	}

	now := time.Now()
	c.session = &types.PlaybackSession{
		ID:              snap.SessionID,
		TargetAppID:     snap.TargetAppID,
		TargetProcessID: snap.TargetProcessID,
		Strategy:        snap.Strategy,
		State:           types.StatePaused,
		PauseReason:     types.PauseUserRequested,
		CurrentStep:     snap.CurrentStep,
		StartedAt:       snap.StartedAt,
		PausedAt:        &now,
	}
	c.stats = runStats{}

	c.metrics.IncSnapshotsRestored()
	c.metrics.SetSessionActive(true)
	c.metrics.RecordTransition(string(types.StatePaused), "restored")
	c.logger.Info("Session restored from snapshot",
		zap.String("snapshot_id", snap.SnapshotID),
		zap.String("session_id", snap.SessionID),
		zap.Int("current_step", snap.CurrentStep))
	return *c.session.Clone(), nil
}

// RecoveryOptions lists the strategies open to the operator right now.
// Graceful stop and wait-and-retry are always available; the
// destructive options appear only once the session is in an error
// state.
func (c *Controller) RecoveryOptions() ([]types.RecoveryStrategy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNoActiveSession
	}
	return c.recoveryOptionsLocked(), nil
}

func (c *Controller) recoveryOptionsLocked() []types.RecoveryStrategy {
	opts := []types.RecoveryStrategy{
		types.RecoveryGracefulStop,
		types.RecoveryWaitAndRetry,
	}
	errored := c.session.IsAborted() ||
		(c.session.IsPaused() && c.session.PauseReason == types.PauseApplicationError)
	if errored {
		opts = append(opts,
			types.RecoveryRestartApplication,
			types.RecoveryManualIntervention)
	}
	return opts
}

// AttemptRecovery applies one recovery strategy. Wait-and-retry parks
// the session in paused(application_error) until the operator resumes;
// graceful stop destroys it. The interactive strategies cannot run
// unattended and are rejected here.
func (c *Controller) AttemptRecovery(strategy types.RecoveryStrategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}

	switch strategy {
	case types.RecoveryWaitAndRetry:
		if c.session.IsAborted() {
			return &TransitionError{Op: "wait and retry", State: c.session.State}
		}
		switch {
		case c.session.IsRunning():
			c.pauseLocked(types.PauseApplicationError)
		case c.session.PauseReason != types.PauseApplicationError:
			c.session.PauseReason = types.PauseApplicationError
			c.metrics.RecordTransition(string(types.StatePaused), string(types.PauseApplicationError))
		}
		return nil

	case types.RecoveryGracefulStop:
		c.stopLocked()
		return nil

	case types.RecoveryRestartApplication, types.RecoveryManualIntervention:
		return fmt.Errorf("recovery strategy %s requires user interaction", strategy)

	default:
		return fmt.Errorf("unknown recovery strategy %q", strategy)
	}
}
