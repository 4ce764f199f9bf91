package playback

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/shared/types"
)

// DetectApplicationClosure probes whether the target process has
// exited. The probe alone never changes session state.
func (c *Controller) DetectApplicationClosure(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detectClosureLocked(ctx)
}

func (c *Controller) detectClosureLocked(ctx context.Context) (bool, error) {
	if c.session == nil {
		return false, ErrNoActiveSession
	}

	exists, err := c.detector.ProcessExists(ctx, c.session.TargetProcessID)
	if err != nil {
		return false, fmt.Errorf("probe process %d: %w", c.session.TargetProcessID, err)
	}
	c.metrics.RecordHealthCheck("closure", exists)
	return !exists, nil
}

// DetectApplicationUnresponsiveness probes whether the target process
// is alive but not answering. A vanished process reports false here;
// closure detection owns that condition.
func (c *Controller) DetectApplicationUnresponsiveness(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detectUnresponsiveLocked(ctx)
}

func (c *Controller) detectUnresponsiveLocked(ctx context.Context) (bool, error) {
	if c.session == nil {
		return false, ErrNoActiveSession
	}

	responsive, err := c.detector.ProcessResponsive(ctx, c.session.TargetProcessID)
	if errors.Is(err, platform.ErrProcessNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe process %d: %w", c.session.TargetProcessID, err)
	}
	c.metrics.RecordHealthCheck("responsiveness", responsive)
	return !responsive, nil
}

// DetectErrorConditions runs the full health sweep: closure first, then
// responsiveness. On a detected failure the session moves to
// paused(application_error) and the returned HealthError names the
// failure and lists the open recovery options. A healthy target returns
// nil with no state change.
func (c *Controller) DetectErrorConditions(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	closed, err := c.detectClosureLocked(ctx)
	if err != nil {
		return err
	}
	if closed {
		return c.applicationFailureLocked(HealthClosed)
	}

	unresponsive, err := c.detectUnresponsiveLocked(ctx)
	if err != nil {
		return err
	}
	if unresponsive {
		return c.applicationFailureLocked(HealthUnresponsive)
	}
	return nil
}

// HandleApplicationClosure records that the target closed, without
// probing. Used when closure is learned out of band.
func (c *Controller) HandleApplicationClosure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}
	return c.applicationFailureLocked(HealthClosed)
}

// HandleApplicationUnresponsiveness records that the target stopped
// answering, without probing.
func (c *Controller) HandleApplicationUnresponsiveness() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}
	return c.applicationFailureLocked(HealthUnresponsive)
}

// applicationFailureLocked moves the session to
// paused(application_error) and reports the failure. A running session
// pauses; a session already paused keeps its pause timestamp and only
// the reason changes; an aborted session stays aborted. The failure is
// reported in every case.
func (c *Controller) applicationFailureLocked(kind HealthKind) *HealthError {
	switch {
	case c.session.IsRunning():
		c.pauseLocked(types.PauseApplicationError)
	case c.session.IsPaused() && c.session.PauseReason != types.PauseApplicationError:
		c.session.PauseReason = types.PauseApplicationError
		c.metrics.RecordTransition(string(types.StatePaused), string(types.PauseApplicationError))
	}

	herr := &HealthError{
		Kind:    kind,
		AppID:   c.session.TargetAppID,
		Options: c.recoveryOptionsLocked(),
	}
	c.logger.Error("Application failure detected",
		zap.String("session_id", c.session.ID),
		zap.String("kind", string(kind)))
	c.notifier.NotifyApplicationError(c.session.TargetAppID, herr.Error())
	return herr
}
