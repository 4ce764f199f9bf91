package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/domain/focus"
	"github.com/replaykit/replayd/internal/domain/validate"
	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/notify"
	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/shared/id"
	"github.com/replaykit/replayd/internal/shared/types"
)

// Controller owns the playback session state machine: at most one
// session, mutated by exactly one caller at a time. Focus events,
// action execution, health checks, and recovery all go through the
// same mutex, so every decision sees a consistent session.
type Controller struct {
	detector  platform.ApplicationDetector
	injector  platform.InputInjector
	validator *validate.Validator
	notifier  notify.Service
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	mu      sync.Mutex
	session *types.PlaybackSession
	monitor *focus.Monitor
	stats   runStats
}

// NewController wires the state machine to its capabilities. The
// notifier must be non-blocking (wrap slow sinks in notify.NewAsync).
func NewController(
	detector platform.ApplicationDetector,
	injector platform.InputInjector,
	validator *validate.Validator,
	notifier notify.Service,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
) *Controller {
	return &Controller{
		detector:  detector,
		injector:  injector,
		validator: validator,
		notifier:  notifier,
		logger:    logger.Named("playback"),
		metrics:   metrics,
	}
}

// StartPlayback creates a running session for the target. Fails with
// ErrPlaybackActive while any session exists.
func (c *Controller) StartPlayback(appID string, pid uint32, strategy types.FocusLossStrategy) (types.PlaybackSession, error) {
	if appID == "" {
		return types.PlaybackSession{}, fmt.Errorf("application id is required")
	}
	if pid == 0 {
		return types.PlaybackSession{}, ErrInvalidProcessID
	}
	if !strategy.Valid() {
		return types.PlaybackSession{}, fmt.Errorf("unknown focus-loss strategy %q", strategy)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return types.PlaybackSession{}, ErrPlaybackActive
	}

	c.session = &types.PlaybackSession{
		ID:              string(id.NewSessionID()),
		TargetAppID:     appID,
		TargetProcessID: pid,
		Strategy:        strategy,
		State:           types.StateRunning,
		StartedAt:       time.Now(),
	}
	c.stats = runStats{}

	c.metrics.IncSessionsStarted()
	c.metrics.SetSessionActive(true)
	c.metrics.RecordTransition(string(types.StateRunning), "started")
	c.logger.Info("Playback started",
		zap.String("session_id", c.session.ID),
		zap.String("app_id", appID),
		zap.Uint32("process_id", pid),
		zap.String("strategy", string(strategy)))
	return *c.session.Clone(), nil
}

// PausePlayback pauses a running session for the given reason.
func (c *Controller) PausePlayback(reason types.PauseReason) error {
	if !reason.Valid() {
		return fmt.Errorf("unknown pause reason %q", reason)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}
	if !c.session.IsRunning() {
		return &TransitionError{Op: "pause playback", State: c.session.State}
	}

	c.pauseLocked(reason)
	return nil
}

// ResumePlayback returns a paused session to running and accounts the
// pause interval.
func (c *Controller) ResumePlayback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}
	if !c.session.IsPaused() {
		return &TransitionError{Op: "resume playback", State: c.session.State}
	}

	c.resumeLocked("user_requested")
	return nil
}

// AbortPlayback terminates the session with the given reason text. The
// session object survives for inspection until StopPlayback.
func (c *Controller) AbortPlayback(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}
	if c.session.IsAborted() {
		return &TransitionError{Op: "abort playback", State: c.session.State}
	}

	c.abortLocked(text, "user_requested")
	return nil
}

// StopPlayback destroys the session. Valid in every state.
func (c *Controller) StopPlayback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoActiveSession
	}

	c.stopLocked()
	return nil
}

// Session returns a copy of the current session, if one exists.
func (c *Controller) Session() (types.PlaybackSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return types.PlaybackSession{}, false
	}
	return *c.session.Clone(), true
}

// AttachFocusMonitor binds the monitor consulted by focus verification.
// At most one monitor may be attached; detach the current one first.
func (c *Controller) AttachFocusMonitor(monitor *focus.Monitor) error {
	if monitor == nil {
		return fmt.Errorf("monitor is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.monitor != nil {
		return ErrMonitorAttached
	}
	c.monitor = monitor
	return nil
}

// DetachFocusMonitor releases the attachment. The monitor itself keeps
// running; its owner stops it.
func (c *Controller) DetachFocusMonitor() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.monitor == nil {
		return ErrNoMonitorAttached
	}
	c.monitor = nil
	return nil
}

// HasMonitor reports whether a monitor is attached.
func (c *Controller) HasMonitor() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitor != nil
}

// HandleFocusEvent applies the session's focus-loss policy to one
// event. Well-formed events always return nil, whether or not the
// policy acted; only malformed input is an error. Events naming a
// different target are ignored under every strategy.
func (c *Controller) HandleFocusEvent(ev types.FocusEvent) error {
	switch ev.Type {
	case types.FocusEventLost, types.FocusEventGained:
		if ev.AppID == "" || ev.ProcessID == 0 {
			return fmt.Errorf("malformed focus event: missing target identity")
		}
	case types.FocusEventError:
		// carries no target; logged below under every strategy
	default:
		return fmt.Errorf("malformed focus event: unknown type %q", ev.Type)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Type == types.FocusEventError {
		c.logger.Warn("Focus observation error", zap.String("error", ev.Err))
		return nil
	}
	if c.session == nil {
		return nil
	}
	if ev.AppID != c.session.TargetAppID || ev.ProcessID != c.session.TargetProcessID {
		c.logger.Debug("Ignoring focus event for different target",
			zap.String("event_app_id", ev.AppID),
			zap.Uint32("event_process_id", ev.ProcessID))
		return nil
	}

	switch c.session.Strategy {
	case types.StrategyAutoPause:
		c.applyAutoPauseLocked(ev)
	case types.StrategyStrictError:
		c.applyStrictErrorLocked(ev)
	case types.StrategyIgnore:
		if ev.Type == types.FocusEventLost {
			c.logger.Warn("Target lost focus, continuing per ignore strategy",
				zap.String("app_id", ev.AppID),
				zap.Stringp("new_focused_app", ev.NewFocusedApp))
		}
	}
	return nil
}

// applyAutoPauseLocked pauses on loss from running and resumes on gain
// from a focus-loss pause. Manual and error pauses are left alone.
func (c *Controller) applyAutoPauseLocked(ev types.FocusEvent) {
	switch ev.Type {
	case types.FocusEventLost:
		if c.session.IsRunning() {
			c.pauseLocked(types.PauseFocusLost)
		}
	case types.FocusEventGained:
		if c.session.IsPaused() && c.session.PauseReason == types.PauseFocusLost {
			c.resumeLocked("focus_gained")
		}
	}
}

// applyStrictErrorLocked aborts the session the moment focus is lost.
// Regained focus never revives an aborted session.
func (c *Controller) applyStrictErrorLocked(ev types.FocusEvent) {
	if ev.Type != types.FocusEventLost || c.session.IsAborted() {
		return
	}

	newApp := "an unknown application"
	if ev.NewFocusedApp != nil && *ev.NewFocusedApp != "" {
		newApp = *ev.NewFocusedApp
	}
	msg := fmt.Sprintf(
		"Target application %s lost focus to %s. Automation aborted immediately for safety. [Error Report ID: %s]",
		c.session.TargetAppID, newApp, uuid.New().String())

	c.abortLocked(msg, "focus_lost")
}

// VerifyFocusBeforeAction gates one action on the session and focus
// state. Failure never mutates the session.
func (c *Controller) VerifyFocusBeforeAction() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verifyLocked()
}

func (c *Controller) verifyLocked() error {
	if c.session == nil {
		return ErrNoActiveSession
	}
	if c.monitor == nil || !c.monitor.IsMonitoring() {
		c.metrics.IncFocusVerifyFailed()
		return &FocusVerificationError{Reason: "no focus monitoring active"}
	}
	if c.session.IsPaused() {
		c.metrics.IncFocusVerifyFailed()
		return &FocusVerificationError{
			Reason: fmt.Sprintf("playback is paused (%s)", c.session.PauseReason),
		}
	}
	if c.session.IsAborted() {
		c.metrics.IncFocusVerifyFailed()
		return &FocusVerificationError{
			Reason: "playback was aborted: " + c.session.AbortReason,
		}
	}
	if !c.monitor.CurrentFocusState().IsTargetFocused {
		c.metrics.IncFocusVerifyFailed()
		return &FocusVerificationError{
			Reason: fmt.Sprintf("target application %s does not hold focus", c.session.TargetAppID),
		}
	}
	return nil
}

// ExecuteAction runs the full gate for one action: focus verification,
// validation, then injection. Failures are returned to the caller and
// never retried here.
func (c *Controller) ExecuteAction(ctx context.Context, action types.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.verifyLocked(); err != nil {
		return err
	}

	res := c.validator.ValidateAction(ctx, action)
	if !res.Valid {
		c.stats.failed++
		return &ValidationError{Result: res}
	}

	start := time.Now()
	err := platform.Inject(ctx, c.injector, action)
	elapsed := time.Since(start)

	if err != nil {
		c.stats.failed++
		c.metrics.RecordAction(string(action.Type), "failed", elapsed)
		c.logger.Warn("Action injection failed",
			zap.String("action", action.Describe()),
			zap.Error(err))
		return fmt.Errorf("inject %s: %w", action.Type, err)
	}

	c.session.CurrentStep++
	c.stats.executed++
	c.stats.latencies = append(c.stats.latencies, elapsed.Seconds())
	c.metrics.RecordAction(string(action.Type), "success", elapsed)
	return nil
}

// pauseLocked moves a running session to paused and notifies.
func (c *Controller) pauseLocked(reason types.PauseReason) {
	now := time.Now()
	c.session.State = types.StatePaused
	c.session.PauseReason = reason
	c.session.PausedAt = &now

	c.metrics.RecordTransition(string(types.StatePaused), string(reason))
	c.logger.Info("Playback paused",
		zap.String("session_id", c.session.ID),
		zap.String("reason", string(reason)))
	c.notifier.NotifyAutomationPaused(c.session.TargetAppID,
		fmt.Sprintf("playback paused (%s)", reason))
}

// resumeLocked returns a paused session to running. The accounted pause
// interval is always positive so TotalPauseDuration strictly grows
// across a pause/resume cycle.
func (c *Controller) resumeLocked(cause string) {
	now := time.Now()
	interval := time.Nanosecond
	if c.session.PausedAt != nil {
		if d := now.Sub(*c.session.PausedAt); d > interval {
			interval = d
		}
	}

	c.session.State = types.StateRunning
	c.session.PauseReason = ""
	c.session.PausedAt = nil
	c.session.ResumedAt = &now
	c.session.TotalPauseDuration += interval

	c.metrics.RecordPauseInterval(interval)
	c.metrics.RecordTransition(string(types.StateRunning), cause)
	c.logger.Info("Playback resumed",
		zap.String("session_id", c.session.ID),
		zap.String("cause", cause),
		zap.Duration("paused_for", interval))
	c.notifier.NotifyAutomationResumed(c.session.TargetAppID,
		fmt.Sprintf("playback resumed after %s", interval))
}

// abortLocked terminates the session with reason text.
func (c *Controller) abortLocked(text, cause string) {
	c.session.State = types.StateAborted
	c.session.AbortReason = text

	c.metrics.RecordTransition(string(types.StateAborted), cause)
	c.logger.Error("Playback aborted",
		zap.String("session_id", c.session.ID),
		zap.String("cause", cause),
		zap.String("reason", text))
	c.notifier.NotifyApplicationError(c.session.TargetAppID, text)
}

// stopLocked destroys the session.
func (c *Controller) stopLocked() {
	sessionID := c.session.ID
	c.session = nil
	c.stats = runStats{}

	c.metrics.IncSessionsStopped()
	c.metrics.SetSessionActive(false)
	c.metrics.RecordTransition("stopped", "stop")
	c.logger.Info("Playback stopped", zap.String("session_id", sessionID))
}
