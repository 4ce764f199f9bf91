package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/scenario"
	"github.com/replaykit/replayd/internal/shared/types"
)

const (
	defaultActionsPerSecond = 5.0
	defaultPausePoll        = 100 * time.Millisecond
)

// RunnerConfig tunes scenario pacing.
type RunnerConfig struct {
	// ActionsPerSecond caps the injection rate. Zero selects the default.
	ActionsPerSecond float64
	// Burst is the rate limiter burst. Zero selects 1.
	Burst int
	// PausePollEvery is the interval between session re-checks while the
	// session is paused or focus has not returned.
	PausePollEvery time.Duration
}

// RunReport summarizes one scenario run.
type RunReport struct {
	ScenarioID string    `json:"scenario_id"`
	Executed   int       `json:"executed"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Runner drives a scenario through the controller, honoring pauses and
// pacing injections. The controller still applies the full per-action
// gate; the runner only sequences.
type Runner struct {
	controller *Controller
	logger     *logging.Logger
	cfg        RunnerConfig
}

// NewRunner creates a runner for the controller.
func NewRunner(controller *Controller, logger *logging.Logger, cfg RunnerConfig) *Runner {
	if cfg.ActionsPerSecond <= 0 {
		cfg.ActionsPerSecond = defaultActionsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.PausePollEvery <= 0 {
		cfg.PausePollEvery = defaultPausePoll
	}
	return &Runner{
		controller: controller,
		logger:     logger.Named("runner"),
		cfg:        cfg,
	}
}

// errSessionGone distinguishes an external stop from a failure inside
// waitRunnable.
var errSessionGone = errors.New("session stopped")

// Run replays the scenario against the current session. When events is
// non-nil a pump goroutine consumes it for the duration of the run, so
// focus-loss policies fire while actions execute. A paused session
// suspends the run; an aborted session or a cancelled ctx ends it with
// an error; a stopped session ends it cleanly.
//
// A step blocked by focus verification is retried in place once focus
// or the session recovers. Steps rejected by validation or failed by
// the injector are counted and skipped.
func (r *Runner) Run(ctx context.Context, scn *scenario.Scenario, events <-chan types.FocusEvent) (report RunReport, err error) {
	if err := scn.Validate(); err != nil {
		return report, err
	}
	if !r.controller.HasMonitor() {
		return report, ErrNoMonitorAttached
	}

	report.ScenarioID = scn.ID
	report.StartedAt = time.Now()
	defer func() { report.FinishedAt = time.Now() }()

	if events != nil {
		pumpCtx, cancel := context.WithCancel(ctx)
		pumpDone := make(chan struct{})
		go func() {
			defer close(pumpDone)
			PumpEvents(pumpCtx, r.controller, events)
		}()
		defer func() {
			cancel()
			<-pumpDone
		}()
	}

	limiter := rate.NewLimiter(rate.Limit(r.cfg.ActionsPerSecond), r.cfg.Burst)
	r.logger.Info("Scenario run starting",
		zap.String("scenario_id", scn.ID),
		zap.Int("steps", len(scn.Steps)))

	for i := 0; i < len(scn.Steps); {
		step := scn.Steps[i]

		if waitErr := r.waitRunnable(ctx); waitErr != nil {
			if errors.Is(waitErr, errSessionGone) {
				r.logger.Info("Session stopped during scenario",
					zap.String("scenario_id", scn.ID), zap.Int("step", i))
				return report, nil
			}
			return report, waitErr
		}
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return report, waitErr
		}
		if d := step.Delay.Std(); d > 0 {
			if waitErr := sleepCtx(ctx, d); waitErr != nil {
				return report, waitErr
			}
		}

		execErr := r.controller.ExecuteAction(ctx, step.Action)
		switch {
		case execErr == nil:
			report.Executed++
			i++
		case errors.Is(execErr, ErrNoActiveSession):
			r.logger.Info("Session stopped during scenario",
				zap.String("scenario_id", scn.ID), zap.Int("step", i))
			return report, nil
		case isFocusVerification(execErr):
			r.logger.Debug("Step blocked by focus verification, retrying",
				zap.Int("step", i), zap.Error(execErr))
			if waitErr := sleepCtx(ctx, r.cfg.PausePollEvery); waitErr != nil {
				return report, waitErr
			}
		default:
			report.Failed++
			r.logger.Warn("Step failed",
				zap.Int("step", i),
				zap.String("action", step.Action.Describe()),
				zap.Error(execErr))
			i++
		}
	}

	r.logger.Info("Scenario run finished",
		zap.String("scenario_id", scn.ID),
		zap.Int("executed", report.Executed),
		zap.Int("failed", report.Failed))
	return report, nil
}

// waitRunnable blocks until the session is running. A stopped session
// returns errSessionGone; an aborted session returns its abort reason.
func (r *Runner) waitRunnable(ctx context.Context) error {
	for {
		session, ok := r.controller.Session()
		if !ok {
			return errSessionGone
		}
		if session.IsAborted() {
			return fmt.Errorf("scenario aborted: %s", session.AbortReason)
		}
		if session.IsRunning() {
			return nil
		}
		if err := sleepCtx(ctx, r.cfg.PausePollEvery); err != nil {
			return err
		}
	}
}

func isFocusVerification(err error) bool {
	var fve *FocusVerificationError
	return errors.As(err, &fve)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
