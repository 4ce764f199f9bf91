package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/domain/focus"
	"github.com/replaykit/replayd/internal/domain/playback"
	"github.com/replaykit/replayd/internal/domain/registry"
	"github.com/replaykit/replayd/internal/domain/snapshot"
	"github.com/replaykit/replayd/internal/domain/validate"
	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/scenario"
	"github.com/replaykit/replayd/internal/shared/types"
)

// ErrRunInProgress is returned when a scenario run is requested while
// another run is still executing.
var ErrRunInProgress = errors.New("a scenario run is already in progress")

const defaultHealthCheckEvery = 2 * time.Second

// Config tunes the per-session machinery.
type Config struct {
	// FocusEventBuffer sizes the monitor event channel.
	FocusEventBuffer int
	// HealthCheckEvery is the interval between error-condition probes.
	HealthCheckEvery time.Duration
	// ActionsPerSecond, ActionBurst and PausePollEvery tune scenario runs.
	ActionsPerSecond float64
	ActionBurst      int
	PausePollEvery   time.Duration
	// ScenarioDir anchors relative scenario paths.
	ScenarioDir string
}

// lifecycle holds everything that lives exactly as long as one session:
// the focus monitor and the goroutines pumping its events and probing
// application health.
type lifecycle struct {
	monitor *focus.Monitor
	cancel  context.CancelFunc
	done    chan struct{}
}

// Service owns the live playback wiring. The controller holds the state
// machine; the Service builds a focus monitor per session, attaches it,
// runs the event pump and the periodic health probe, persists recovery
// checkpoints, and tears everything down on stop.
type Service struct {
	controller *playback.Controller
	runner     *playback.Runner
	validator  *validate.Validator
	store      *snapshot.Store
	registry   *registry.Manager
	driver     platform.Driver
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	cfg        Config

	mu          sync.Mutex
	active      *lifecycle
	runInFlight bool
}

// NewService wires a Service around an existing controller. The
// validator must be the one the controller gates actions with; the
// Service keeps its target aligned with the live session.
func NewService(
	controller *playback.Controller,
	validator *validate.Validator,
	store *snapshot.Store,
	reg *registry.Manager,
	driver platform.Driver,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
	cfg Config,
) *Service {
	if cfg.HealthCheckEvery <= 0 {
		cfg.HealthCheckEvery = defaultHealthCheckEvery
	}
	return &Service{
		controller: controller,
		runner: playback.NewRunner(controller, logger, playback.RunnerConfig{
			ActionsPerSecond: cfg.ActionsPerSecond,
			Burst:            cfg.ActionBurst,
			PausePollEvery:   cfg.PausePollEvery,
		}),
		validator: validator,
		store:     store,
		registry:  reg,
		driver:    driver,
		logger:    logger.Named("session"),
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Start begins playback against a target application and engages the
// focus monitor, event pump and health probe. A zero pid is resolved
// from the registered application's attached runtime handle. An empty
// strategy falls back to the registered default, then to auto-pause.
func (s *Service) Start(appID string, pid uint32, strategy types.FocusLossStrategy) (types.PlaybackSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appID != "" && pid == 0 {
		app, err := s.registry.Get(appID)
		if err != nil {
			return types.PlaybackSession{}, err
		}
		if app.ProcessID == 0 {
			return types.PlaybackSession{}, fmt.Errorf("application %s has no attached runtime process", appID)
		}
		pid = app.ProcessID
	}
	if strategy == "" {
		strategy = s.defaultStrategy(appID)
	}

	sess, err := s.controller.StartPlayback(appID, pid, strategy)
	if err != nil {
		return types.PlaybackSession{}, err
	}
	if err := s.engageLocked(appID, pid); err != nil {
		_ = s.controller.StopPlayback()
		return types.PlaybackSession{}, err
	}

	// Best effort: only registered applications track last-seen.
	_ = s.registry.MarkSeen(appID)

	s.logger.WithSession(sess.ID).Info("Playback session engaged",
		zap.String("app_id", appID),
		zap.Uint32("pid", pid),
		zap.String("strategy", string(strategy)))
	return sess, nil
}

func (s *Service) defaultStrategy(appID string) types.FocusLossStrategy {
	if app, err := s.registry.Get(appID); err == nil && app.DefaultStrategy.Valid() {
		return app.DefaultStrategy
	}
	return types.StrategyAutoPause
}

// engageLocked builds and attaches the per-session machinery. Caller
// holds s.mu and has already established a controller session.
func (s *Service) engageLocked(appID string, pid uint32) error {
	var opts []focus.Option
	if s.cfg.FocusEventBuffer > 0 {
		opts = append(opts, focus.WithEventBuffer(s.cfg.FocusEventBuffer))
	}
	monitor := focus.NewMonitor(s.driver, s.logger, s.metrics, opts...)

	events, err := monitor.StartMonitoring(appID, pid)
	if err != nil {
		return fmt.Errorf("start focus monitoring: %w", err)
	}
	if err := s.controller.AttachFocusMonitor(monitor); err != nil {
		_ = monitor.StopMonitoring()
		return err
	}
	s.validator.SetTargetApplication(s.validationTarget(appID, pid))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			playback.PumpEvents(ctx, s.controller, events)
		}()
		go func() {
			defer wg.Done()
			s.healthLoop(ctx)
		}()
		wg.Wait()
	}()

	s.active = &lifecycle{monitor: monitor, cancel: cancel, done: done}
	return nil
}

// validationTarget assembles the application the validator should gate
// actions against: the registered record when one exists, with runtime
// handles filled in from the live session.
func (s *Service) validationTarget(appID string, pid uint32) types.RegisteredApplication {
	target, err := s.registry.Get(appID)
	if err != nil {
		target = types.RegisteredApplication{ID: appID, Name: appID, ProcessName: appID}
	}
	target.ProcessID = pid
	if target.WindowHandle == types.NoWindow {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if handle, err := s.driver.ResolveWindow(ctx, pid); err == nil {
			target.WindowHandle = handle
		}
	}
	target.Status = types.AppStatusActive
	return target
}

// disengageLocked stops the pump and health goroutines, the monitor and
// the controller attachment. Idempotent. Caller holds s.mu.
func (s *Service) disengageLocked() {
	lc := s.active
	if lc == nil {
		return
	}
	s.active = nil

	lc.cancel()
	<-lc.done
	_ = lc.monitor.StopMonitoring()
	if err := s.controller.DetachFocusMonitor(); err != nil && !errors.Is(err, playback.ErrNoMonitorAttached) {
		s.logger.Warn("Detaching focus monitor failed", zap.Error(err))
	}
	s.validator.ClearTargetApplication()
}

// healthLoop probes for application error conditions until the session
// lifecycle ends. On a new failure it persists a recovery checkpoint
// and marks the registered application errored.
func (s *Service) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HealthCheckEvery)
	defer ticker.Stop()

	var lastKind playback.HealthKind
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := s.controller.DetectErrorConditions(ctx)
		if err == nil {
			lastKind = ""
			continue
		}

		var herr *playback.HealthError
		if !errors.As(err, &herr) {
			// No session or a probe failure; nothing to checkpoint.
			continue
		}
		if herr.Kind == lastKind {
			continue
		}
		lastKind = herr.Kind
		s.checkpointFailure(herr)
	}
}

func (s *Service) checkpointFailure(herr *playback.HealthError) {
	snap, err := s.controller.SaveProgressWithError(herr.Error())
	if err != nil {
		s.logger.Warn("Could not capture failure snapshot", zap.Error(err))
		return
	}
	if err := s.store.Save(snap); err != nil {
		s.logger.Error("Could not persist failure snapshot",
			zap.String("snapshot_id", snap.SnapshotID), zap.Error(err))
		return
	}
	s.logger.Info("Failure checkpoint persisted",
		zap.String("snapshot_id", snap.SnapshotID),
		zap.String("kind", string(herr.Kind)))

	_ = s.registry.SetStatus(herr.AppID, types.AppStatusError, herr.Error())
}

// Stop ends the session and tears down its machinery. The teardown runs
// even when no session exists, so a half-engaged state never survives.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.controller.StopPlayback()
	s.disengageLocked()
	return err
}

// Pause pauses the active session.
func (s *Service) Pause(reason types.PauseReason) error {
	return s.controller.PausePlayback(reason)
}

// Resume resumes a paused session.
func (s *Service) Resume() error {
	return s.controller.ResumePlayback()
}

// Abort marks the session aborted. The monitor and pump stay engaged so
// the aborted state remains observable until Stop.
func (s *Service) Abort(text string) error {
	return s.controller.AbortPlayback(text)
}

// Session returns a copy of the current session, if any.
func (s *Service) Session() (types.PlaybackSession, bool) {
	return s.controller.Session()
}

// Statistics returns live statistics for the current session.
func (s *Service) Statistics() (playback.SessionStatistics, error) {
	return s.controller.Statistics()
}

// FocusState reports the monitor's view of the target, if a session is
// engaged.
func (s *Service) FocusState() (types.FocusState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return types.FocusState{}, false
	}
	return s.active.monitor.CurrentFocusState(), true
}

// SaveProgress captures and persists a snapshot of the current session.
func (s *Service) SaveProgress() (types.ProgressSnapshot, error) {
	snap, err := s.controller.SaveProgress()
	if err != nil {
		return types.ProgressSnapshot{}, err
	}
	if err := s.store.Save(snap); err != nil {
		return types.ProgressSnapshot{}, err
	}
	return snap, nil
}

// Checkpoint captures and persists a named recovery checkpoint.
func (s *Service) Checkpoint(reason string) (types.ProgressSnapshot, error) {
	snap, err := s.controller.CreateRecoveryCheckpoint(reason)
	if err != nil {
		return types.ProgressSnapshot{}, err
	}
	if err := s.store.Save(snap); err != nil {
		return types.ProgressSnapshot{}, err
	}
	return snap, nil
}

// Restore loads a stored snapshot and rebuilds a paused session from it,
// with fresh monitoring attached and ready for Resume.
func (s *Service) Restore(snapshotID string) (types.PlaybackSession, error) {
	snap, err := s.store.Load(snapshotID)
	if err != nil {
		return types.PlaybackSession{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.controller.RestoreProgress(snap)
	if err != nil {
		return types.PlaybackSession{}, err
	}
	if err := s.engageLocked(sess.TargetAppID, sess.TargetProcessID); err != nil {
		_ = s.controller.StopPlayback()
		return types.PlaybackSession{}, err
	}
	return sess, nil
}

// Snapshots lists stored snapshots, newest first.
func (s *Service) Snapshots() ([]types.ProgressSnapshot, error) {
	return s.store.List()
}

// LatestSnapshot returns the newest stored snapshot.
func (s *Service) LatestSnapshot() (types.ProgressSnapshot, error) {
	return s.store.Latest()
}

// DeleteSnapshot removes a stored snapshot.
func (s *Service) DeleteSnapshot(snapshotID string) error {
	return s.store.Delete(snapshotID)
}

// RecoveryOptions returns the strategies applicable to the current
// session state.
func (s *Service) RecoveryOptions() ([]types.RecoveryStrategy, error) {
	return s.controller.RecoveryOptions()
}

// Recover applies a recovery strategy. A graceful stop also tears down
// the session machinery.
func (s *Service) Recover(strategy types.RecoveryStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.controller.AttemptRecovery(strategy); err != nil {
		return err
	}
	if strategy == types.RecoveryGracefulStop {
		s.disengageLocked()
	}
	return nil
}

// RunScenario loads a scenario file and replays it against the active
// session. Relative paths resolve under the configured scenario
// directory. One run at a time.
func (s *Service) RunScenario(ctx context.Context, path string) (playback.RunReport, error) {
	resolved := path
	if !filepath.IsAbs(resolved) && s.cfg.ScenarioDir != "" {
		resolved = filepath.Join(s.cfg.ScenarioDir, path)
	}
	scn, err := scenario.Load(resolved)
	if err != nil {
		return playback.RunReport{}, err
	}

	s.mu.Lock()
	if s.runInFlight {
		s.mu.Unlock()
		return playback.RunReport{}, ErrRunInProgress
	}
	sess, ok := s.controller.Session()
	if !ok {
		s.mu.Unlock()
		return playback.RunReport{}, playback.ErrNoActiveSession
	}
	if scn.AppID != "" && scn.AppID != sess.TargetAppID {
		s.mu.Unlock()
		return playback.RunReport{}, fmt.Errorf("scenario %s targets %s but the active session targets %s",
			scn.ID, scn.AppID, sess.TargetAppID)
	}
	s.runInFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.runInFlight = false
		s.mu.Unlock()
	}()

	// The session event pump is already consuming focus events, so the
	// runner must not start a second consumer.
	return s.runner.Run(ctx, scn, nil)
}

// Close tears down any live session machinery. Called on daemon
// shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.controller.Session(); ok {
		_ = s.controller.StopPlayback()
	}
	s.disengageLocked()
}
