package focus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/platform"
	"github.com/replaykit/replayd/internal/shared/types"
)

const defaultEventBuffer = 64

var (
	// ErrInvalidProcessID indicates a zero process id was given.
	ErrInvalidProcessID = errors.New("process id must be non-zero")
	// ErrMonitoringActive indicates monitoring is already running.
	ErrMonitoringActive = errors.New("focus monitoring already active")
	// ErrMonitoringNotStarted indicates there is nothing to stop.
	ErrMonitoringNotStarted = errors.New("focus monitoring not started")
)

// Monitor observes OS focus changes for one target process and turns
// them into FocusEvents. It owns the FocusState; callers only ever see
// copies.
type Monitor struct {
	watcher platform.FocusWatcher
	logger  *logging.Logger
	metrics *monitoring.Metrics
	buffer  int

	mu     sync.Mutex
	active bool
	appID  string
	pid    uint32
	state  types.FocusState
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithEventBuffer sets the capacity of the emitted event channel.
// Defaults to 64.
func WithEventBuffer(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.buffer = n
		}
	}
}

// NewMonitor creates a focus monitor backed by the given watcher.
func NewMonitor(watcher platform.FocusWatcher, logger *logging.Logger, metrics *monitoring.Metrics, opts ...Option) *Monitor {
	m := &Monitor{
		watcher: watcher,
		logger:  logger.Named("focus"),
		metrics: metrics,
		buffer:  defaultEventBuffer,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartMonitoring begins watching the given process and returns the
// event stream. The stream is closed when monitoring stops.
func (m *Monitor) StartMonitoring(appID string, pid uint32) (<-chan types.FocusEvent, error) {
	if pid == 0 {
		return nil, ErrInvalidProcessID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return nil, ErrMonitoringActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := m.watcher.Watch(ctx, pid)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch process %d: %w", pid, err)
	}

	events := make(chan types.FocusEvent, m.buffer)
	m.active = true
	m.appID = appID
	m.pid = pid
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = types.FocusState{LastChange: time.Now()}

	go m.pump(ctx, changes, events, m.done)

	m.logger.Info("Focus monitoring started",
		zap.String("app_id", appID),
		zap.Uint32("process_id", pid))
	return events, nil
}

// StopMonitoring tears down the watch and resets the focus state to
// unfocused. The reset timestamp is strictly later than any state the
// monitor reported while active.
func (m *Monitor) StopMonitoring() error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return ErrMonitoringNotStarted
	}
	appID := m.appID
	cancel := m.cancel
	done := m.done
	m.active = false
	m.appID = ""
	m.pid = 0
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	now := time.Now()
	if !now.After(m.state.LastChange) {
		now = m.state.LastChange.Add(time.Nanosecond)
	}
	m.state = types.FocusState{LastChange: now}
	m.mu.Unlock()

	m.logger.Info("Focus monitoring stopped", zap.String("app_id", appID))
	return nil
}

// IsMonitoring reports whether a watch is active.
func (m *Monitor) IsMonitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// TargetAppID returns the monitored application id, empty when inactive.
func (m *Monitor) TargetAppID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appID
}

// TargetProcessID returns the monitored process id, zero when inactive.
func (m *Monitor) TargetProcessID() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pid
}

// CurrentFocusState returns a copy of the last known focus state.
func (m *Monitor) CurrentFocusState() types.FocusState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// pump consumes platform focus changes until the watch ends and closes
// the event stream on exit.
func (m *Monitor) pump(ctx context.Context, changes <-chan platform.FocusChange, events chan<- types.FocusEvent, done chan<- struct{}) {
	defer close(done)
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				if ctx.Err() == nil {
					m.emit(events, types.NewFocusErrorEvent(platform.ErrDriverClosed))
				}
				return
			}
			if ev, send := m.apply(change); send {
				m.emit(events, ev)
			}
		}
	}
}

// apply folds one observation into the focus state and reports the
// transition event to emit, if any. The first observation establishes
// the baseline: a focused target counts as a gain, an unfocused one is
// recorded silently.
func (m *Monitor) apply(change platform.FocusChange) (types.FocusEvent, bool) {
	if change.Err != nil {
		m.logger.Warn("Focus observation failed", zap.Error(change.Err))
		return types.NewFocusErrorEvent(change.Err), true
	}

	m.mu.Lock()
	wasFocused := m.state.IsTargetFocused
	m.state.IsTargetFocused = change.TargetFocused
	m.state.FocusedProcessID = nil
	m.state.FocusedWindowTitle = nil
	if change.TargetFocused {
		pid := m.pid
		m.state.FocusedProcessID = &pid
	} else if change.HolderPID != 0 {
		holder := change.HolderPID
		m.state.FocusedProcessID = &holder
	}
	if change.WindowTitle != "" {
		title := change.WindowTitle
		m.state.FocusedWindowTitle = &title
	}
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	if !at.After(m.state.LastChange) {
		at = m.state.LastChange.Add(time.Nanosecond)
	}
	m.state.LastChange = at
	appID, pid := m.appID, m.pid
	m.mu.Unlock()

	switch {
	case change.TargetFocused && !wasFocused:
		return types.NewFocusGainedEvent(appID, pid, change.WindowTitle), true
	case !change.TargetFocused && wasFocused:
		var newApp *string
		if change.HolderName != "" {
			name := change.HolderName
			newApp = &name
		}
		m.logger.Info("Target lost focus",
			zap.String("app_id", appID),
			zap.Uint32("holder_pid", change.HolderPID),
			zap.String("holder", change.HolderName))
		return types.NewFocusLostEvent(appID, pid, newApp), true
	}
	return types.FocusEvent{}, false
}

// emit delivers without blocking; a full buffer drops the event.
func (m *Monitor) emit(events chan<- types.FocusEvent, ev types.FocusEvent) {
	select {
	case events <- ev:
		m.metrics.RecordFocusEvent(string(ev.Type))
	default:
		m.metrics.IncFocusEventsDropped()
		m.logger.Warn("Focus event buffer full, dropping event",
			zap.String("type", string(ev.Type)))
	}
}
