package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
)

// Async decouples notification delivery from the caller: events are
// queued on a buffered channel and drained by one worker. A full queue
// drops the event instead of blocking the controller.
type Async struct {
	emitter
	inner   Service
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	ch     chan Event
	closed bool
	done   chan struct{}
}

// NewAsync wraps inner with a queue of the given size (defaults to 64
// when non-positive). Call Close to flush and stop the worker.
func NewAsync(inner Service, buffer int, logger *logging.Logger, metrics *monitoring.Metrics) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{
		inner:   inner,
		ch:      make(chan Event, buffer),
		logger:  logger.Named("notify"),
		metrics: metrics,
		done:    make(chan struct{}),
	}
	a.emitter = emitter{emit: a.enqueue}

	go a.worker()
	return a
}

func (a *Async) enqueue(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- ev:
	default:
		a.metrics.RecordNotification("async", string(ev.Kind), "dropped")
		a.logger.Warn("Notification queue full, dropping event",
			zap.String("kind", string(ev.Kind)))
	}
}

func (a *Async) worker() {
	defer close(a.done)
	for ev := range a.ch {
		Deliver(a.inner, ev)
	}
}

// Close stops accepting events, drains the queue, and waits for the
// worker to finish.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	<-a.done
}
