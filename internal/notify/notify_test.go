package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
)

var testMetrics = monitoring.NewMetrics()

// recorder captures delivered notifications for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event

	block   chan struct{} // when set, delivery blocks until closed
	started chan struct{} // signaled once a delivery begins
}

func (r *recorder) record(kind Kind, appID, message string) {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, AppID: appID, Message: message})
}

func (r *recorder) NotifyAutomationPaused(appID, message string) {
	r.record(KindAutomationPaused, appID, message)
}

func (r *recorder) NotifyAutomationResumed(appID, message string) {
	r.record(KindAutomationResumed, appID, message)
}

func (r *recorder) NotifyApplicationError(appID, message string) {
	r.record(KindApplicationError, appID, message)
}

func (r *recorder) list() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	svc := Multi(a, b)

	svc.NotifyAutomationPaused("app_01", "focus lost")
	svc.NotifyApplicationError("app_01", "process exited")

	for _, rec := range []*recorder{a, b} {
		events := rec.list()
		require.Len(t, events, 2)
		assert.Equal(t, KindAutomationPaused, events[0].Kind)
		assert.Equal(t, KindApplicationError, events[1].Kind)
		assert.Equal(t, "app_01", events[0].AppID)
	}
}

func TestNopDiscards(t *testing.T) {
	svc := Nop()
	svc.NotifyAutomationPaused("app_01", "x")
	svc.NotifyAutomationResumed("app_01", "x")
	svc.NotifyApplicationError("app_01", "x")
}

func TestAsyncDeliversInOrder(t *testing.T) {
	rec := &recorder{}
	async := NewAsync(rec, 8, logging.NewNop(), testMetrics)

	async.NotifyAutomationPaused("app_01", "one")
	async.NotifyAutomationResumed("app_01", "two")
	async.NotifyApplicationError("app_01", "three")
	async.Close()

	events := rec.list()
	require.Len(t, events, 3)
	assert.Equal(t, "one", events[0].Message)
	assert.Equal(t, "two", events[1].Message)
	assert.Equal(t, "three", events[2].Message)

	// Close is idempotent and later sends are ignored
	async.Close()
	async.NotifyAutomationPaused("app_01", "late")
	assert.Len(t, rec.list(), 3)
}

func TestAsyncDropsWhenFull(t *testing.T) {
	rec := &recorder{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	async := NewAsync(rec, 1, logging.NewNop(), testMetrics)

	async.NotifyAutomationPaused("app_01", "first")
	select {
	case <-rec.started:
	case <-time.After(time.Second):
		t.Fatal("worker never started delivering")
	}

	// Worker is busy with "first"; "second" fills the buffer, "third"
	// has nowhere to go.
	async.NotifyAutomationPaused("app_01", "second")
	async.NotifyAutomationPaused("app_01", "third")

	close(rec.block)
	async.Close()

	events := rec.list()
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Message)
	assert.Equal(t, "second", events[1].Message)
}
