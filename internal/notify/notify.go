package notify

import (
	"time"
)

// Kind classifies a notification.
type Kind string

const (
	KindAutomationPaused  Kind = "automation_paused"
	KindAutomationResumed Kind = "automation_resumed"
	KindApplicationError  Kind = "application_error"
)

// Event is one notification as seen by a sink.
type Event struct {
	Kind    Kind      `json:"kind"`
	AppID   string    `json:"app_id,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Service delivers playback notifications. Implementations are
// fire-and-forget: they never return errors to the controller and,
// wrapped in Async, never block it.
type Service interface {
	NotifyAutomationPaused(appID, message string)
	NotifyAutomationResumed(appID, message string)
	NotifyApplicationError(appID, message string)
}

// emitter adapts a single emit function to the Service interface.
type emitter struct {
	emit func(Event)
}

func (e emitter) NotifyAutomationPaused(appID, message string) {
	e.emit(Event{Kind: KindAutomationPaused, AppID: appID, Message: message, At: time.Now()})
}

func (e emitter) NotifyAutomationResumed(appID, message string) {
	e.emit(Event{Kind: KindAutomationResumed, AppID: appID, Message: message, At: time.Now()})
}

func (e emitter) NotifyApplicationError(appID, message string) {
	e.emit(Event{Kind: KindApplicationError, AppID: appID, Message: message, At: time.Now()})
}

// Nop returns a Service that discards everything.
func Nop() Service {
	return emitter{emit: func(Event) {}}
}

// Multi fans every notification out to all given services.
func Multi(services ...Service) Service {
	return emitter{emit: func(ev Event) {
		for _, s := range services {
			Deliver(s, ev)
		}
	}}
}

// Deliver dispatches an event to the matching Service method. Unknown
// kinds are dropped.
func Deliver(s Service, ev Event) {
	switch ev.Kind {
	case KindAutomationPaused:
		s.NotifyAutomationPaused(ev.AppID, ev.Message)
	case KindAutomationResumed:
		s.NotifyAutomationResumed(ev.AppID, ev.Message)
	case KindApplicationError:
		s.NotifyApplicationError(ev.AppID, ev.Message)
	}
}
