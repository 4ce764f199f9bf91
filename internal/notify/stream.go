package notify

import (
	"github.com/replaykit/replayd/internal/shared/types"
)

// StreamPublisher pushes events to connected stream clients. Implemented
// by the WebSocket hub.
type StreamPublisher interface {
	Publish(ev types.StreamEvent)
}

// NewStream returns a Service forwarding notifications to a stream
// publisher.
func NewStream(pub StreamPublisher) Service {
	return emitter{emit: func(ev Event) {
		pub.Publish(types.StreamEvent{
			Type:      string(ev.Kind),
			AppID:     ev.AppID,
			Message:   ev.Message,
			Timestamp: ev.At.UnixMilli(),
		})
	}}
}
