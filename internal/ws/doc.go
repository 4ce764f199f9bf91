// Package ws streams playback events to WebSocket subscribers.
//
// The hub broadcasts every state transition, pause, resume, abort, and
// application-error notification as a JSON StreamEvent. Clients are
// read-mostly; the only inbound message is a keep-alive ping.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection greeting
//   - pong: Ping reply
//   - automation_paused / automation_resumed / application_error: Playback notifications
//   - error: Malformed or unknown inbound message
//
// Example Usage:
//
//	hub := ws.NewHub(logger, metrics)
//	router.GET("/stream", hub.Handle)
//	notifier := notify.NewStream(hub)
package ws
