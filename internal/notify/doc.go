// Package notify fans playback notifications out to operators.
//
// The controller reports pauses, resumes, and application errors
// through the Service interface and never waits on delivery. Sinks:
//
//   - NewLog: structured log lines
//   - NewStream: events pushed to connected WebSocket clients
//   - NewWebhook: JSON POSTs with transport-level retries, rate
//     limiting, and a circuit breaker
//   - Multi: fan-out to several sinks
//   - NewAsync: buffered queue in front of any sink so a slow endpoint
//     cannot stall playback
package notify
