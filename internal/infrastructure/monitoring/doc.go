/*
Package monitoring collects the daemon's Prometheus metrics.

All metric families live under the replayd_ prefix and are registered
once per process through promauto, so NewMetrics must be called exactly
once outside tests. One Metrics value is threaded through every
component; there is no global registry access anywhere else.

What gets measured:

  - HTTP traffic per route template (count, latency, sizes)
  - session lifecycle (active gauge, starts, stops, state transitions,
    pause intervals)
  - focus events by type, dropped events, pre-action verification
    failures
  - executed actions by type and outcome, injection latency
  - validation rejections by reason, health probe outcomes
  - snapshot saves and restores, registered application count
  - notification dispatches by sink and status
  - WebSocket connections and message flow

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	metrics.IncSessionsStarted()
	metrics.RecordFocusEvent("target_lost_focus")

	timer := monitoring.NewTimer(metrics, "snapshot", "save")
	// ... perform operation ...
	timer.Stop("success")

The exposition endpoint is plain promhttp:

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

A JSON digest of the same numbers backs /metrics/json for clients that
do not speak the Prometheus text format.
*/
package monitoring
