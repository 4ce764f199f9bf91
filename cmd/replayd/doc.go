// Package main is the entry point for the replayd daemon.
//
// replayd supervises desktop UI automation replay: it watches the target
// application's focus and health while a session runs, pauses or aborts
// playback when the desktop stops matching what the recording assumed,
// and persists recovery snapshots so interrupted sessions can resume.
//
// Architecture:
//
//	replayctl / dashboard → replayd REST+WebSocket API
//	                        replayd → platform driver (sim or native, over WebSocket)
//
// The daemon provides:
//   - REST API for session control, recovery and the application registry
//   - WebSocket stream of session state transitions
//   - Prometheus metrics
//   - Rate limiting and CORS for browser dashboards
//
// Configuration:
//   - Environment variables (the full set lives in internal/infrastructure/config)
//   - CLI flags -port, -host, -driver and -dev override the environment
//   - Stock defaults bind loopback with the simulator driver
//
// Usage:
//
//	# Local development against the in-process simulator
//	./replayd -dev
//
//	# Against a native driver process
//	./replayd -driver remote -port 8750
//
// Signals:
//   - SIGINT, SIGTERM: drain HTTP, stop the session machinery, exit
package main
