// Package logging wraps uber/zap for the daemon.
//
// Production logs are JSON on stdout; the -dev flag switches to colored
// console lines at debug level. Loggers are injected, never global:
// each component receives a *Logger and derives a named child for its
// subsystem, so every line carries where it came from.
//
//	logger, err := logging.New(logging.DefaultConfig())
//	playbackLog := logger.Named("playback")
//	playbackLog.Info("Session started", zap.String("session_id", sessID))
//
// WithSession scopes a child logger to one playback session; tests use
// NewNop.
package logging
