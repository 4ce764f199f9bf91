// Package session owns the lifecycle around a playback session.
//
// The playback controller is a passive state machine; this package
// supplies everything that has to run while a session is live:
//
//   - a focus monitor built per session and attached to the controller
//   - the single event-pump goroutine feeding focus events into it
//   - a periodic health probe that detects application closure and
//     unresponsiveness, persisting a recovery checkpoint on new failures
//   - snapshot persistence and restore with re-engaged monitoring
//   - paced scenario runs through the scenario runner
//
// Example Usage:
//
//	svc := session.NewService(controller, validator, store, registry, driver, logger, metrics, cfg)
//	sess, err := svc.Start("app_editor", 1204, types.StrategyAutoPause)
//	...
//	err = svc.Stop()
package session
