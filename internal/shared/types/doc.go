// Package types provides shared data structures for the replayd backend.
//
// This package defines core types used across all backend components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - RegisteredApplication: Target application under automation
//   - PlaybackSession: Active replay session with state machine fields
//   - Action: Single mouse or keyboard automation step
//   - FocusEvent: Focus change observed on the target process
//   - ProgressSnapshot: Point-in-time session capture for crash recovery
//
// State Management:
//   - ApplicationStatus: Target health enum (active, not_found, ...)
//   - PlaybackState: Session state enum (running, paused, aborted)
//   - PauseReason: Why a session paused (focus_lost, user_requested, ...)
//   - FocusLossStrategy: Policy applied when the target loses focus
//   - RecoveryStrategy: How to proceed after an application error
//
// Geometry:
//   - Point, Bounds: Integer screen coordinates for action validation
//
// Example Usage:
//
//	app := &types.RegisteredApplication{
//	    ID:              string(id.NewAppID()),
//	    Name:            "Calculator",
//	    ProcessName:     "calculator",
//	    Status:          types.AppStatusActive,
//	    DefaultStrategy: types.StrategyAutoPause,
//	}
package types
