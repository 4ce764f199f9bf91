package types

// RecoveryStrategy represents one way to proceed after an application
// error pauses a session
type RecoveryStrategy string

const (
	RecoveryGracefulStop       RecoveryStrategy = "graceful_stop"
	RecoveryWaitAndRetry       RecoveryStrategy = "wait_and_retry"
	RecoveryRestartApplication RecoveryStrategy = "restart_application"
	RecoveryManualIntervention RecoveryStrategy = "manual_intervention"
)

// Description returns the user-facing explanation of the strategy
func (r RecoveryStrategy) Description() string {
	switch r {
	case RecoveryGracefulStop:
		return "Stop playback cleanly and discard the session"
	case RecoveryWaitAndRetry:
		return "Keep the session paused and retry once the application recovers"
	case RecoveryRestartApplication:
		return "Relaunch the target application and resume from the last checkpoint"
	case RecoveryManualIntervention:
		return "Hand control to the user to repair the application state"
	}
	return "Unknown recovery strategy"
}

// RequiresUserInteraction reports whether the strategy needs the user
// present before it can complete
func (r RecoveryStrategy) RequiresUserInteraction() bool {
	switch r {
	case RecoveryRestartApplication, RecoveryManualIntervention:
		return true
	}
	return false
}

// PreservesProgress reports whether session progress survives the strategy
func (r RecoveryStrategy) PreservesProgress() bool {
	return r != RecoveryGracefulStop
}
