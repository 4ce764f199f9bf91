package notify

import (
	"go.uber.org/zap"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
)

// NewLog returns a Service writing structured log lines. Errors log at
// error level, pauses at warn, resumes at info.
func NewLog(logger *logging.Logger) Service {
	log := logger.Named("notify")
	return emitter{emit: func(ev Event) {
		fields := []zap.Field{
			zap.String("app_id", ev.AppID),
			zap.String("detail", ev.Message),
		}
		switch ev.Kind {
		case KindApplicationError:
			log.Error("Application error", fields...)
		case KindAutomationPaused:
			log.Warn("Automation paused", fields...)
		default:
			log.Info("Automation resumed", fields...)
		}
	}}
}
