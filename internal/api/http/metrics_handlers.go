package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
)

// MetricsHandlers serves the JSON metrics summary. The Prometheus
// exposition endpoint is wired separately via promhttp.
type MetricsHandlers struct {
	metrics   *monitoring.Metrics
	startedAt time.Time
}

// NewMetricsHandlers creates the metrics summary handler set.
func NewMetricsHandlers(metrics *monitoring.Metrics) *MetricsHandlers {
	return &MetricsHandlers{
		metrics:   metrics,
		startedAt: time.Now(),
	}
}

// GetMetricsJSON returns aggregated counters for dashboards that do not
// scrape Prometheus.
func (mh *MetricsHandlers) GetMetricsJSON(c *gin.Context) {
	snap := mh.metrics.Snapshot()

	errorRate := 0.0
	if snap.TotalRequests > 0 {
		errorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": time.Since(mh.startedAt).Seconds(),
		"http": gin.H{
			"total_requests":      snap.TotalRequests,
			"total_errors":        snap.TotalErrors,
			"error_rate":          errorRate,
			"avg_request_seconds": mh.metrics.AverageRequestSeconds(),
		},
		"playback": gin.H{
			"focus_events":     snap.FocusEvents,
			"actions_executed": snap.ActionsExecuted,
			"actions_failed":   snap.ActionsFailed,
		},
	})
}
