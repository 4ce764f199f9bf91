package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/replaykit/replayd/internal/ws"
)

// Register wires every API route onto the router. Kept next to the
// handlers so the route table and the handler set move together.
func Register(r gin.IRouter, h *Handlers, mh *MetricsHandlers, hub *ws.Hub) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	// Session control
	r.POST("/playback/start", h.StartPlayback)
	r.POST("/playback/pause", h.PausePlayback)
	r.POST("/playback/resume", h.ResumePlayback)
	r.POST("/playback/abort", h.AbortPlayback)
	r.POST("/playback/stop", h.StopPlayback)
	r.GET("/playback/session", h.GetSession)
	r.GET("/playback/statistics", h.GetStatistics)
	r.GET("/playback/focus", h.GetFocusState)

	// Recovery
	r.POST("/recovery/save", h.SaveProgress)
	r.POST("/recovery/checkpoint", h.CreateCheckpoint)
	r.POST("/recovery/restore", h.RestoreProgress)
	r.GET("/recovery/options", h.GetRecoveryOptions)
	r.POST("/recovery/attempt", h.AttemptRecovery)

	// Snapshots
	r.GET("/snapshots", h.ListSnapshots)
	r.GET("/snapshots/latest", h.GetLatestSnapshot)
	r.DELETE("/snapshots/:id", h.DeleteSnapshot)

	// Scenarios
	r.POST("/scenarios/run", h.RunScenario)

	// Application registry
	r.POST("/applications", h.RegisterApplication)
	r.GET("/applications", h.ListApplications)
	r.GET("/applications/:id", h.GetApplication)
	r.PUT("/applications/:id", h.UpdateApplication)
	r.DELETE("/applications/:id", h.RemoveApplication)
	r.POST("/applications/:id/attach", h.AttachRuntime)
	r.POST("/applications/:id/detach", h.DetachRuntime)

	// Event stream
	r.GET("/stream", hub.Handle)

	// Metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/metrics/json", mh.GetMetricsJSON)
}
