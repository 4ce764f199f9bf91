package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/replaykit/replayd/internal/domain/playback"
	"github.com/replaykit/replayd/internal/domain/registry"
	"github.com/replaykit/replayd/internal/domain/session"
	"github.com/replaykit/replayd/internal/domain/snapshot"
	"github.com/replaykit/replayd/internal/shared/types"
	"github.com/replaykit/replayd/internal/ws"
)

// Version reported by the root and health endpoints.
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions *session.Service
	apps     *registry.Manager
	hub      *ws.Hub
	driver   string
}

// NewHandlers creates a new handler set. driver names the active
// platform driver mode for health reporting.
func NewHandlers(sessions *session.Service, apps *registry.Manager, hub *ws.Hub, driver string) *Handlers {
	return &Handlers{
		sessions: sessions,
		apps:     apps,
		hub:      hub,
		driver:   driver,
	}
}

// fail translates domain errors to HTTP status codes. Sentinels map to
// 404/409; transition and verification failures are caller errors.
func fail(c *gin.Context, err error) {
	var terr *playback.TransitionError
	switch {
	case errors.Is(err, playback.ErrNoActiveSession),
		errors.Is(err, registry.ErrAppNotFound),
		errors.Is(err, snapshot.ErrSnapshotNotFound),
		errors.Is(err, snapshot.ErrNoSnapshots):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, playback.ErrPlaybackActive),
		errors.Is(err, registry.ErrAppExists),
		errors.Is(err, session.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "replayd",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	_, active := h.sessions.Session()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"version":        Version,
		"driver":         h.driver,
		"session_active": active,
		"applications":   h.apps.Count(),
		"stream_clients": h.hub.ClientCount(),
	})
}

// StartPlayback starts a session against a target application
func (h *Handlers) StartPlayback(c *gin.Context) {
	var req types.StartPlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.sessions.Start(req.AppID, req.ProcessID, req.Strategy)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

// PausePlayback pauses the active session. An omitted reason means
// user_requested.
func (h *Handlers) PausePlayback(c *gin.Context) {
	var req types.PausePlaybackRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Reason == "" {
		req.Reason = types.PauseUserRequested
	}

	if err := h.sessions.Pause(req.Reason); err != nil {
		fail(c, err)
		return
	}
	h.respondSession(c)
}

// ResumePlayback resumes a paused session
func (h *Handlers) ResumePlayback(c *gin.Context) {
	if err := h.sessions.Resume(); err != nil {
		fail(c, err)
		return
	}
	h.respondSession(c)
}

// AbortPlayback aborts the active session with an explanation
func (h *Handlers) AbortPlayback(c *gin.Context) {
	var req types.AbortPlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Abort(req.Reason); err != nil {
		fail(c, err)
		return
	}
	h.respondSession(c)
}

// StopPlayback ends the session and tears down its monitoring
func (h *Handlers) StopPlayback(c *gin.Context) {
	if err := h.sessions.Stop(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

// GetSession returns the current session
func (h *Handlers) GetSession(c *gin.Context) {
	sess, ok := h.sessions.Session()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": playback.ErrNoActiveSession.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (h *Handlers) respondSession(c *gin.Context) {
	sess, ok := h.sessions.Session()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"session": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// GetStatistics returns live statistics for the current session
func (h *Handlers) GetStatistics(c *gin.Context) {
	stats, err := h.sessions.Statistics()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

// GetFocusState returns the monitor's view of the target application
func (h *Handlers) GetFocusState(c *gin.Context) {
	state, ok := h.sessions.FocusState()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no focus monitoring active"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"focus": state})
}

// SaveProgress captures and persists a snapshot of the current session
func (h *Handlers) SaveProgress(c *gin.Context) {
	snap, err := h.sessions.SaveProgress()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"snapshot": snap})
}

// CreateCheckpoint captures a named recovery checkpoint
func (h *Handlers) CreateCheckpoint(c *gin.Context) {
	var req types.CheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.sessions.Checkpoint(req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"snapshot": snap})
}

// RestoreProgress rebuilds a paused session from a stored snapshot
func (h *Handlers) RestoreProgress(c *gin.Context) {
	var req types.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.sessions.Restore(req.SnapshotID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// GetRecoveryOptions lists strategies applicable to the current state
func (h *Handlers) GetRecoveryOptions(c *gin.Context) {
	options, err := h.sessions.RecoveryOptions()
	if err != nil {
		fail(c, err)
		return
	}

	described := make([]gin.H, 0, len(options))
	for _, opt := range options {
		described = append(described, gin.H{
			"strategy":          opt,
			"description":       opt.Description(),
			"requires_user":     opt.RequiresUserInteraction(),
			"preserves_session": opt.PreservesProgress(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"options": described})
}

// AttemptRecovery applies a recovery strategy
func (h *Handlers) AttemptRecovery(c *gin.Context) {
	var req types.RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Recover(req.Strategy); err != nil {
		fail(c, err)
		return
	}
	h.respondSession(c)
}

// ListSnapshots lists stored snapshots, newest first
func (h *Handlers) ListSnapshots(c *gin.Context) {
	snaps, err := h.sessions.Snapshots()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps, "count": len(snaps)})
}

// GetLatestSnapshot returns the newest stored snapshot
func (h *Handlers) GetLatestSnapshot(c *gin.Context) {
	snap, err := h.sessions.LatestSnapshot()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshot": snap})
}

// DeleteSnapshot removes a stored snapshot
func (h *Handlers) DeleteSnapshot(c *gin.Context) {
	snapshotID := c.Param("id")
	if err := h.sessions.DeleteSnapshot(snapshotID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "snapshot_id": snapshotID})
}

// RunScenario replays a scenario file against the active session
func (h *Handlers) RunScenario(c *gin.Context) {
	var req types.RunScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.sessions.RunScenario(c.Request.Context(), req.Path)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// RegisterApplication registers an automation target
func (h *Handlers) RegisterApplication(c *gin.Context) {
	var req types.RegisterApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.apps.Register(types.RegisteredApplication{
		Name:            req.Name,
		ExecutablePath:  req.ExecutablePath,
		ProcessName:     req.ProcessName,
		BundleID:        req.BundleID,
		DefaultStrategy: req.DefaultStrategy,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"application": app})
}

// ListApplications lists registered applications
func (h *Handlers) ListApplications(c *gin.Context) {
	apps := h.apps.List()
	c.JSON(http.StatusOK, gin.H{"applications": apps, "count": len(apps)})
}

// GetApplication returns one registered application
func (h *Handlers) GetApplication(c *gin.Context) {
	app, err := h.apps.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

// UpdateApplication replaces the editable fields of an application
func (h *Handlers) UpdateApplication(c *gin.Context) {
	var req types.RegisterApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.apps.Update(types.RegisteredApplication{
		ID:              c.Param("id"),
		Name:            req.Name,
		ExecutablePath:  req.ExecutablePath,
		ProcessName:     req.ProcessName,
		BundleID:        req.BundleID,
		DefaultStrategy: req.DefaultStrategy,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

// RemoveApplication deletes a registered application
func (h *Handlers) RemoveApplication(c *gin.Context) {
	appID := c.Param("id")
	if err := h.apps.Remove(appID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "app_id": appID})
}

// AttachRuntime binds a live process to a registered application
func (h *Handlers) AttachRuntime(c *gin.Context) {
	var req types.AttachRuntimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := h.apps.AttachRuntime(c.Param("id"), req.ProcessID, req.WindowHandle)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

// DetachRuntime clears the runtime binding of an application
func (h *Handlers) DetachRuntime(c *gin.Context) {
	appID := c.Param("id")
	if err := h.apps.DetachRuntime(appID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detached": true, "app_id": appID})
}
