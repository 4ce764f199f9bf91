package playback

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/replaykit/replayd/internal/shared/types"
)

// runStats accumulates per-session action counters. Reset whenever a
// session is created or destroyed.
type runStats struct {
	executed  int
	failed    int
	latencies []float64
}

// SessionStatistics summarizes a live session for operators. Pause time
// is accounted to the instant of the query, including an open pause
// interval.
type SessionStatistics struct {
	SessionID          string              `json:"session_id"`
	State              types.PlaybackState `json:"state"`
	PauseReason        types.PauseReason   `json:"pause_reason,omitempty"`
	CurrentStep        int                 `json:"current_step"`
	Uptime             time.Duration       `json:"uptime"`
	ActiveDuration     time.Duration       `json:"active_duration"`
	TotalPauseDuration time.Duration       `json:"total_pause_duration"`
	ActionsExecuted    int                 `json:"actions_executed"`
	ActionsFailed      int                 `json:"actions_failed"`
	LatencyP50         time.Duration       `json:"latency_p50"`
	LatencyP90         time.Duration       `json:"latency_p90"`
	LatencyP99         time.Duration       `json:"latency_p99"`
}

// Statistics reports the current session's counters and latency
// quantiles.
func (c *Controller) Statistics() (SessionStatistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return SessionStatistics{}, ErrNoActiveSession
	}

	now := time.Now()
	uptime := now.Sub(c.session.StartedAt)
	paused := c.session.TotalPauseDuration
	if c.session.IsPaused() && c.session.PausedAt != nil {
		paused += now.Sub(*c.session.PausedAt)
	}
	active := uptime - paused
	if active < 0 {
		active = 0
	}

	st := SessionStatistics{
		SessionID:          c.session.ID,
		State:              c.session.State,
		PauseReason:        c.session.PauseReason,
		CurrentStep:        c.session.CurrentStep,
		Uptime:             uptime,
		ActiveDuration:     active,
		TotalPauseDuration: paused,
		ActionsExecuted:    c.stats.executed,
		ActionsFailed:      c.stats.failed,
	}

	if n := len(c.stats.latencies); n > 0 {
		sorted := make([]float64, n)
		copy(sorted, c.stats.latencies)
		sort.Float64s(sorted)
		st.LatencyP50 = quantileDuration(0.50, sorted)
		st.LatencyP90 = quantileDuration(0.90, sorted)
		st.LatencyP99 = quantileDuration(0.99, sorted)
	}
	return st, nil
}

// quantileDuration reads one empirical quantile from sorted latency
// seconds.
func quantileDuration(q float64, sorted []float64) time.Duration {
	secs := stat.Quantile(q, stat.Empirical, sorted, nil)
	return time.Duration(secs * float64(time.Second))
}
