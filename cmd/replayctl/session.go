package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/replaykit/replayd/internal/domain/playback"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show the active session and its statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()

		var env sessionEnvelope
		resp, err := c.R().
			SetContext(cmd.Context()).
			SetResult(&env).
			Get("/playback/session")
		if err != nil {
			return check(resp, err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			fmt.Println("no active session")
			return nil
		}
		if err := check(resp, nil); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		printSession(env.Session)

		var stats struct {
			Statistics playback.SessionStatistics `json:"statistics"`
		}
		resp, err = c.R().
			SetContext(cmd.Context()).
			SetResult(&stats).
			Get("/playback/statistics")
		if err := check(resp, err); err != nil {
			return err
		}
		s := stats.Statistics
		fmt.Printf("  uptime:   %s (active %s, paused %s)\n",
			s.Uptime.Round(time.Second),
			s.ActiveDuration.Round(time.Second),
			s.TotalPauseDuration.Round(time.Second))
		fmt.Printf("  actions:  %d executed, %d failed\n", s.ActionsExecuted, s.ActionsFailed)
		if s.ActionsExecuted > 0 {
			fmt.Printf("  latency:  p50 %s, p90 %s, p99 %s\n", s.LatencyP50, s.LatencyP90, s.LatencyP99)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
