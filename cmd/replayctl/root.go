package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/replaykit/replayd/internal/shared/types"
)

const version = "0.3.0"

var (
	// Global flags.
	flagServer  string
	flagTimeout time.Duration
	flagJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "replayctl",
	Short: "Control a running replayd daemon",
	Long: `replayctl talks to the replayd HTTP API.

It starts, pauses, resumes and stops replay sessions, manages recovery
snapshots and the application registry, and shows daemon health.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server",
		envOrDefault("REPLAYD_SERVER", "http://127.0.0.1:8750"), "replayd base URL")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print raw JSON responses")
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(flagServer).
		SetTimeout(flagTimeout).
		SetHeader("Accept", "application/json")
}

type apiError struct {
	Error string `json:"error"`
}

// check folds transport errors and API error payloads into one error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("cannot reach replayd at %s: %w", flagServer, err)
	}
	if resp.IsError() {
		var e apiError
		if uerr := sonic.Unmarshal(resp.Body(), &e); uerr == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status(), e.Error)
		}
		return fmt.Errorf("%s", resp.Status())
	}
	return nil
}

// emitRaw pretty-prints the response body for --json mode.
func emitRaw(resp *resty.Response) error {
	var v any
	if err := sonic.Unmarshal(resp.Body(), &v); err != nil {
		fmt.Println(string(resp.Body()))
		return nil
	}
	out, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

type sessionEnvelope struct {
	Session *types.PlaybackSession `json:"session"`
}

type snapshotEnvelope struct {
	Snapshot types.ProgressSnapshot `json:"snapshot"`
}

func printSession(s *types.PlaybackSession) {
	if s == nil {
		fmt.Println("no active session")
		return
	}
	state := string(s.State)
	switch {
	case s.State == types.StatePaused:
		state += " (" + string(s.PauseReason) + ")"
	case s.State == types.StateAborted && s.AbortReason != "":
		state += ": " + s.AbortReason
	}
	fmt.Printf("session %s\n", s.ID)
	fmt.Printf("  target:   %s (pid %d)\n", s.TargetAppID, s.TargetProcessID)
	fmt.Printf("  strategy: %s\n", s.Strategy)
	fmt.Printf("  state:    %s\n", state)
	fmt.Printf("  step:     %d\n", s.CurrentStep)
}
