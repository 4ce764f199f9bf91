package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagStartPID      uint32
	flagStartStrategy string
	flagPauseReason   string
)

var startCmd = &cobra.Command{
	Use:   "start <app-id>",
	Short: "Start a replay session against an application",
	Long: `Start a replay session.

With --pid the session targets that process directly. Without it the
daemon resolves the process from the application's attached runtime.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"app_id": args[0]}
		if flagStartPID != 0 {
			body["process_id"] = flagStartPID
		}
		if flagStartStrategy != "" {
			body["strategy"] = flagStartStrategy
		}

		var env sessionEnvelope
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetBody(body).
			SetResult(&env).
			Post("/playback/start")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		printSession(env.Session)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		if flagPauseReason != "" {
			req.SetBody(map[string]any{"reason": flagPauseReason})
		}
		var env sessionEnvelope
		resp, err := req.SetResult(&env).Post("/playback/pause")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		printSession(env.Session)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var env sessionEnvelope
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetResult(&env).
			Post("/playback/resume")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		printSession(env.Session)
		return nil
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort <reason>...",
	Short: "Abort the active session with an explanation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var env sessionEnvelope
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetBody(map[string]any{"reason": strings.Join(args, " ")}).
			SetResult(&env).
			Post("/playback/abort")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		printSession(env.Session)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the session and tear down its monitoring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			Post("/playback/stop")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Println("session stopped")
		return nil
	},
}

func init() {
	startCmd.Flags().Uint32Var(&flagStartPID, "pid", 0, "target process id (overrides the attached runtime)")
	startCmd.Flags().StringVar(&flagStartStrategy, "strategy", "", "focus loss strategy: auto_pause, strict_error, ignore")
	pauseCmd.Flags().StringVar(&flagPauseReason, "reason", "", "pause reason (default user_requested)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(stopCmd)
}
