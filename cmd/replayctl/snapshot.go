package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/replaykit/replayd/internal/shared/types"
)

var flagSnapshotReason string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage recovery snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current session's progress",
	Long: `Save a recovery snapshot of the active session.

With --reason the snapshot is recorded as a named checkpoint.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		path := "/recovery/save"
		if flagSnapshotReason != "" {
			path = "/recovery/checkpoint"
			req.SetBody(map[string]any{"reason": flagSnapshotReason})
		}

		var env snapshotEnvelope
		resp, err := req.SetResult(&env).Post(path)
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Printf("saved %s (step %d)\n", env.Snapshot.SnapshotID, env.Snapshot.CurrentStep)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var env struct {
			Snapshots []types.ProgressSnapshot `json:"snapshots"`
			Count     int                      `json:"count"`
		}
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetResult(&env).
			Get("/snapshots")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		if env.Count == 0 {
			fmt.Println("no snapshots")
			return nil
		}
		for _, s := range env.Snapshots {
			line := fmt.Sprintf("%s  %s  step %d  %s",
				s.SnapshotID, s.SavedAt.Local().Format(time.DateTime), s.CurrentStep, s.State)
			if s.ErrorContext != "" {
				line += "  (" + s.ErrorContext + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Rebuild a paused session from a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var env sessionEnvelope
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetBody(map[string]any{"snapshot_id": args[0]}).
			SetResult(&env).
			Post("/recovery/restore")
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

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			Delete("/snapshots/" + args[0])
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func init() {
	snapshotSaveCmd.Flags().StringVar(&flagSnapshotReason, "reason", "", "record a named checkpoint")

	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	rootCmd.AddCommand(snapshotCmd)
}
