package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/replaykit/replayd/internal/shared/types"
)

var (
	flagAppProcessName string
	flagAppPath        string
	flagAppStrategy    string
	flagAttachPID      uint32
	flagAttachWindow   uint64
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List and manage registered applications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var env struct {
			Applications []types.RegisteredApplication `json:"applications"`
			Count        int                           `json:"count"`
		}
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetResult(&env).
			Get("/applications")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		if env.Count == 0 {
			fmt.Println("no registered applications")
			return nil
		}
		for _, app := range env.Applications {
			status := string(app.Status)
			if app.StatusDetail != "" {
				status += " (" + app.StatusDetail + ")"
			}
			fmt.Printf("%s  %s  %s  %s  %s\n",
				app.ID, app.Name, app.ProcessName, app.DefaultStrategy, status)
		}
		return nil
	},
}

var appsRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register an automation target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"name":         args[0],
			"process_name": flagAppProcessName,
		}
		if flagAppPath != "" {
			body["executable_path"] = flagAppPath
		}
		if flagAppStrategy != "" {
			body["default_strategy"] = flagAppStrategy
		}

		var env struct {
			Application types.RegisteredApplication `json:"application"`
		}
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetBody(body).
			SetResult(&env).
			Post("/applications")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Printf("registered %s as %s\n", env.Application.Name, env.Application.ID)
		return nil
	},
}

var appsAttachCmd = &cobra.Command{
	Use:   "attach <app-id>",
	Short: "Bind a live process to a registered application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"process_id": flagAttachPID}
		if flagAttachWindow != 0 {
			body["window_handle"] = flagAttachWindow
		}
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetBody(body).
			Post("/applications/" + args[0] + "/attach")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Printf("attached pid %d to %s\n", flagAttachPID, args[0])
		return nil
	},
}

var appsDetachCmd = &cobra.Command{
	Use:   "detach <app-id>",
	Short: "Clear an application's runtime binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			Post("/applications/" + args[0] + "/detach")
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Printf("detached %s\n", args[0])
		return nil
	},
}

var appsRemoveCmd = &cobra.Command{
	Use:   "rm <app-id>",
	Short: "Remove a registered application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			Delete("/applications/" + args[0])
		if err := check(resp, err); err != nil {
			return err
		}
		if flagJSON {
			return emitRaw(resp)
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func init() {
	appsRegisterCmd.Flags().StringVar(&flagAppProcessName, "process-name", "", "executable process name")
	appsRegisterCmd.Flags().StringVar(&flagAppPath, "path", "", "executable path")
	appsRegisterCmd.Flags().StringVar(&flagAppStrategy, "strategy", "", "default focus loss strategy")
	appsRegisterCmd.MarkFlagRequired("process-name")

	appsAttachCmd.Flags().Uint32Var(&flagAttachPID, "pid", 0, "process id to attach")
	appsAttachCmd.Flags().Uint64Var(&flagAttachWindow, "window", 0, "window handle, if known")
	appsAttachCmd.MarkFlagRequired("pid")

	appsCmd.AddCommand(appsRegisterCmd)
	appsCmd.AddCommand(appsAttachCmd)
	appsCmd.AddCommand(appsDetachCmd)
	appsCmd.AddCommand(appsRemoveCmd)
	rootCmd.AddCommand(appsCmd)
}
