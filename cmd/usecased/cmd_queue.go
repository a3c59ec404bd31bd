package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelReason string

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop claiming new jobs (in-flight work continues)",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, status, err := apiRequest("POST", "/api/v1/queue/pause", map[string]any{})
		if err != nil {
			return err
		}
		exitOnError(data, status)
		fmt.Println("Queue paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume claiming jobs after a pause",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, status, err := apiRequest("POST", "/api/v1/queue/resume", map[string]any{})
		if err != nil {
			return err
		}
		exitOnError(data, status)
		fmt.Println("Queue resumed")
		return nil
	},
}

var cancelAllCmd = &cobra.Command{
	Use:   "cancel-all",
	Short: "Abort every in-flight job and wait for workers to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, status, err := apiRequest("POST", "/api/v1/queue/cancel", map[string]string{
			"reason": cancelReason,
		})
		if err != nil {
			return err
		}
		exitOnError(data, status)
		fmt.Println("All in-flight jobs cancelled")
		return nil
	},
}

var cancelWorkspaceCmd = &cobra.Command{
	Use:   "cancel-workspace <workspace-id>",
	Short: "Cancel every processing job of one workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, status, err := apiRequest("POST", "/api/v1/workspaces/"+args[0]+"/cancel", map[string]string{
			"reason": cancelReason,
		})
		if err != nil {
			return err
		}
		exitOnError(data, status)
		fmt.Printf("Workspace %s jobs cancelled\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts and the active concurrency budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, status, err := apiRequest("GET", "/api/v1/queue/stats", nil)
		if err != nil {
			return err
		}
		exitOnError(data, status)
		printJSON(data)
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-read the concurrency settings from the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, status, err := apiRequest("POST", "/api/v1/queue/reload", map[string]any{})
		if err != nil {
			return err
		}
		exitOnError(data, status)
		fmt.Println("Settings reloaded")
		return nil
	},
}

func init() {
	cancelAllCmd.Flags().StringVar(&cancelReason, "reason", "operator request", "Reason recorded on cancelled jobs")
	cancelWorkspaceCmd.Flags().StringVar(&cancelReason, "reason", "workspace cancel", "Reason recorded on cancelled jobs")

	addClientFlags(pauseCmd, resumeCmd, cancelAllCmd, cancelWorkspaceCmd, statsCmd, reloadCmd)
	rootCmd.AddCommand(pauseCmd, resumeCmd, cancelAllCmd, cancelWorkspaceCmd, statsCmd, reloadCmd)
}
