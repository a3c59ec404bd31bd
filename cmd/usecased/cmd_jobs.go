package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	submitWorkspace string
	listWorkspace   string
)

var submitCmd = &cobra.Command{
	Use:   "submit <type> <payload>",
	Short: "Submit a generation job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"type":        args[0],
			"payload":     json.RawMessage(args[1]),
			"workspaceId": submitWorkspace,
		}
		data, status, err := apiRequest("POST", "/api/v1/jobs", body)
		if err != nil {
			return err
		}
		exitOnError(data, status)

		if outputJSON {
			printJSON(data)
			return nil
		}
		var result map[string]string
		json.Unmarshal(data, &result)
		fmt.Printf("Job submitted: %s\n", result["id"])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/jobs"
		if listWorkspace != "" {
			path += "?workspace_id=" + listWorkspace
		}
		data, status, err := apiRequest("GET", path, nil)
		if err != nil {
			return err
		}
		exitOnError(data, status)
		if outputJSON {
			printJSON(data)
			return nil
		}
		var result struct {
			Jobs []struct {
				ID          string  `json:"id"`
				Type        string  `json:"type"`
				Status      string  `json:"status"`
				WorkspaceID string  `json:"workspace_id"`
				Error       *string `json:"error,omitempty"`
			} `json:"jobs"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return err
		}
		if len(result.Jobs) == 0 {
			fmt.Println("No jobs")
			return nil
		}
		for _, j := range result.Jobs {
			if j.Error != nil && *j.Error != "" {
				fmt.Printf("%s  %s  %s  %s  error=%s\n", j.ID, j.Type, j.Status, j.WorkspaceID, *j.Error)
				continue
			}
			fmt.Printf("%s  %s  %s  %s\n", j.ID, j.Type, j.Status, j.WorkspaceID)
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <job-id>",
	Short: "Show full job detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, status, err := apiRequest("GET", "/api/v1/jobs/"+args[0], nil)
		if err != nil {
			return err
		}
		exitOnError(data, status)
		printJSON(data)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitWorkspace, "workspace", "", "Workspace ID the job belongs to")
	listCmd.Flags().StringVar(&listWorkspace, "workspace", "", "Only show jobs for this workspace")

	addClientFlags(submitCmd, listCmd, inspectCmd)
	rootCmd.AddCommand(submitCmd, listCmd, inspectCmd)
}
