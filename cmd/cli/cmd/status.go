package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cloudcost/internal/httpapi"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Check a job's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := httpapi.NewGatewayClient(gatewayURL)
		resp, err := client.GetJob(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}
		fmt.Printf("Job:      %s\n", resp.JobID)
		fmt.Printf("State:    %s (%d%%)\n", resp.State, resp.ProgressPercent)
		if resp.ErrorMessage != "" {
			fmt.Printf("Error:    %s\n", resp.ErrorMessage)
		}
		if resp.ResultReference != "" {
			fmt.Printf("Result:   %s\n", resp.ResultReference)
		}
		fmt.Printf("Created:  %s\n", resp.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Updated:  %s\n", resp.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}
