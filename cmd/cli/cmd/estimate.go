// Package cmd - estimate command
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cloudcost/internal/executor"
	"cloudcost/internal/httpapi"
)

var (
	region        string
	usageProfile  string
	idempotentRun bool
	pollTimeout   time.Duration
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate [path]",
	Short: "Estimate costs for a Terraform project",
	Long: `Submit a Terraform project to the cloudcost gateway and wait for its
cost estimate.

The path must be a directory containing .tf files. estimate uploads every
.tf file it finds, creates a job against the configured region and usage
profile, polls until the job reaches a terminal state, and prints the
resulting cost report.

Examples:
  cloudcost estimate .
  cloudcost estimate --region us-west-2 ./infrastructure
  cloudcost estimate --usage-profile production ./my-project`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().StringVarP(&region, "region", "r", "us-east-1", "cloud region the estimate is priced against")
	estimateCmd.Flags().StringVarP(&usageProfile, "usage-profile", "u", "default", "named usage profile to model resource usage against")
	estimateCmd.Flags().BoolVar(&idempotentRun, "idempotent", false, "reuse an in-flight job for this exact run instead of submitting a duplicate")
	estimateCmd.Flags().DurationVar(&pollTimeout, "timeout", 10*time.Minute, "how long to wait for the job to reach a terminal state")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}

	files, err := collectSourceFiles(path)
	if err != nil {
		return fmt.Errorf("collect Terraform files: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No .tf files found.")
		return nil
	}
	fmt.Printf("Found %d Terraform file(s)\n", len(files))

	client := httpapi.NewGatewayClient(gatewayURL)

	fmt.Println("Uploading source...")
	uploadReference, err := client.Upload(ctx, files)
	if err != nil {
		return fmt.Errorf("upload source: %w", err)
	}

	req := httpapi.CreateJobRequest{
		UploadReference: uploadReference,
		Region:          region,
		UsageProfile:    usageProfile,
	}
	if idempotentRun {
		req.IdempotencyKey = "cli-" + path + "-" + region + "-" + usageProfile
	} else {
		req.IdempotencyKey = uuid.NewString()
	}

	fmt.Println("Creating job...")
	job, err := client.CreateJob(ctx, req)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	fmt.Printf("Job %s submitted, waiting for completion...\n", job.JobID)

	final, err := pollUntilTerminal(ctx, client, job.JobID, pollTimeout)
	if err != nil {
		return err
	}

	if final.State == "FAILED" {
		fmt.Printf("Job failed: %s\n", final.ErrorMessage)
		os.Exit(1)
	}

	fcm, err := client.GetResult(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("fetch result: %w", err)
	}
	printReport(job.JobID, fcm)
	return nil
}

// collectSourceFiles walks path for every *.tf file, reading each into an
// executor.SourceFile keyed by its path relative to the project root, the
// same layout the executor's workspace writer expects.
func collectSourceFiles(path string) ([]executor.SourceFile, error) {
	var files []executor.SourceFile
	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".tf") {
			return nil
		}
		contents, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			rel = p
		}
		files = append(files, executor.SourceFile{Path: rel, Contents: contents})
		return nil
	})
	return files, err
}

// pollUntilTerminal polls get_job until the job reaches COMPLETED or
// FAILED, or timeout elapses.
func pollUntilTerminal(ctx context.Context, client *httpapi.GatewayClient, jobID string, timeout time.Duration) (*httpapi.GetJobResponse, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		resp, err := client.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("get job status: %w", err)
		}
		if resp.State == "COMPLETED" || resp.State == "FAILED" {
			return resp, nil
		}
		fmt.Printf("  %s (%d%%)\n", resp.State, resp.ProgressPercent)

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("job %s did not reach a terminal state within %s", jobID, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
