// Package cmd provides the CLI commands for cloudcost.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cloudcost/internal/config"
	"cloudcost/internal/logging"
)

var (
	cfgFile    string
	verbose    bool
	gatewayURL string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cloudcost",
	Short: "Estimate costs for Terraform infrastructure",
	Long: `cloudcost is a cloud-agnostic infrastructure cost estimation tool.

It submits Terraform configurations to a running cloudcost gateway, which
plans them through a sandboxed executor, interprets the plan into a
resource graph, enriches it with provider metadata, models usage, and
resolves pricing into a reproducible, policy-gated cost estimate.

Examples:
  cloudcost estimate ./my-terraform-project
  cloudcost estimate --region us-west-2 ./infrastructure
  cloudcost status <job-id>
  cloudcost result <job-id>`,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cloudcost.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "http://localhost:8080", "cloudcost gateway base URL")

	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.Set(cfg)
	}

	cfg := config.Get()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("cloudcost version 1.0.0")
	},
}
