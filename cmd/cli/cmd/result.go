package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"

	"cloudcost/core/types"
	"cloudcost/internal/httpapi"
)

const reportWidth = 78

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Print a completed job's cost estimate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := httpapi.NewGatewayClient(gatewayURL)
		fcm, err := client.GetResult(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetch result: %w", err)
		}
		printReport(args[0], fcm)
		return nil
	},
}

// printReport renders an FCM the same way estimate does after a fresh run,
// so `cloudcost estimate` and `cloudcost result <job-id>` on a completed
// job always produce identical output.
func printReport(jobID string, fcm *types.FCM) {
	fmt.Println(strings.Repeat("=", reportWidth))
	fmt.Printf("COST ESTIMATE  job=%s\n", jobID)
	fmt.Println(strings.Repeat("=", reportWidth))

	for _, rc := range fcm.ResourceCosts {
		fmt.Printf("\n%-50s %22s\n", rc.Address.String(), money(rc.Scenario.Expected, rc.Scenario.Currency))
		fmt.Printf("  confidence: %-10s range: %s - %s\n",
			rc.Confidence, money(rc.Scenario.Min, rc.Scenario.Currency), money(rc.Scenario.Max, rc.Scenario.Currency))
		for _, dim := range rc.Dimensions {
			fmt.Printf("  - %-40s %20s\n", dim.Label, money(dim.Amount, fcm.Currency))
		}
		if len(rc.ConfidenceSources) > 0 {
			wrapped := wordwrap.WrapString("low confidence: "+strings.Join(rc.ConfidenceSources, ", "), reportWidth-2)
			for _, line := range strings.Split(wrapped, "\n") {
				fmt.Printf("  %s\n", line)
			}
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", reportWidth))
	for _, agg := range fcm.AggregatedByService {
		fmt.Printf("%-30s %d resources %25s\n", agg.GroupValue, agg.ResourceCount, money(agg.Scenario.Expected, agg.Scenario.Currency))
	}
	fmt.Println(strings.Repeat("-", reportWidth))
	fmt.Printf("TOTAL (expected)              %45s\n", money(fcm.Total.Expected, fcm.Currency))
	fmt.Printf("TOTAL (range)                 %s - %s\n",
		money(fcm.Total.Min, fcm.Currency), money(fcm.Total.Max, fcm.Currency))
	fmt.Printf("Overall confidence: %s\n", fcm.OverallConfidence)
	fmt.Printf("Determinism hash:   %s\n", fcm.DeterminismHash)
}

func money(amount interface{ String() string }, currency types.Currency) string {
	return fmt.Sprintf("%s %s/mo", amount.String(), currency)
}
