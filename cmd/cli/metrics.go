package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/corgi-recs/corgi/internal/metrics"
)

var metricsDays int

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show injection statistics and click-through rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		var res struct {
			Injection  *metrics.StatsSnapshot `json:"injection"`
			CTR        []metrics.CTRMetric    `json:"ctr"`
			PeriodDays int                    `json:"period_days"`
		}
		raw, err := call("GET", fmt.Sprintf("/api/v1/recommendations/metrics?days=%d", metricsDays), nil, &res)
		if err != nil {
			return err
		}
		if output == "json" {
			fmt.Println(string(raw))
			return nil
		}

		if inj := res.Injection; inj != nil {
			printHeader("📈 Injections since start")
			fmt.Printf("Requests: %d (performed %d)\n", inj.TotalRequests, inj.PerformedRequests)
			fmt.Printf("Injected: %d total, %.2f avg\n", inj.InjectedPosts, inj.AvgInjectedPerBuild)
			fmt.Printf("Latency:  p50 %dms, p95 %dms, p99 %dms\n", inj.P50DurationMs, inj.P95DurationMs, inj.P99DurationMs)
			fmt.Printf("Failures: upstream %d, candidates %d\n", inj.UpstreamErrors, inj.CandidateErrors)
			printCounts("Strategies", inj.ByStrategy)
			printCounts("Sources", inj.BySource)
			printCounts("Skipped", inj.SkipReasons)
		}

		printHeader(fmt.Sprintf("🖱  Click-through, last %d days", res.PeriodDays))
		if len(res.CTR) == 0 {
			printWarning("No impressions recorded")
		}
		for _, m := range res.CTR {
			fmt.Printf("%-14s %6d shown %6d clicked  %.2f%%\n", m.Source, m.Impressions, m.Clicks, m.CTR)
		}
		fmt.Printf("\n")
		return nil
	},
}

func init() {
	metricsCmd.Flags().IntVar(&metricsDays, "days", 7, "Click-through window in days (1-90)")
}

func printCounts(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-20s %d\n", k, counts[k])
	}
}
