package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "status", Short: "Inspect orchestrator status"}
	cmd.AddCommand(statusOverviewCmd(), statusStatsCmd(), statusCostsCmd(), statusHealthCmd())
	return cmd
}

func statusOverviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show active and queued task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]interface{}
			if err := newClient().do(http.MethodGet, "/monitoring/overview", nil, &result); err != nil {
				return err
			}
			return printResult(result)
		},
	}
}

func statusStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show completed, failed, and cancelled task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]interface{}
			if err := newClient().do(http.MethodGet, "/monitoring/stats", nil, &result); err != nil {
				return err
			}
			return printResult(result)
		},
	}
}

func statusCostsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show accrued cost totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/monitoring/costs"
			if days > 0 {
				path = fmt.Sprintf("%s?days=%d", path, days)
			}
			var result map[string]interface{}
			if err := newClient().do(http.MethodGet, path, nil, &result); err != nil {
				return err
			}
			return printResult(result)
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "only sum costs for tasks created in the last N days (0 = all time)")
	return cmd
}

func statusHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check orchestrator and provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]interface{}
			if err := newClient().do(http.MethodGet, "/health", nil, &result); err != nil {
				return err
			}
			return printResult(result)
		},
	}
}
