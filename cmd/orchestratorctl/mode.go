package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func modeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mode", Short: "Inspect and switch execution modes"}
	cmd.AddCommand(modeListCmd(), modeCurrentCmd(), modeSwitchCmd(), modeInfoCmd(), modeCompareCmd(), modeUpdateCmd())
	return cmd
}

func modeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var modes []string
			if err := newClient().do(http.MethodGet, "/modes", nil, &modes); err != nil {
				return err
			}
			return printResult(modes)
		},
	}
}

func modeCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]string
			if err := newClient().do(http.MethodGet, "/modes/current", nil, &result); err != nil {
				return err
			}
			fmt.Println(result["mode"])
			return nil
		},
	}
}

func modeSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <mode>",
		Short: "Switch the active mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().do(http.MethodPost, "/modes/switch", map[string]string{"mode": args[0]}, nil)
		},
	}
}

func modeInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <mode>",
		Short: "Show a mode's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]interface{}
			if err := newClient().do(http.MethodGet, "/modes/"+args[0], nil, &result); err != nil {
				return err
			}
			return printResult(result)
		},
	}
}

func modeUpdateCmd() *cobra.Command {
	var maxRetries int
	var costLimit float64
	var activate bool
	cmd := &cobra.Command{
		Use:   "update <mode>",
		Short: "Patch a mode's configuration or make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{}
			config := map[string]interface{}{}
			if cmd.Flags().Changed("max-retries") {
				config["max_retries"] = maxRetries
			}
			if cmd.Flags().Changed("cost-limit") {
				config["cost_limit"] = costLimit
			}
			if len(config) > 0 {
				body["config"] = config
			}
			if cmd.Flags().Changed("activate") {
				body["is_active"] = activate
			}
			var result map[string]interface{}
			if err := newClient().do(http.MethodPut, "/modes/"+args[0], body, &result); err != nil {
				return err
			}
			return printResult(result)
		},
	}
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "patch the mode's max retry count")
	cmd.Flags().Float64Var(&costLimit, "cost-limit", 0, "patch the mode's cost limit")
	cmd.Flags().BoolVar(&activate, "activate", false, "make this mode the active one")
	return cmd
}

func modeCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <mode-a> <mode-b>",
		Short: "Compare two modes' configurations side by side",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			var a, b map[string]interface{}
			if err := client.do(http.MethodGet, "/modes/"+args[0], nil, &a); err != nil {
				return err
			}
			if err := client.do(http.MethodGet, "/modes/"+args[1], nil, &b); err != nil {
				return err
			}
			return printResult(map[string]interface{}{args[0]: a, args[1]: b})
		},
	}
}
