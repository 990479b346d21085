// orchestratorctl is the CLI surface of spec §6: task, mode, project,
// status, and config command groups over the orchestrator's HTTP API.
// Grounded on the cobra root-command-plus-subcommand-constructor pattern of
// PedroCLI's cmd/pedro-eval/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL       string
	outputFormat string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:   "orchestratorctl",
		Short: "Control the multi-agent AI development orchestrator",
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("ORCH_API_URL", "http://localhost:8080"), "orchestrator API base URL")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", envOr("ORCH_OUTPUT_FORMAT", "text"), "output format: text|json")

	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(modeCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(shellCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			return 2
		}
		return 1
	}
	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// isUsageError distinguishes misuse (exit 2) from runtime failure (exit 1),
// per spec §6's exit code contract.
func isUsageError(err error) bool {
	_, ok := err.(*usageError)
	return ok
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
