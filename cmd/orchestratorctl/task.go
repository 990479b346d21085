package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage orchestrator tasks"}
	cmd.AddCommand(taskCreateCmd(), taskListCmd(), taskGetCmd(), taskWatchCmd(), taskCancelCmd(), taskRetryCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var (
		description string
		projectID   string
		mode        string
		priority    int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if description == "" {
				return &usageError{msg: "--description is required"}
			}
			var result map[string]string
			err := newClient().do(http.MethodPost, "/tasks", map[string]interface{}{
				"description": description, "project_id": projectID, "mode": mode, "priority": priority,
			}, &result)
			if err != nil {
				return err
			}
			fmt.Println(result["id"])
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "SPEED|QUALITY|AUTONOMY|COST")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "priority 0-100")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task map[string]interface{}
			if err := newClient().do(http.MethodGet, "/tasks/"+args[0], nil, &task); err != nil {
				return err
			}
			return printResult(task)
		},
	}
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var page struct {
				Tasks []map[string]interface{} `json:"tasks"`
			}
			if err := newClient().do(http.MethodGet, "/tasks", nil, &page); err != nil {
				return err
			}
			return printResult(page.Tasks)
		},
	}
}

func taskCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().do(http.MethodDelete, "/tasks/"+args[0], nil, nil)
		},
	}
}

func taskRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Retry a failed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]string
			if err := newClient().do(http.MethodPost, "/tasks/"+args[0]+"/retry", nil, &result); err != nil {
				return err
			}
			fmt.Println(result["id"])
			return nil
		},
	}
}

// taskWatchCmd streams a task's SSE channel to stdout, reading the stream's
// "data: " lines with a plain bufio.Scanner.
func taskWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <id>",
		Short: "Stream task events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(apiURL + "/events/stream?channel=task:" + args[0])
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if len(line) > 6 && line[:6] == "data: " {
					var ev map[string]interface{}
					if json.Unmarshal([]byte(line[6:]), &ev) == nil {
						fmt.Printf("%v: %v\n", ev["type"], ev["data"])
					}
				}
			}
			return scanner.Err()
		},
	}
}

func printResult(v interface{}) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(cmdOut())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Printf("%+v\n", v)
	return nil
}
