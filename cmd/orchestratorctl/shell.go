package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

// shellCmd starts an interactive prompt for submitting and inspecting tasks,
// grounded on the readline.Config/NewEx setup of pkg/repl.InputHandler.
func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive orchestrator session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell()
		},
	}
}

func runShell() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "orchestrator> ",
		HistoryFile:            historyFilePath(),
		HistoryLimit:           1000,
		DisableAutoSaveHistory: false,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
	})
	if err != nil {
		return fmt.Errorf("start readline: %w", err)
	}
	defer rl.Close()

	client := newClient()
	fmt.Fprintln(rl.Stdout(), "orchestratorctl interactive shell. Type a task description to submit it, or :help.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := handleShellLine(client, rl, line); err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
}

func handleShellLine(client *apiClient, rl *readline.Instance, line string) error {
	switch {
	case line == ":help":
		fmt.Fprintln(rl.Stdout(), "commands: :help, :mode <name>, :tasks, :quit — anything else is submitted as a new task")
		return nil
	case line == ":quit" || line == ":exit":
		os.Exit(0)
		return nil
	case line == ":tasks":
		var page struct {
			Tasks []map[string]interface{} `json:"tasks"`
		}
		if err := client.do(http.MethodGet, "/tasks", nil, &page); err != nil {
			return err
		}
		for _, t := range page.Tasks {
			fmt.Fprintf(rl.Stdout(), "%v\t%v\t%v\n", t["ID"], t["Status"], t["Description"])
		}
		return nil
	case strings.HasPrefix(line, ":mode "):
		mode := strings.TrimSpace(strings.TrimPrefix(line, ":mode "))
		return client.do(http.MethodPost, "/modes/switch", map[string]string{"mode": mode}, nil)
	default:
		var result map[string]string
		if err := client.do(http.MethodPost, "/tasks", map[string]interface{}{"description": line}, &result); err != nil {
			return err
		}
		fmt.Fprintf(rl.Stdout(), "submitted task %s\n", result["id"])
		return nil
	}
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".orchestratorctl_history"
	}
	return filepath.Join(home, ".orchestratorctl_history")
}
