package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	cmd.AddCommand(projectCreateCmd(), projectListCmd(), projectGetCmd(), projectDeleteCmd(), projectInitCmd())
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var name, root string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return &usageError{msg: "--name is required"}
			}
			var result map[string]string
			err := newClient().do(http.MethodPost, "/projects", map[string]string{
				"name": name, "root": root,
			}, &result)
			if err != nil {
				return err
			}
			fmt.Println(result["id"])
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "project name")
	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			var projects []map[string]interface{}
			if err := newClient().do(http.MethodGet, "/projects", nil, &projects); err != nil {
				return err
			}
			return printResult(projects)
		},
	}
}

func projectGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var project map[string]interface{}
			if err := newClient().do(http.MethodGet, "/projects/"+args[0], nil, &project); err != nil {
				return err
			}
			return printResult(project)
		},
	}
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient().do(http.MethodDelete, "/projects/"+args[0], nil, nil)
		},
	}
}

func projectInitCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register the current directory as a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]string
			err := newClient().do(http.MethodPost, "/projects", map[string]string{
				"name": root, "root": root,
			}, &result)
			if err != nil {
				return err
			}
			fmt.Println(result["id"])
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	return cmd
}
