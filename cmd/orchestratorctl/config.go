package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"orchestrator/internal/config"
)

func configPath() string {
	if v := os.Getenv("ORCH_CONFIG_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".orchestratorctl.json"
	}
	return filepath.Join(home, ".orchestratorctl.json")
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage local CLI configuration"}
	cmd.AddCommand(configShowCmd(), configSetCmd(), configGetCmd(), configResetCmd(), configPathCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			return printResult(cfg)
		},
	}
}

func configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a single configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			v, ok := configField(cfg, args[0])
			if !ok {
				return &usageError{msg: fmt.Sprintf("unknown config key %q", args[0])}
			}
			fmt.Println(v)
			return nil
		},
	}
}

func configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if !setConfigField(cfg, args[0], args[1]) {
				return &usageError{msg: fmt.Sprintf("unknown config key %q", args[0])}
			}
			return config.Save(cfg, path)
		},
	}
}

func configResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(config.Default(), configPath())
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(configPath())
			return nil
		},
	}
}

func configField(cfg *config.Config, key string) (string, bool) {
	switch key {
	case "api_url":
		return cfg.APIURL, true
	case "api_key":
		return cfg.APIKey, true
	case "default_mode":
		return cfg.DefaultMode, true
	case "output_format":
		return cfg.OutputFormat, true
	case "project_path":
		return cfg.ProjectPath, true
	default:
		return "", false
	}
}

func setConfigField(cfg *config.Config, key, value string) bool {
	switch key {
	case "api_url":
		cfg.APIURL = value
	case "api_key":
		cfg.APIKey = value
	case "default_mode":
		cfg.DefaultMode = value
	case "output_format":
		cfg.OutputFormat = value
	case "project_path":
		cfg.ProjectPath = value
	default:
		return false
	}
	return true
}
