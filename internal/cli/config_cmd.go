// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config inspection and initialization, version.

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tauros/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Long: `Print the effective configuration as TOML: defaults, then the config
file, then TAUROS_* variables and flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.opts.out, "# %s\n", a.configPath)
			return toml.NewEncoder(a.opts.out).Encode(cfg)
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.GetString("config")
			if path == "" {
				path = config.ConfigPath()
			}
			fmt.Fprintln(a.opts.out, path)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.GetString("config")
			if path == "" {
				path = config.ConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &ValidationError{
					Field:   "config",
					Value:   path,
					Reason:  "file already exists",
					Example: "tauros config init --force",
				}
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return &configError{err: err}
			}

			cfg := config.Default()
			cfg.SetDefaults()
			if err := config.SaveTOML(cfg, path); err != nil {
				return &configError{err: err}
			}
			fmt.Fprintf(a.opts.out, "%s Configurazione scritta in %s\n", RenderStatus("ok"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(showCmd, pathCmd, initCmd)
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.opts.out, "tauros %s (%s %s/%s)\n", a.opts.version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
