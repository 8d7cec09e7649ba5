// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the tauros configuration.
//
// # Configuration Precedence
//
// Values are resolved in this order, later entries winning:
//   - Built-in defaults (Default)
//   - $XDG_CONFIG_HOME/tauros/config.toml, or the file given with --config
//   - Environment variables (TAUROS_*)
//   - Command line flags, bound by the cli package through viper
//
// # Usage
//
//	cfg, err := config.LoadFromPath(path)
//	if err != nil {
//	    return err
//	}
//	client := cloud.NewClient(key).WithBaseURL(cfg.API.BaseURL)
package config
