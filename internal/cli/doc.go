// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the tauros command tree.
//
// Commands are built with cobra. Global flags are bound through viper so
// that TAUROS_* variables and flags share one lookup. Each command wires
// only what it needs: config, the prompt engine, or the full chat session
// with storage and the Mistral client.
//
// # Usage
//
//	os.Exit(cli.Execute(version))
//
// Tests drive the tree with Run and injected I/O:
//
//	code := cli.Run(ctx, []string{"--ephemeral", "render", "twitter_post"},
//	    cli.WithIO(strings.NewReader(""), &out, &errOut))
//
// # Commands Overview
//
//   - chat: interactive REPL, also the default command
//   - send: one-shot message
//   - render: fill a template without sending it
//   - templates, personas, models: listings
//   - test, usage: API key check and usage counters
//   - key set|status|clear: API key storage
//   - history show|clear|export: stored conversation
//   - config show|path|init, version
//
// Most listing commands support --json. Errors map to the Exit* codes.
package cli
