// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat packages.
//
// # Key Types
//
//   - ChatMessage: one conversation entry with sender, timestamp and error flag
//   - Role: message sender (user, assistant, system)
//   - ModelInfo: a Mistral model ID with its description
package model
