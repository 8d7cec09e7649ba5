// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the tauros packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateGraphemes: truncation by user-perceived characters with ellipsis
//   - GraphemeLen: number of user-perceived characters in a string
//   - PadRight: pad a cell to a display width for terminal tables
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	short := util.TruncateGraphemes(post, 280)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
