// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the conversation log to shareable files.
//
// # Supported Formats
//
//   - JSON: {timestamp, messageCount, messages:[{content, time, type}]}
//     where type is user, bot or system and time is HH:MM
//   - Markdown: human-readable with a YAML frontmatter header
//
// # Usage
//
//	exporter, err := export.ForFormat("json", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(messages, exporter, &export.Options{OutputDir: dir})
package export
