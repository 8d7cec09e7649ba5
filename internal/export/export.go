// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/tauros/internal/model"
	"github.com/jeranaias/tauros/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation log to the target format.
	Export(messages []model.ChatMessage) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".json").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Supported format names.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeMetadata includes the metadata header (Markdown only).
	IncludeMetadata bool

	// IncludeTimestamps includes per-message times (Markdown only; JSON
	// always carries them).
	IncludeTimestamps bool

	// Location is the zone message times are shown in. Default: time.Local
	Location *time.Location

	// Now returns the export time. Default: time.Now
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Location:          time.Local,
		Now:               time.Now,
	}
}

func (o *Options) normalize() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.OutputDir == "" {
		out.OutputDir = "."
	}
	if out.Location == nil {
		out.Location = time.Local
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ForFormat returns the exporter for a format name: "json", or "markdown"
// (alias "md").
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatMarkdown, "md":
		return NewMarkdownExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportToFile exports messages with exporter into
// OutputDir/conversation_<timestamp><ext> and returns the path. The file is
// written atomically.
func ExportToFile(messages []model.ChatMessage, exporter Exporter, opts *Options) (string, error) {
	opts = opts.normalize()

	content, err := exporter.Export(messages)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	timestamp := opts.Now().Format("20060102_150405")
	filename := fmt.Sprintf("conversation_%s%s", timestamp, exporter.FileExtension())

	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := util.AtomicWriteFileWithDir(outputPath, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// messageType maps a sender to the type names of the chat export format.
func messageType(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "user"
	case model.RoleAssistant:
		return "bot"
	default:
		return "system"
	}
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTime formats a message time as HH:MM.
func formatShortTime(t time.Time) string {
	return t.Format("15:04")
}
