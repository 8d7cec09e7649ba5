// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/tauros/internal/model"
)

// ErrEmptyConversation is returned when there is nothing to export as a
// document.
var ErrEmptyConversation = errors.New("conversation has no messages")

const documentTitle = "Conversazione TaurosAI"

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	return &MarkdownExporter{options: opts.normalize()}
}

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string `yaml:"title"`
	Started   string `yaml:"started"`
	Updated   string `yaml:"updated"`
	Messages  int    `yaml:"messages"`
	Errors    int    `yaml:"errors,omitempty"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(messages []model.ChatMessage) ([]byte, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyConversation
	}

	loc := e.options.Location
	first := messages[0].Timestamp.In(loc)
	last := messages[len(messages)-1].Timestamp.In(loc)
	errCount := 0
	for _, msg := range messages {
		if msg.Error {
			errCount++
		}
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		header, err := yaml.Marshal(frontmatter{
			Title:     documentTitle,
			Started:   first.Format(time.RFC3339),
			Updated:   last.Format(time.RFC3339),
			Messages:  len(messages),
			Errors:    errCount,
			Exported:  e.options.Now().In(loc).Format(time.RFC3339),
			Generator: "tauros",
		})
		if err != nil {
			return nil, fmt.Errorf("encode frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", documentTitle)

	if e.options.IncludeMetadata {
		sb.WriteString("## Informazioni\n\n")
		fmt.Fprintf(&sb, "- **Inizio**: %s\n", formatTimestamp(first))
		fmt.Fprintf(&sb, "- **Ultimo messaggio**: %s\n", formatTimestamp(last))
		fmt.Fprintf(&sb, "- **Messaggi**: %d\n", len(messages))
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range messages {
		label := formatRoleLabel(msg)
		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTime(msg.Timestamp.In(loc)))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		content := strings.TrimSpace(msg.Content)
		if msg.Error {
			content = "> " + strings.ReplaceAll(content, "\n", "\n> ")
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")

		if i < len(messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Esportato da TaurosAI il %s*\n", formatTimestamp(e.options.Now().In(loc)))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// formatRoleLabel returns the heading label for a message.
func formatRoleLabel(msg model.ChatMessage) string {
	label := msg.Sender.DisplayName()
	if label == "" {
		label = "Sconosciuto"
	}
	if msg.Error {
		label += " (errore)"
	}
	return label
}
