// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/tauros/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// ChatExport is the JSON document written by JSONExporter.
type ChatExport struct {
	Timestamp    string          `json:"timestamp"`
	MessageCount int             `json:"messageCount"`
	Messages     []ExportMessage `json:"messages"`
}

// ExportMessage is one message of a ChatExport.
type ExportMessage struct {
	Content string `json:"content"`
	Time    string `json:"time"`
	Type    string `json:"type"`
}

// JSONExporter exports conversations as a ChatExport document.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	return &JSONExporter{options: opts.normalize()}
}

// Build converts messages to the export document without encoding it.
func (e *JSONExporter) Build(messages []model.ChatMessage) ChatExport {
	out := ChatExport{
		Timestamp:    e.options.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		MessageCount: len(messages),
		Messages:     make([]ExportMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		out.Messages = append(out.Messages, ExportMessage{
			Content: msg.Content,
			Time:    formatShortTime(msg.Timestamp.In(e.options.Location)),
			Type:    messageType(msg.Sender),
		})
	}
	return out
}

// Export converts messages to indented JSON. An empty log is valid.
func (e *JSONExporter) Export(messages []model.ChatMessage) ([]byte, error) {
	return json.MarshalIndent(e.Build(messages), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
