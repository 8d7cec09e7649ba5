// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/tauros/internal/model"
)

var exportTime = time.Date(2026, 1, 5, 18, 45, 12, 345e6, time.UTC)

func testOptions(dir string) *Options {
	return &Options{
		OutputDir:         dir,
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Location:          time.UTC,
		Now:               func() time.Time { return exportTime },
	}
}

func sampleConversation() []model.ChatMessage {
	base := time.Date(2026, 1, 5, 9, 7, 0, 0, time.UTC)
	return []model.ChatMessage{
		model.NewMessageAt(model.RoleUser, "Ciao", base),
		model.NewMessageAt(model.RoleAssistant, "Ciao! Come posso aiutarti oggi? 👋", base.Add(2*time.Second)),
		model.NewErrorMessage("Errore di connessione. Verifica la tua connessione internet."),
	}
}

func TestJSONExporter(t *testing.T) {
	msgs := sampleConversation()
	msgs[2].Timestamp = time.Date(2026, 1, 5, 9, 8, 30, 0, time.UTC)

	data, err := NewJSONExporter(testOptions("")).Export(msgs)
	require.NoError(t, err)

	var got ChatExport
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "2026-01-05T18:45:12.345Z", got.Timestamp)
	assert.Equal(t, 3, got.MessageCount)
	assert.Equal(t, []ExportMessage{
		{Content: "Ciao", Time: "09:07", Type: "user"},
		{Content: "Ciao! Come posso aiutarti oggi? 👋", Time: "09:07", Type: "bot"},
		{Content: "Errore di connessione. Verifica la tua connessione internet.", Time: "09:08", Type: "system"},
	}, got.Messages)

	// field names follow the chat export format
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "messageCount")
}

func TestJSONExporter_Empty(t *testing.T) {
	data, err := NewJSONExporter(testOptions("")).Export(nil)
	require.NoError(t, err)

	var got ChatExport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Zero(t, got.MessageCount)
	assert.NotNil(t, got.Messages)
	assert.Contains(t, string(data), `"messages": []`)
}

func TestJSONExporter_Location(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata not available")
	}
	opts := testOptions("")
	opts.Location = rome

	msgs := []model.ChatMessage{model.NewMessageAt(model.RoleUser, "x", time.Date(2026, 1, 5, 9, 7, 0, 0, time.UTC))}
	got := NewJSONExporter(opts).Build(msgs)
	assert.Equal(t, "10:07", got.Messages[0].Time)
}

func TestMarkdownExporter(t *testing.T) {
	msgs := sampleConversation()
	data, err := NewMarkdownExporter(testOptions("")).Export(msgs)
	require.NoError(t, err)
	out := string(data)

	require.True(t, strings.HasPrefix(out, "---\n"))
	end := strings.Index(out[4:], "---\n")
	require.Greater(t, end, 0)

	var fm frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(out[4:4+end]), &fm))
	assert.Equal(t, documentTitle, fm.Title)
	assert.Equal(t, 3, fm.Messages)
	assert.Equal(t, 1, fm.Errors)
	assert.Equal(t, "tauros", fm.Generator)

	assert.Contains(t, out, "### Tu <sub>09:07</sub>")
	assert.Contains(t, out, "### TaurosAI <sub>09:07</sub>")
	assert.Contains(t, out, "### Sistema (errore)")
	assert.Contains(t, out, "> Errore di connessione.")
	assert.Contains(t, out, "Ciao! Come posso aiutarti oggi? 👋")
}

func TestMarkdownExporter_NoMetadata(t *testing.T) {
	opts := testOptions("")
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	data, err := NewMarkdownExporter(opts).Export(sampleConversation()[:1])
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "# "+documentTitle))
	assert.Contains(t, out, "### Tu\n\nCiao")
	assert.NotContains(t, out, "<sub>")
}

func TestMarkdownExporter_Empty(t *testing.T) {
	_, err := NewMarkdownExporter(nil).Export(nil)
	assert.ErrorIs(t, err, ErrEmptyConversation)
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
		mime   string
	}{
		{"json", ".json", "application/json"},
		{"JSON", ".json", "application/json"},
		{"markdown", ".md", "text/markdown"},
		{" md ", ".md", "text/markdown"},
	}
	for _, tt := range tests {
		exp, err := ForFormat(tt.format, nil)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.ext, exp.FileExtension())
		assert.Equal(t, tt.mime, exp.MimeType())
	}

	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	opts := testOptions(dir)

	path, err := ExportToFile(sampleConversation(), NewJSONExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_20260105_184512.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got ChatExport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.MessageCount)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestExportToFile_ExporterError(t *testing.T) {
	dir := t.TempDir()
	_, err := ExportToFile(nil, NewMarkdownExporter(nil), testOptions(dir))
	assert.ErrorIs(t, err, ErrEmptyConversation)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
