// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.WarnLevel},
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestSetupJSONComponent(t *testing.T) {
	t.Cleanup(func() { _ = Setup(Options{}) })

	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "debug", Format: FormatJSON, Writer: &buf}))

	l := Component("cloud")
	l.Debug().Int("attempt", 2).Msg("retrying")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cloud", line["component"])
	assert.Equal(t, "retrying", line["message"])
	assert.EqualValues(t, 2, line["attempt"])
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	t.Cleanup(func() { _ = Setup(Options{}) })

	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: "error", Format: FormatJSON, Writer: &buf}))
	l := Component("storage")
	l.Warn().Msg("corrupt conversation")
	assert.Zero(t, buf.Len())
}

func TestSetupRejectsUnknownFormat(t *testing.T) {
	err := Setup(Options{Format: "xml"})
	assert.Error(t, err)
}
