// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// ModelInfo describes a Mistral model as listed by GET /models.
type ModelInfo struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	OwnedBy     string `json:"owned_by,omitempty"`
}

// DefaultModel is the model used when the config names none.
const DefaultModel = "mistral-large-latest"

// fallbackModels is returned when the model list cannot be fetched.
var fallbackModels = []ModelInfo{
	{ID: "mistral-large-latest", Description: "Mistral Large (Latest)"},
	{ID: "mistral-medium-latest", Description: "Mistral Medium (Latest)"},
	{ID: "mistral-small-latest", Description: "Mistral Small (Latest)"},
}

// FallbackModels returns a fresh copy of the static model list.
func FallbackModels() []ModelInfo {
	out := make([]ModelInfo, len(fallbackModels))
	copy(out, fallbackModels)
	return out
}

// DisplayName returns the description, or the ID when there is none.
func (m ModelInfo) DisplayName() string {
	if strings.TrimSpace(m.Description) != "" {
		return m.Description
	}
	return m.ID
}
