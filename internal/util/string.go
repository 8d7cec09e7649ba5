// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the tauros packages.
package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Ellipsis is appended by TruncateGraphemes when it shortens a string.
const Ellipsis = "..."

// UNICODE: Truncation counts grapheme clusters, not bytes or runes, so an
// emoji with modifiers or a letter with a combining accent is never split.

// GraphemeLen returns the number of user-perceived characters in s.
func GraphemeLen(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// TruncateGraphemes caps s at max user-perceived characters. When s is longer
// the result keeps the first max-3 characters followed by "...", so its
// length is exactly max. A cap of 3 or less leaves room only for the marker,
// which is itself clipped to max dots. Strings within the cap are returned
// unchanged.
func TruncateGraphemes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if GraphemeLen(s) <= max {
		return s
	}
	if max <= len(Ellipsis) {
		return Ellipsis[:max]
	}
	return firstGraphemes(s, max-len(Ellipsis)) + Ellipsis
}

// firstGraphemes returns the first n grapheme clusters of s.
func firstGraphemes(s string, n int) string {
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < n && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	return b.String()
}

// StringWidth returns the terminal display width of s.
// Double-width characters (CJK, most emoji) count as 2 columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// PadRight pads s with spaces up to width display columns, truncating with
// an ellipsis when s is wider.
func PadRight(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}
