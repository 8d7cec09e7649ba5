// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strconv"
	"strings"
	"time"

	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/tauros/internal/util"
)

// DefaultMaxContentLength is the default cap used by Truncate.
const DefaultMaxContentLength = 280

// Reserved variable names.
const (
	VarMainContent  = "main_content"
	VarUserName     = "user_name"
	VarUserRole     = "user_role"
	VarUserCompany  = "user_company"
	VarUserLocation = "user_location"
)

// Dynamic placeholders resolved after the declared variables.
const (
	phDate         = "{date}"
	phDateFull     = "{date_full}"
	phTime         = "{time}"
	phTimestamp    = "{timestamp}"
	phAutoHashtags = "{auto_hashtags}"
)

const (
	maxHashtags       = 5
	minHashtagWordLen = 4
)

// userContext lists the user placeholders with their fallbacks, in
// substitution order.
var userContext = []struct {
	key      string
	fallback string
}{
	{VarUserName, "Utente"},
	{VarUserRole, "User"},
	{VarUserCompany, ""},
	{VarUserLocation, ""},
}

var (
	italianWeekdays = [...]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"}
	italianMonths   = [...]string{"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
		"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre"}
)

// Truncate caps content at max user-perceived characters. Longer input keeps
// its first max-3 characters followed by "...".
func Truncate(content string, max int) string {
	return util.TruncateGraphemes(content, max)
}

// Hashtags derives up to five tags from content: words longer than three
// characters, lower-cased then capitalized, each prefixed with '#'.
func Hashtags(content string) string {
	lower := cases.Lower(language.Italian).String(content)
	title := cases.Upper(language.Italian)

	tags := make([]string, 0, maxHashtags)
	for _, word := range strings.Fields(lower) {
		if util.GraphemeLen(word) < minHashtagWordLen {
			continue
		}
		first, rest, _, _ := uniseg.FirstGraphemeClusterInString(word, -1)
		tags = append(tags, "#"+title.String(first)+rest)
		if len(tags) == maxHashtags {
			break
		}
	}
	return strings.Join(tags, " ")
}

// FormatDateFull renders t as "lunedì 5 gennaio 2026".
func FormatDateFull(t time.Time) string {
	return italianWeekdays[t.Weekday()] + " " + strconv.Itoa(t.Day()) + " " +
		italianMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
}

// resolveDateTime fills the calendar placeholders from now.
func resolveDateTime(text string, now time.Time) string {
	if !strings.Contains(text, "{") {
		return text
	}
	text = strings.ReplaceAll(text, phDate, now.Format("2/1/2006"))
	text = strings.ReplaceAll(text, phDateFull, FormatDateFull(now))
	text = strings.ReplaceAll(text, phTime, now.Format(time.TimeOnly))
	text = strings.ReplaceAll(text, phTimestamp, now.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	return text
}

// resolveUserContext fills the user placeholders. Nothing happens unless the
// caller supplied at least one user context key.
func resolveUserContext(text string, vars Variables) string {
	supplied := false
	for _, uc := range userContext {
		if _, ok := vars[uc.key]; ok {
			supplied = true
			break
		}
	}
	if !supplied {
		return text
	}
	for _, uc := range userContext {
		value := vars[uc.key]
		if value == "" {
			value = uc.fallback
		}
		text = strings.ReplaceAll(text, placeholder(uc.key), value)
	}
	return text
}

// resolveHashtags fills {auto_hashtags} when main_content was supplied.
func resolveHashtags(text string, vars Variables) string {
	content := vars[VarMainContent]
	if content == "" || !strings.Contains(text, phAutoHashtags) {
		return text
	}
	return strings.ReplaceAll(text, phAutoHashtags, Hashtags(content))
}
