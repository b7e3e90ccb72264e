// Package intent extracts structured scheduling commands from free text.
//
// This is an ordered rule list over regular expressions, not a model: each
// slot (action verb, date, time, duration, title) is resolved by the first
// matching rule and falls back to an explicit default. Parse never fails;
// an input with no recognizable slots still yields a usable draft.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ActionType tags what the user wants done to the calendar.
type ActionType string

const (
	ActionAdd     ActionType = "add"
	ActionMove    ActionType = "move"
	ActionCancel  ActionType = "cancel"
	ActionReplace ActionType = "replace"
)

// DefaultDurationMinutes applies when no duration slot matches.
const DefaultDurationMinutes = 60

// defaultHour is the start hour used when no time slot matches.
const defaultHour = 9

// Draft is the slot-extraction result. Date is midnight of the resolved
// target day in the reference location; HasTime reports whether a time
// slot actually matched (the Hour/Minute fields hold the default
// otherwise).
type Draft struct {
	Type            ActionType
	Title           string
	Date            time.Time
	Hour            int
	Minute          int
	HasTime         bool
	DurationMinutes int
	RawText         string
}

// StartEnd combines the resolved slots into concrete instants.
func (d Draft) StartEnd() (time.Time, time.Time) {
	start := time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), d.Hour, d.Minute, 0, 0, d.Date.Location())
	return start, start.Add(time.Duration(d.DurationMinutes) * time.Minute)
}

var (
	meridiemTimeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	atTimeRe       = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\b`)
	clockTimeRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)

	forMinutesRe = regexp.MustCompile(`(?i)\bfor\s+(\d+)\s*(?:minutes|minute|mins|min)\b`)
	minutesRe    = regexp.MustCompile(`(?i)\b(\d+)\s*(?:minutes|minute|mins|min)\b`)
	hoursRe      = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:hours|hour|hrs|hr)\b`)
)

// weekdays is ordered so that resolution is deterministic when the text
// names more than one day: the first listed name that appears wins.
var weekdays = []struct {
	name string
	day  time.Weekday
}{
	{"sunday", time.Sunday},
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
}

// stopWords are removed from the title remainder: articles, prepositions,
// relative-date words, weekday names, units, and the command verbs that
// carry no title information.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"for": true, "at": true, "on": true, "in": true, "to": true,
	"with": true, "from": true, "by": true, "of": true,
	"today": true, "tomorrow": true, "next": true, "this": true,
	"week": true, "month": true,
	"sunday": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true,
	"minutes": true, "minute": true, "mins": true, "min": true,
	"hours": true, "hour": true, "hrs": true, "hr": true,
	"am": true, "pm": true,
	"schedule": true, "add": true, "block": true, "book": true,
	"move": true, "reschedule": true, "cancel": true, "remove": true,
	"delete": true, "replace": true, "time": true, "please": true,
	"me": true, "my": true, "i": true,
}

// Parse extracts a schedule action draft from free text. referenceDate
// anchors all relative-date resolution; it is injected, never read from a
// global clock.
func Parse(userText string, referenceDate time.Time) Draft {
	draft := Draft{
		Type:            parseActionType(userText),
		Date:            parseDate(userText, referenceDate),
		Hour:            defaultHour,
		DurationMinutes: DefaultDurationMinutes,
		RawText:         userText,
	}

	// Duration is removed before the time match so "for 2 hours" cannot be
	// mistaken for a 2 o'clock start.
	remainder, duration := parseDuration(userText)
	if duration > 0 {
		draft.DurationMinutes = duration
	}

	remainder, timeIdx, hour, minute, hasTime := parseTime(remainder)
	if hasTime {
		draft.Hour, draft.Minute, draft.HasTime = hour, minute, true
	}

	draft.Title = parseTitle(remainder, timeIdx)
	return draft
}

var (
	moveVerbRe    = regexp.MustCompile(`(?i)\b(move|reschedule|push)\b`)
	cancelVerbRe  = regexp.MustCompile(`(?i)\b(cancel|remove|delete)\b`)
	replaceVerbRe = regexp.MustCompile(`(?i)\b(replace|swap)\b|\binstead of\b`)
)

// parseActionType resolves the command verb. Word boundaries matter here:
// "remove" must not read as "move".
func parseActionType(text string) ActionType {
	switch {
	case cancelVerbRe.MatchString(text):
		return ActionCancel
	case moveVerbRe.MatchString(text):
		return ActionMove
	case replaceVerbRe.MatchString(text):
		return ActionReplace
	default:
		return ActionAdd
	}
}

// parseDate resolves the target day. Priority order: explicit relative
// keywords, then weekday names (always the NEXT occurrence, never today),
// then the current day as the default.
func parseDate(text string, referenceDate time.Time) time.Time {
	lower := strings.ToLower(text)
	base := time.Date(referenceDate.Year(), referenceDate.Month(), referenceDate.Day(), 0, 0, 0, 0, referenceDate.Location())

	switch {
	case strings.Contains(lower, "tomorrow"):
		return base.AddDate(0, 0, 1)
	case strings.Contains(lower, "next week"):
		return base.AddDate(0, 0, 7)
	case strings.Contains(lower, "next month"):
		return base.AddDate(0, 1, 0)
	case strings.Contains(lower, "this week"), strings.Contains(lower, "today"):
		return base
	}

	for _, entry := range weekdays {
		if !strings.Contains(lower, entry.name) {
			continue
		}
		offset := (int(entry.day) - int(base.Weekday()) + 7) % 7
		if offset == 0 {
			// Naming today's weekday means next week's occurrence.
			offset = 7
		}
		return base.AddDate(0, 0, offset)
	}

	return base
}

// parseDuration returns the text with the duration substring removed and
// the matched duration in minutes (0 when nothing matched). Patterns are
// checked in priority order; first match wins.
func parseDuration(text string) (string, int) {
	for _, re := range []*regexp.Regexp{forMinutesRe, minutesRe} {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			minutes, _ := strconv.Atoi(text[m[2]:m[3]])
			return text[:m[0]] + text[m[1]:], minutes
		}
	}
	if m := hoursRe.FindStringSubmatchIndex(text); m != nil {
		hours, _ := strconv.ParseFloat(text[m[2]:m[3]], 64)
		return text[:m[0]] + text[m[1]:], int(hours * 60)
	}
	return text, 0
}

// parseTime matches the time slot and returns the text with the match
// removed plus the byte index where the match began (-1 when absent).
//
// Twelve-hour values convert by the usual AM/PM rules. Without a meridiem
// an hour below 12 is assumed PM, biasing toward afternoon and evening
// scheduling. "at 5" means 17:00; this is a guess, not a product
// guarantee.
func parseTime(text string) (remainder string, matchIdx, hour, minute int, ok bool) {
	if m := meridiemTimeRe.FindStringSubmatchIndex(text); m != nil {
		hour, _ = strconv.Atoi(text[m[2]:m[3]])
		if m[4] >= 0 {
			minute, _ = strconv.Atoi(text[m[4]:m[5]])
		}
		meridiem := strings.ToLower(text[m[6]:m[7]])
		if meridiem == "pm" && hour < 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
		return text[:m[0]] + text[m[1]:], m[0], hour, minute, true
	}

	if m := atTimeRe.FindStringSubmatchIndex(text); m != nil {
		hour, _ = strconv.Atoi(text[m[2]:m[3]])
		if m[4] >= 0 {
			minute, _ = strconv.Atoi(text[m[4]:m[5]])
		}
		if hour < 12 {
			hour += 12 // PM bias
		}
		return text[:m[0]] + text[m[1]:], m[0], hour, minute, true
	}

	if m := clockTimeRe.FindStringSubmatchIndex(text); m != nil {
		hour, _ = strconv.Atoi(text[m[2]:m[3]])
		minute, _ = strconv.Atoi(text[m[4]:m[5]])
		if hour < 12 {
			hour += 12 // PM bias
		}
		return text[:m[0]] + text[m[1]:], m[0], hour, minute, true
	}

	return text, -1, 0, 0, false
}

var nonWordRe = regexp.MustCompile(`[^a-zA-Z0-9']+`)

// parseTitle derives the title from whatever text the other slots left
// behind. If stop-word removal eats everything, it retries on just the
// text preceding the time match; the final fallback is the literal
// "Event".
func parseTitle(remainder string, timeIdx int) string {
	title := titleFromWords(remainder)
	if title == "" && timeIdx > 0 {
		title = titleFromWords(remainder[:timeIdx])
	}
	if title == "" {
		return "Event"
	}
	return title
}

func titleFromWords(text string) string {
	words := nonWordRe.Split(text, -1)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" || stopWords[strings.ToLower(word)] {
			continue
		}
		kept = append(kept, toTitleCase(word))
	}
	return strings.Join(kept, " ")
}

func toTitleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}
