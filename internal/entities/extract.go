// Package entities provides pure extraction of durations, times, dates, and
// titles from utterance text, plus referent resolution against a bounded
// session history.
package entities

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

var (
	minutesRe  = regexp.MustCompile(`(?i)\b(\d+)\s*(?:minutes?|mins?)\b`)
	hoursRe    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)
	clockRe    = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)?\b`)
	bareHourRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)
	periodRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\s+in the (morning|afternoon|evening)\b`)
	titleRe    = regexp.MustCompile(`(?i)\b(?:for|about|regarding)\s+(.+?)\s*$`)
	noonRe     = regexp.MustCompile(`(?i)\bnoon\b`)
	midnightRe = regexp.MustCompile(`(?i)\bmidnight\b`)
)

// relativeDatePhrases is the closed phrase set checked for the date slot,
// longest phrases first so "this afternoon" wins over "this".
var relativeDatePhrases = []string{
	"this afternoon",
	"this morning",
	"tomorrow",
	"tonight",
	"today",
}

var weekdays = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// categoryNouns are trailing nouns stripped from extracted titles.
var categoryNouns = map[string]bool{
	"meeting": true,
	"call":    true,
	"session": true,
	"task":    true,
	"project": true,
}

// pronouns that never make a useful title on their own.
var bareReferents = map[string]bool{
	"it": true, "that": true, "this": true, "them": true,
}

// Extract pulls all recognizable slots out of the utterance. Missing slots
// are simply absent from the returned map.
func Extract(text string) models.IntentEntities {
	out := models.IntentEntities{}
	if strings.TrimSpace(text) == "" {
		return out
	}

	if minutes, ok := extractMinutes(text); ok {
		out[models.EntityMinutes] = minutes
	}
	if clock, ok := extractTime(text); ok {
		out[models.EntityTime] = clock
	}
	if date, ok := extractDate(text); ok {
		out[models.EntityDate] = date
	}
	if title, ok := extractTitle(text); ok {
		out[models.EntityTitle] = title
	}
	return out
}

// extractMinutes prefers an explicit minute count over hours × 60.
func extractMinutes(text string) (int, bool) {
	if m := minutesRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	if m := hoursRe.FindStringSubmatch(text); m != nil {
		h, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return int(h * 60), true
		}
	}
	return 0, false
}

// extractTime prefers a colon-delimited clock time, then a bare hour with a
// meridiem or period word. "noon" and "midnight" normalize to 12 pm / 12 am.
func extractTime(text string) (string, bool) {
	if m := clockRe.FindStringSubmatch(text); m != nil {
		hhmm := strings.TrimLeft(m[1], "0") + ":" + m[2]
		if strings.HasPrefix(hhmm, ":") {
			hhmm = "0" + hhmm
		}
		if m[3] != "" {
			return hhmm + " " + strings.ToLower(m[3]), true
		}
		return hhmm, true
	}
	if m := bareHourRe.FindStringSubmatch(text); m != nil {
		return strings.TrimLeft(m[1], "0") + " " + strings.ToLower(m[2]), true
	}
	if m := periodRe.FindStringSubmatch(text); m != nil {
		meridiem := "pm"
		if strings.EqualFold(m[2], "morning") {
			meridiem = "am"
		}
		return strings.TrimLeft(m[1], "0") + " " + meridiem, true
	}
	if midnightRe.MatchString(text) {
		return "12 am", true
	}
	// Word-bounded so "afternoon" never reads as noon.
	if noonRe.MatchString(text) {
		return "12 pm", true
	}
	return "", false
}

// extractDate matches the closed relative-date phrase set, then
// "next <weekday>" and "on <weekday>".
func extractDate(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range relativeDatePhrases {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	for _, day := range weekdays {
		if strings.Contains(lower, "next "+day) {
			return "next " + day, true
		}
		if strings.Contains(lower, "on "+day) {
			return day, true
		}
	}
	return "", false
}

// extractTitle takes the trailing noun phrase after for/about/regarding,
// dropping a leading article and a trailing category noun.
func extractTitle(text string) (string, bool) {
	trimmed := strings.TrimRight(strings.TrimSpace(text), ".!?")
	m := titleRe.FindStringSubmatch(trimmed)
	if m == nil {
		return "", false
	}
	words := strings.Fields(m[1])
	if len(words) == 0 {
		return "", false
	}
	switch strings.ToLower(words[0]) {
	case "the", "a", "an", "my", "our":
		words = words[1:]
	}
	if len(words) > 1 && categoryNouns[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	title := strings.Join(words, " ")
	if title == "" || bareReferents[strings.ToLower(title)] {
		return "", false
	}
	return title, true
}

// SlotOr returns the named slot rendered as a string, or the fallback phrase
// when the slot is absent. Summary templates use it to degrade gracefully
// instead of printing empty fields.
func SlotOr(e models.IntentEntities, key, fallback string) string {
	switch v := e[key].(type) {
	case nil:
		return fallback
	case string:
		if v == "" {
			return fallback
		}
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.Itoa(int(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}
