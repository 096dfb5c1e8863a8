// Package duedate finds a due date in free-form task text such as a speech transcript.
package duedate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	leadIn = `\b(?:by|due|on)\s+`

	relativePhrase = `(tomorrow|next\s+week|next\s+month|(?:next\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday))\b`
	monthDayPhrase = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`
	numericPhrase  = `(\d{1,2})[/.\-](\d{1,2})\b`
)

type matcher struct {
	re      *regexp.Regexp
	resolve func(groups []string, now time.Time) (time.Time, bool)
}

// matchers are tried in priority order; the first pattern that matches decides the result.
var matchers = []matcher{
	{regexp.MustCompile(leadIn + relativePhrase), fromRelative},
	{regexp.MustCompile(leadIn + monthDayPhrase), fromMonthDay},
	{regexp.MustCompile(leadIn + numericPhrase), fromNumeric},
	{regexp.MustCompile(`\b` + relativePhrase), fromRelative},
	{regexp.MustCompile(`\b` + monthDayPhrase), fromMonthDay},
	{regexp.MustCompile(`\b` + numericPhrase), fromNumeric},
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// Extract returns the due date mentioned in text, resolved against now.
// Phrases introduced by "by", "due" or "on" take priority over bare mentions.
// It reports false when nothing date-like is found or the matched date does not exist.
func Extract(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	for _, m := range matchers {
		groups := m.re.FindStringSubmatch(lower)
		if groups == nil {
			continue
		}
		return m.resolve(groups, now)
	}
	return time.Time{}, false
}

func fromRelative(groups []string, now time.Time) (time.Time, bool) {
	phrase := strings.Join(strings.Fields(groups[1]), " ")
	switch phrase {
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	case "next week":
		return now.AddDate(0, 0, 7), true
	case "next month":
		// AddDate normalizes overflow, so Jan 31 + 1 month lands in early March.
		return now.AddDate(0, 1, 0), true
	}

	target, ok := weekdays[strings.TrimPrefix(phrase, "next ")]
	if !ok {
		return time.Time{}, false
	}
	daysUntil := (int(target) - int(now.Weekday()) + 7) % 7
	if daysUntil == 0 {
		daysUntil = 7
	}
	return now.AddDate(0, 0, daysUntil), true
}

func fromMonthDay(groups []string, now time.Time) (time.Time, bool) {
	month, ok := months[groups[1]]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(groups[2])
	if err != nil {
		return time.Time{}, false
	}
	return upcoming(month, day, now)
}

func fromNumeric(groups []string, now time.Time) (time.Time, bool) {
	first, err := strconv.Atoi(groups[1])
	if err != nil {
		return time.Time{}, false
	}
	second, err := strconv.Atoi(groups[2])
	if err != nil {
		return time.Time{}, false
	}
	// M/D unless the first part cannot be a month. Ambiguous pairs like 3/4 stay month/day.
	if first > 12 {
		first, second = second, first
	}
	if first < 1 || first > 12 {
		return time.Time{}, false
	}
	return upcoming(time.Month(first), second, now)
}

// upcoming builds month/day in now's year, rolling to next year when that date has passed.
func upcoming(month time.Month, day int, now time.Time) (time.Time, bool) {
	due, ok := calendarDate(now.Year(), month, day, now.Location())
	if !ok {
		return time.Time{}, false
	}
	if due.Before(now) {
		return calendarDate(now.Year()+1, month, day, now.Location())
	}
	return due, true
}

// calendarDate rejects dates that time.Date would silently normalize, such as April 31.
func calendarDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
