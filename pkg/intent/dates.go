package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	timeRe = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	dayRe  = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// resolveDay maps a day keyword to a calendar date anchored at now. Named
// weekdays resolve to the next occurrence strictly after today (today's own
// weekday name means "next week", not "today") — a deliberate, documented
// reading of the otherwise-ambiguous "<weekday>" case in spec §4.1.
func resolveDay(word string, now time.Time) time.Time {
	switch strings.ToLower(word) {
	case "today", "tonight":
		return now
	case "tomorrow":
		return now.AddDate(0, 0, 1)
	default:
		target, ok := weekdays[strings.ToLower(word)]
		if !ok {
			return now
		}
		delta := (int(target) - int(now.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return now.AddDate(0, 0, delta)
	}
}

// combineDayTime builds a concrete instant from a resolved calendar day plus
// an hour/minute pair, in now's location.
func combineDayTime(day time.Time, hour, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}

// parseTimeOfDay parses the captured groups from timeRe into 24h hour/minute.
// Bare hours with no am/pm default to the nearest sensible hour: 1-7 => PM,
// 8-11 => AM, 12 => PM, consistent with everyday phrasing ("remind me at 4").
func parseTimeOfDay(hourStr, minuteStr, ampm string) (hour, minute int) {
	hour, _ = strconv.Atoi(hourStr)
	if minuteStr != "" {
		minute, _ = strconv.Atoi(minuteStr)
	}
	switch strings.ToLower(ampm) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	default:
		if hour >= 1 && hour <= 7 {
			hour += 12
		} else if hour == 12 {
			hour = 12
		}
	}
	return hour, minute
}

// tonightDefaultHour is used when "tonight" carries no explicit time.
const tonightDefaultHour = 20
