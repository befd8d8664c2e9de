package intent

import (
	"regexp"
	"strings"
	"time"
)

// Rule is one row of the priority-ordered classification table (spec §4.1).
// Matching evaluates every rule's Predicate; among matches, the highest
// Priority wins, ties broken by position in the Rules slice (earlier wins).
type Rule struct {
	Name       string
	Kind       Kind
	Confidence float64
	Priority   int
	Predicate  func(text string) bool
	Extract    func(text string, now time.Time, loc *time.Location) Fields
}

var verbRe = regexp.MustCompile(`(?i)\b(remind|set|create|add|schedule)\b`)
var toTaskRe = regexp.MustCompile(`(?i)\bto\s+`)

// reminderGuards block any reminder.create match regardless of priority —
// spec §4.1's negative guards (past tense, abstract, question forms).
var reminderGuards = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(how|what|why)\s+(do|does|did|would|should|can)\s+(i|you|one|we)\b.*\bremind`),
	regexp.MustCompile(`(?i)\b(i|we)\s+(already\s+)?(had\s+)?(set|created|made)\s+a\s+reminder\b`),
	regexp.MustCompile(`(?i)\breminder\s+(system|feature|app|service|function)\b`),
}

func guardBlocksReminder(text string) bool {
	for _, g := range reminderGuards {
		if g.MatchString(text) {
			return true
		}
	}
	return false
}

// extractTask pulls the phrase between "to <verb-object>" and the first
// time/day marker that follows it.
func extractTask(text string) string {
	loc := toTaskRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]

	end := len(rest)
	if m := timeRe.FindStringIndex(rest); m != nil && m[0] < end {
		end = m[0]
	}
	if m := dayRe.FindStringIndex(rest); m != nil && m[0] < end {
		end = m[0]
	}
	return strings.TrimSpace(strings.Trim(rest[:end], " ,."))
}

var relativeRe = regexp.MustCompile(`(?i)\bin\s+(\d+)\s+(minute|minutes|hour|hours|day|days)\b`)
var todMorningRe = regexp.MustCompile(`(?i)\btomorrow\s+(morning|afternoon|evening)\b`)

var goalRe = regexp.MustCompile(`(?i)\b(set|create)\s+a\s+goal\s+(to|for)\s+(.+)`)
var memoryRe = regexp.MustCompile(`(?i)\b(remember\s+that|save\s+this)\b[:,]?\s*(.*)`)

// Rules is the ordered rule table. Order only matters for tie-breaking equal
// priorities; selection itself is max-priority-first (see Normalize).
var Rules = []Rule{
	{
		Name:       "set_reminder_explicit",
		Kind:       KindReminderCreate,
		Confidence: 0.95,
		Priority:   13,
		Predicate: func(text string) bool {
			return !guardBlocksReminder(text) &&
				verbRe.MatchString(text) &&
				toTaskRe.MatchString(text) &&
				timeRe.MatchString(text) &&
				dayRe.MatchString(text)
		},
		Extract: func(text string, now time.Time, loc *time.Location) Fields {
			task := extractTask(text)
			day := now
			if m := dayRe.FindStringSubmatch(text); m != nil {
				day = resolveDay(m[1], now)
			}
			hour, minute := tonightDefaultHour, 0
			if m := timeRe.FindStringSubmatch(text); m != nil {
				hour, minute = parseTimeOfDay(m[1], m[2], m[3])
			}
			due := combineDayTime(day, hour, minute, loc)
			return Fields{Task: task, DueEpoch: due.Unix()}
		},
	},
	{
		Name:       "set_reminder_relative",
		Kind:       KindReminderCreate,
		Confidence: 0.9,
		Priority:   6,
		Predicate: func(text string) bool {
			return !guardBlocksReminder(text) && verbRe.MatchString(text) && relativeRe.MatchString(text)
		},
		Extract: func(text string, now time.Time, loc *time.Location) Fields {
			task := extractTask(text)
			m := relativeRe.FindStringSubmatch(text)
			due := now
			if m != nil {
				n := 0
				for _, c := range m[1] {
					n = n*10 + int(c-'0')
				}
				switch {
				case strings.HasPrefix(m[2], "minute"):
					due = now.Add(time.Duration(n) * time.Minute)
				case strings.HasPrefix(m[2], "hour"):
					due = now.Add(time.Duration(n) * time.Hour)
				case strings.HasPrefix(m[2], "day"):
					due = now.AddDate(0, 0, n)
				}
			}
			return Fields{Task: task, DueEpoch: due.Unix()}
		},
	},
	{
		Name:       "set_reminder_relative_time_of_day",
		Kind:       KindReminderCreate,
		Confidence: 0.7,
		Priority:   4,
		Predicate: func(text string) bool {
			return !guardBlocksReminder(text) && verbRe.MatchString(text) && todMorningRe.MatchString(text)
		},
		Extract: func(text string, now time.Time, loc *time.Location) Fields {
			return Fields{
				Task:                extractTask(text),
				NeedsClarification:  true,
				ClarificationPrompt: "When exactly would you like to be reminded?",
			}
		},
	},
	{
		Name:       "set_reminder_simple",
		Kind:       KindReminderCreate,
		Confidence: 0.6,
		Priority:   3,
		Predicate: func(text string) bool {
			return !guardBlocksReminder(text) &&
				verbRe.MatchString(text) &&
				!timeRe.MatchString(text) &&
				!dayRe.MatchString(text) &&
				!relativeRe.MatchString(text)
		},
		Extract: func(text string, now time.Time, loc *time.Location) Fields {
			return Fields{
				Task:                extractTask(text),
				NeedsClarification:  true,
				ClarificationPrompt: "When would you like to be reminded?",
			}
		},
	},
	{
		Name:       "set_goal",
		Kind:       KindGoalCreate,
		Confidence: 0.8,
		Priority:   5,
		Predicate:  func(text string) bool { return goalRe.MatchString(text) },
		Extract: func(text string, now time.Time, loc *time.Location) Fields {
			m := goalRe.FindStringSubmatch(text)
			task := ""
			if m != nil {
				task = strings.TrimSpace(m[3])
			}
			return Fields{Task: task}
		},
	},
	{
		Name:       "add_memory",
		Kind:       KindMemoryAdd,
		Confidence: 0.8,
		Priority:   5,
		Predicate:  func(text string) bool { return memoryRe.MatchString(text) },
		Extract: func(text string, now time.Time, loc *time.Location) Fields {
			m := memoryRe.FindStringSubmatch(text)
			task := ""
			if m != nil {
				task = strings.TrimSpace(m[2])
			}
			return Fields{Task: task}
		},
	},
}

// actionHints maps the conservative action-keyword heuristic (spec §4.3) to
// the intent_hint the gateway's deterministic-NOOP response names.
var actionHints = []struct {
	re   *regexp.Regexp
	hint string
}{
	{regexp.MustCompile(`(?i)\b(remind(?:er)?|ping me|nudge me|notify me|alert me)\b`), "reminder"},
	{regexp.MustCompile(`(?i)\bgoal\b`), "goal"},
	{regexp.MustCompile(`(?i)\b(remember that|save this)\b`), "memory"},
}

// matchActionHint returns the intent_hint category for the first
// action-keyword the text contains, or "" if none match. The same negative
// guards that block reminder.create (past tense, abstract, question forms)
// also block the "reminder" hint here — otherwise a guarded-out reminder
// phrase like "how do I set a reminder?" would fall through as KindChat
// from the rule table only to be reclassified KindNoop right here.
func matchActionHint(text string) string {
	for _, h := range actionHints {
		if h.hint == "reminder" && guardBlocksReminder(text) {
			continue
		}
		if h.re.MatchString(text) {
			return h.hint
		}
	}
	return ""
}
