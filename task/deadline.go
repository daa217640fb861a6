package task

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDeadline parses an ISO date or datetime, or a relative phrase such as
// "2 days", "1 week", "3 months" (30 days each), or "4 hours". Relative
// phrases are resolved against now. Unparseable input yields nil.
func ParseDeadline(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	lower := strings.ToLower(s)
	for _, unit := range []string{"day", "week", "month", "hour"} {
		if !strings.Contains(lower, unit) {
			continue
		}
		n := digitsOf(lower)
		var d time.Duration
		switch unit {
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		case "week":
			d = time.Duration(n) * 7 * 24 * time.Hour
		case "month":
			d = time.Duration(n) * 30 * 24 * time.Hour
		case "hour":
			d = time.Duration(n) * time.Hour
		}
		ts := now.Add(d)
		return &ts
	}
	for _, layout := range deadlineLayouts {
		if ts, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return &ts
		}
	}
	return nil
}

// digitsOf concatenates every digit in s, returning 0 when none exist.
func digitsOf(s string) int {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
