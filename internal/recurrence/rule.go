package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects the repetition pattern of a Rule.
type Kind int

const (
	// None never repeats; the entity exists only on its anchor date.
	None Kind = iota
	// Daily repeats every Interval days from the anchor.
	Daily
	// Weekly repeats on a weekday set, every Interval weeks from the anchor.
	Weekly
	// Custom is a daily repeat with a user-chosen interval. It is kept as a
	// separate kind so round-trips preserve what the user picked, but it
	// expands exactly like Daily.
	Custom
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the config-file spelling of a Kind. Empty means None.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "custom":
		return Custom, nil
	default:
		return None, fmt.Errorf("unknown recurrence kind %q", s)
	}
}

// WeekdaySet is a bitmask of weekdays (Sunday=0 .. Saturday=6).
type WeekdaySet uint8

func Weekdays(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) Empty() bool { return s == 0 }

func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Rule is the declarative repetition contract of a schedulable entity.
// It is a pure value; expansion behavior lives in Expand.
type Rule struct {
	Kind Kind

	// Interval is the repeat period: days for Daily/Custom, weeks for
	// Weekly. Values below 1 are treated as 1 (the expander is total;
	// rendering paths must never fail on a malformed rule).
	Interval int

	// Weekdays restricts Weekly rules. Empty means "the anchor's weekday".
	Weekdays WeekdaySet

	// Until is the inclusive last date occurrences may fall on.
	// Zero means open-ended. Ignored for Kind None.
	Until Date

	// Count caps how many occurrences a single expansion call returns.
	// Zero means unlimited. Ignored for Kind None.
	Count int
}

// step returns the interval coerced to at least 1.
func (r Rule) step() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}
