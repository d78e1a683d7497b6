package remind

import (
	"strconv"
	"time"

	"remindd/internal/recurrence"
)

const (
	// lookaheadDays bounds the expansion window per tick. Only same-day
	// occurrences can be due, but expanding a short window keeps the call
	// shape identical to the calendar rendering path.
	lookaheadDays = 7

	// Margins: how far "now" may sit from the target minute and still count
	// as due. Wide enough that a 60s polling cadence cannot skip the target
	// minute, narrow enough that only a couple of ticks can match (the
	// ledger is the real duplicate guard).
	marginTight    = 1 // minutes, for offsets <= tightOffsetMax
	marginWide     = 2
	tightOffsetMax = 5

	// startGraceMinutes lets an at-start reminder still fire shortly after
	// the nominal start ("block just started", delivered slightly late).
	startGraceMinutes = 5
)

// Instance identifies one fireable reminder: an entity's concrete occurrence
// plus one reminder offset. It is derived, never stored; Key is its stable
// identity for the delivery ledger.
type Instance struct {
	EntityID string
	Date     recurrence.Date
	Offset   int // minutes before start; 0 = at start
}

// Key returns the deterministic idempotency key for this logical reminder.
// The same instance recomputed on any tick yields the same key, and two
// distinct instances never collide.
func (i Instance) Key() string {
	return i.EntityID + "-" + i.Date.String() + "-" + strconv.Itoa(i.Offset)
}

// MatchDue returns every reminder instance due at now, in entity order.
//
// An instance is due when its occurrence falls on today, its target minute
// (start minus offset) is non-negative, now is within the margin of the
// target, and the event has not already passed: pre-start reminders never
// fire after the start time; at-start reminders tolerate startGraceMinutes
// of lateness.
//
// The caller must derive now from the same time zone used for entity times
// of day; mixing zones between the "today" boundary and minute comparisons
// is the classic failure mode here.
func MatchDue(now time.Time, entities []Entity) []Instance {
	today := recurrence.DateOf(now)
	nowMin := now.Hour()*60 + now.Minute()

	var due []Instance
	for _, e := range entities {
		if len(e.Offsets) == 0 {
			continue
		}

		occs := recurrence.Expand(e.Rule, e.Anchor, today, today.AddDays(lookaheadDays), e.Exceptions)
		startMin := e.StartMinutes()

		for _, occ := range occs {
			// Past days are never eligible (Expand already starts at today);
			// future days have not reached their target minute yet.
			if occ != today {
				continue
			}
			for _, offset := range e.Offsets {
				if offset < 0 {
					continue
				}
				target := startMin - offset
				if target < 0 {
					continue
				}
				if !dueNow(nowMin, target, startMin, offset) {
					continue
				}
				due = append(due, Instance{EntityID: e.ID, Date: occ, Offset: offset})
			}
		}
	}
	return due
}

func dueNow(nowMin, target, startMin, offset int) bool {
	if offset == 0 {
		// At-start: a tick margin early, a short grace window late.
		return nowMin >= target-marginTight && nowMin <= target+startGraceMinutes
	}

	margin := marginWide
	if offset <= tightOffsetMax {
		margin = marginTight
	}
	delta := nowMin - target
	if delta < 0 {
		delta = -delta
	}
	// Never remind about something that already started.
	return delta <= margin && startMin >= nowMin
}
