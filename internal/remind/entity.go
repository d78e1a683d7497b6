package remind

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"remindd/internal/recurrence"
)

// Kind distinguishes the two schedulable entity types. They share all
// reminder behavior; only the default start time differs.
type Kind int

const (
	KindBlock Kind = iota
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindTask:
		return "task"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "":
		return KindBlock, nil
	case "task":
		return KindTask, nil
	default:
		return KindBlock, fmt.Errorf("unknown entity kind %q", s)
	}
}

// DefaultStart is the assumed start time for entities scheduled without an
// explicit time of day (day-level tasks still deserve a morning reminder).
var DefaultStart = TimeOfDay{Hour: 9}

// Entity is one schedulable item: a calendar block or a task.
type Entity struct {
	ID    string
	Kind  Kind
	Title string

	// Anchor is the date the entity was originally scheduled on; all
	// recurrence math is phase-relative to it.
	Anchor recurrence.Date

	// Start/End are local times of day. A nil Start means the entity is
	// day-level; DefaultStart is assumed for reminder purposes.
	Start *TimeOfDay
	End   *TimeOfDay

	Rule       recurrence.Rule
	Exceptions recurrence.DateSet

	// Offsets holds reminder offsets in minutes before Start; 0 fires at
	// start time.
	Offsets []int

	// Channels are the subscriber channels reminders are delivered to
	// (opaque to this package; the transport interprets them).
	Channels []string
}

// StartMinutes returns the start-of-day minute offset used by reminder math.
func (e Entity) StartMinutes() int {
	if e.Start != nil {
		return e.Start.Minutes()
	}
	return DefaultStart.Minutes()
}

var (
	errNoID     = errors.New("entity has no id")
	errNoAnchor = errors.New("entity has no anchor date")
)

// Validate reports whether the entity is well-formed enough to schedule.
// The scheduler skips (and logs) invalid entities instead of failing the
// whole tick.
func (e Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errNoID
	}
	if e.Anchor.IsZero() {
		return fmt.Errorf("%s: %w", e.ID, errNoAnchor)
	}
	for _, m := range e.Offsets {
		if m < 0 {
			return fmt.Errorf("%s: negative reminder offset %d", e.ID, m)
		}
	}
	return nil
}

// Source lists the schedulable entities considered on each tick.
// Implementations live at the edges (file-backed source, external store).
type Source interface {
	ListSchedulable(ctx context.Context) ([]Entity, error)
}

// CheckinSource reports whether a user has recorded a daily check-in.
type CheckinSource interface {
	HasCheckin(ctx context.Context, user string, day recurrence.Date) (bool, error)
}
