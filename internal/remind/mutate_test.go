package remind

import (
	"testing"
	"time"

	"remindd/internal/recurrence"
)

func weeklyEntity() Entity {
	return Entity{
		ID:     "standup",
		Anchor: recurrence.NewDate(2024, time.January, 1),
		Rule: recurrence.Rule{
			Kind:     recurrence.Weekly,
			Interval: 1,
			Weekdays: recurrence.Weekdays(time.Monday, time.Wednesday, time.Friday),
		},
		Offsets: []int{15},
	}
}

func TestApplyDeletionSingle(t *testing.T) {
	t.Parallel()
	e := weeklyEntity()
	target := recurrence.NewDate(2024, time.January, 3)

	updated, removed := ApplyDeletion(e, target, recurrence.ScopeSingle, 0)
	if removed {
		t.Fatal("single deletion must not remove the entity")
	}
	if !updated.Exceptions.Has(target) {
		t.Fatal("target date should be excepted")
	}
	if e.Exceptions.Has(target) {
		t.Fatal("original entity must not be mutated")
	}

	// The expansion no longer yields the deleted instance.
	occs := recurrence.Expand(updated.Rule, updated.Anchor, updated.Anchor, target.AddDays(7), updated.Exceptions)
	for _, d := range occs {
		if d == target {
			t.Fatalf("deleted occurrence %v still expands", d)
		}
	}
}

func TestApplyDeletionCount(t *testing.T) {
	t.Parallel()
	e := weeklyEntity()
	target := recurrence.NewDate(2024, time.January, 3)

	updated, removed := ApplyDeletion(e, target, recurrence.ScopeCount, 3)
	if removed {
		t.Fatal("count deletion must not remove the entity")
	}
	for _, s := range []string{"2024-01-03", "2024-01-05", "2024-01-08"} {
		d, _ := recurrence.ParseDate(s)
		if !updated.Exceptions.Has(d) {
			t.Fatalf("expected %s excepted", s)
		}
	}
	d, _ := recurrence.ParseDate("2024-01-10")
	if updated.Exceptions.Has(d) {
		t.Fatal("deletion reached past the requested count")
	}
}

func TestApplyDeletionAll(t *testing.T) {
	t.Parallel()
	_, removed := ApplyDeletion(weeklyEntity(), recurrence.NewDate(2024, time.January, 3), recurrence.ScopeAll, 0)
	if !removed {
		t.Fatal("all scope must remove the entity")
	}
}

func TestTruncateFrom(t *testing.T) {
	t.Parallel()
	e := weeklyEntity()
	target := recurrence.NewDate(2024, time.January, 8)

	updated := TruncateFrom(e, target)
	occs := recurrence.Expand(updated.Rule, updated.Anchor, updated.Anchor, target.AddDays(30), updated.Exceptions)
	for _, d := range occs {
		if !d.Before(target) {
			t.Fatalf("occurrence %v survives past the truncation point", d)
		}
	}
	// Past instances stay.
	if len(occs) == 0 {
		t.Fatal("truncation must keep past occurrences")
	}
}

func TestEntityValidate(t *testing.T) {
	t.Parallel()
	ok := weeklyEntity()
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid entity rejected: %v", err)
	}

	noID := ok
	noID.ID = "  "
	if err := noID.Validate(); err == nil {
		t.Fatal("expected error for missing id")
	}

	noAnchor := ok
	noAnchor.Anchor = recurrence.Date{}
	if err := noAnchor.Validate(); err == nil {
		t.Fatal("expected error for missing anchor")
	}

	badOffset := ok
	badOffset.Offsets = []int{-5}
	if err := badOffset.Validate(); err == nil {
		t.Fatal("expected error for negative offset")
	}
}
