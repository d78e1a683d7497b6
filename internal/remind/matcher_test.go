package remind

import (
	"testing"
	"time"

	"remindd/internal/recurrence"
)

func at(t *testing.T, day string, hhmm string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", day+" "+hhmm)
	if err != nil {
		t.Fatalf("bad test time %q %q: %v", day, hhmm, err)
	}
	return ts
}

func tod(h, m int) *TimeOfDay { return &TimeOfDay{Hour: h, Minute: m} }

func singleBlock(id string, anchor string, start *TimeOfDay, offsets ...int) Entity {
	d, _ := recurrence.ParseDate(anchor)
	return Entity{
		ID:      id,
		Kind:    KindBlock,
		Title:   id,
		Anchor:  d,
		Start:   start,
		Rule:    recurrence.Rule{Kind: recurrence.None},
		Offsets: offsets,
	}
}

func keys(instances []Instance) []string {
	out := make([]string, 0, len(instances))
	for _, i := range instances {
		out = append(out, i.Key())
	}
	return out
}

func TestMatchDuePreStartOffset(t *testing.T) {
	t.Parallel()
	e := singleBlock("meeting", "2024-05-06", tod(9, 0), 15)

	tests := []struct {
		now  string
		want bool
	}{
		{"08:45", true},  // exactly at target
		{"08:44", true},  // within the 2-minute margin
		{"08:47", true},  // within the 2-minute margin, before start
		{"08:30", false}, // delta 15 > margin
		{"09:01", false}, // event already started
	}
	for _, tt := range tests {
		got := MatchDue(at(t, "2024-05-06", tt.now), []Entity{e})
		if (len(got) == 1) != tt.want {
			t.Fatalf("now=%s: due=%v, want %v", tt.now, keys(got), tt.want)
		}
	}
}

func TestMatchDueAtStartGrace(t *testing.T) {
	t.Parallel()
	e := singleBlock("standup", "2024-05-06", tod(9, 0), 0)

	tests := []struct {
		now  string
		want bool
	}{
		{"09:00", true},
		{"09:04", true},  // late but inside the grace window
		{"09:05", true},  // grace boundary is inclusive
		{"09:06", false}, // grace window closed
		{"08:59", true},  // one tick early
		{"08:57", false},
	}
	for _, tt := range tests {
		got := MatchDue(at(t, "2024-05-06", tt.now), []Entity{e})
		if (len(got) == 1) != tt.want {
			t.Fatalf("now=%s: due=%v, want %v", tt.now, keys(got), tt.want)
		}
	}
}

func TestMatchDueSmallOffsetUsesTightMargin(t *testing.T) {
	t.Parallel()
	e := singleBlock("leave", "2024-05-06", tod(9, 0), 5)

	// target 08:55, margin 1.
	if got := MatchDue(at(t, "2024-05-06", "08:56"), []Entity{e}); len(got) != 1 {
		t.Fatalf("08:56 should be due, got %v", keys(got))
	}
	if got := MatchDue(at(t, "2024-05-06", "08:57"), []Entity{e}); len(got) != 0 {
		t.Fatalf("08:57 should not be due, got %v", keys(got))
	}
}

func TestMatchDueNeverFiresForPastDays(t *testing.T) {
	t.Parallel()
	d, _ := recurrence.ParseDate("2024-05-01")
	e := Entity{
		ID:      "daily",
		Anchor:  d,
		Start:   tod(9, 0),
		Rule:    recurrence.Rule{Kind: recurrence.Daily, Interval: 1, Until: recurrence.NewDate(2024, time.May, 3)},
		Offsets: []int{0},
	}
	// The rule ended two days ago; no instance may fire today.
	if got := MatchDue(at(t, "2024-05-05", "09:00"), []Entity{e}); len(got) != 0 {
		t.Fatalf("expected nothing due, got %v", keys(got))
	}
}

func TestMatchDueRecurringOnlyOnMatchingDay(t *testing.T) {
	t.Parallel()
	d, _ := recurrence.ParseDate("2024-05-06") // Monday
	e := Entity{
		ID:      "gym",
		Anchor:  d,
		Start:   tod(18, 0),
		Rule:    recurrence.Rule{Kind: recurrence.Weekly, Interval: 1, Weekdays: recurrence.Weekdays(time.Monday, time.Thursday)},
		Offsets: []int{30},
	}

	if got := MatchDue(at(t, "2024-05-09", "17:30"), []Entity{e}); len(got) != 1 {
		t.Fatalf("Thursday 17:30 should be due, got %v", keys(got))
	}
	if got := MatchDue(at(t, "2024-05-10", "17:30"), []Entity{e}); len(got) != 0 {
		t.Fatalf("Friday should not be due, got %v", keys(got))
	}
}

func TestMatchDueSkipsEntitiesWithoutOffsets(t *testing.T) {
	t.Parallel()
	e := singleBlock("silent", "2024-05-06", tod(9, 0))
	if got := MatchDue(at(t, "2024-05-06", "09:00"), []Entity{e}); len(got) != 0 {
		t.Fatalf("entity without offsets must never fire, got %v", keys(got))
	}
}

func TestMatchDueTaskDefaultStart(t *testing.T) {
	t.Parallel()
	d, _ := recurrence.ParseDate("2024-05-06")
	e := Entity{
		ID:      "groceries",
		Kind:    KindTask,
		Anchor:  d,
		Rule:    recurrence.Rule{Kind: recurrence.None},
		Offsets: []int{0},
	}
	if got := MatchDue(at(t, "2024-05-06", "09:00"), []Entity{e}); len(got) != 1 {
		t.Fatalf("task without a start time should fire at %v, got %v", DefaultStart, keys(got))
	}
	if got := MatchDue(at(t, "2024-05-06", "10:00"), []Entity{e}); len(got) != 0 {
		t.Fatalf("expected nothing due at 10:00, got %v", keys(got))
	}
}

func TestMatchDueNegativeTargetSkipped(t *testing.T) {
	t.Parallel()
	// 00:10 start with a 30-minute offset would target the previous day.
	e := singleBlock("early", "2024-05-06", tod(0, 10), 30)
	if got := MatchDue(at(t, "2024-05-06", "00:10"), []Entity{e}); len(got) != 0 {
		t.Fatalf("negative target minute must be skipped, got %v", keys(got))
	}
}

func TestMatchDueMultipleOffsets(t *testing.T) {
	t.Parallel()
	e := singleBlock("review", "2024-05-06", tod(14, 0), 60, 15, 0)

	got := MatchDue(at(t, "2024-05-06", "13:45"), []Entity{e})
	if len(got) != 1 || got[0].Offset != 15 {
		t.Fatalf("expected only the 15-minute reminder, got %v", keys(got))
	}
}

func TestInstanceKeyStable(t *testing.T) {
	t.Parallel()
	i := Instance{EntityID: "blk-7", Date: recurrence.NewDate(2024, time.May, 6), Offset: 15}
	if i.Key() != "blk-7-2024-05-06-15" {
		t.Fatalf("Key = %q", i.Key())
	}
	j := Instance{EntityID: "blk-7", Date: recurrence.NewDate(2024, time.May, 6), Offset: 15}
	if i.Key() != j.Key() {
		t.Fatal("equal instances must produce equal keys")
	}
	k := Instance{EntityID: "blk-7", Date: recurrence.NewDate(2024, time.May, 6), Offset: 0}
	if i.Key() == k.Key() {
		t.Fatal("distinct offsets must produce distinct keys")
	}
}
