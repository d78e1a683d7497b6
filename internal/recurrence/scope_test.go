package recurrence

import (
	"testing"
	"time"
)

func TestResolveDeletionSingle(t *testing.T) {
	t.Parallel()
	target := NewDate(2024, time.January, 10)
	res := ResolveDeletion(Rule{Kind: Daily, Interval: 2}, NewDate(2024, time.January, 2), target, nil, ScopeSingle, 0)
	if res.EntityWide {
		t.Fatal("single scope must not be entity-wide")
	}
	if len(res.Dates) != 1 || res.Dates[0] != target {
		t.Fatalf("Dates = %v, want [%v]", res.Dates, target)
	}
}

func TestResolveDeletionAll(t *testing.T) {
	t.Parallel()
	res := ResolveDeletion(Rule{Kind: Weekly, Interval: 1}, NewDate(2024, time.January, 1), NewDate(2024, time.January, 8), nil, ScopeAll, 0)
	if !res.EntityWide {
		t.Fatal("all scope must be entity-wide")
	}
	if len(res.Dates) != 0 {
		t.Fatalf("entity-wide resolution must carry no dates, got %v", res.Dates)
	}
}

func TestResolveDeletionCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		rule   Rule
		anchor string
		target string
		n      int
		want   []string
	}{
		{
			name:   "weekly mon wed fri from mid-series",
			rule:   Rule{Kind: Weekly, Interval: 1, Weekdays: Weekdays(time.Monday, time.Wednesday, time.Friday)},
			anchor: "2024-01-01",
			target: "2024-01-03",
			n:      3,
			want:   []string{"2024-01-03", "2024-01-05", "2024-01-08"},
		},
		{
			name:   "large interval needs the padded horizon",
			rule:   Rule{Kind: Weekly, Interval: 3},
			anchor: "2024-01-01",
			target: "2024-01-22",
			n:      4,
			want:   []string{"2024-01-22", "2024-02-12", "2024-03-04", "2024-03-25"},
		},
		{
			name:   "rule ends before count is satisfied",
			rule:   Rule{Kind: Daily, Interval: 1, Until: NewDate(2024, time.January, 12)},
			anchor: "2024-01-01",
			target: "2024-01-10",
			n:      5,
			want:   []string{"2024-01-10", "2024-01-11", "2024-01-12"},
		},
		{
			name:   "zero count returns nothing",
			rule:   Rule{Kind: Daily, Interval: 1},
			anchor: "2024-01-01",
			target: "2024-01-10",
			n:      0,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := ResolveDeletion(tt.rule, mustDate(t, tt.anchor), mustDate(t, tt.target), nil, ScopeCount, tt.n)
			if res.EntityWide {
				t.Fatal("count scope must not be entity-wide")
			}
			if !equalDates(res.Dates, datesOf(t, tt.want...)) {
				t.Fatalf("Dates = %v, want %v", res.Dates, tt.want)
			}
		})
	}
}

func TestParseScope(t *testing.T) {
	t.Parallel()
	for raw, want := range map[string]Scope{"single": ScopeSingle, "ALL": ScopeAll, " count ": ScopeCount, "": ScopeSingle} {
		got, err := ParseScope(raw)
		if err != nil {
			t.Fatalf("ParseScope(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseScope(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseScope("everything"); err == nil {
		t.Fatal("expected error for unknown scope")
	}
}
