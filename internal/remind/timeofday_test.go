package remind

import "testing"

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    TimeOfDay
		wantErr bool
	}{
		{raw: "09:00", want: TimeOfDay{Hour: 9}},
		{raw: "23:59", want: TimeOfDay{Hour: 23, Minute: 59}},
		{raw: "0:05", want: TimeOfDay{Minute: 5}},
		{raw: " 14:30 ", want: TimeOfDay{Hour: 14, Minute: 30}},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseTimeOfDay(%q): expected error, got %v", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q): %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestTimeOfDayMinutesAndString(t *testing.T) {
	t.Parallel()
	v := TimeOfDay{Hour: 9, Minute: 30}
	if v.Minutes() != 570 {
		t.Fatalf("Minutes = %d", v.Minutes())
	}
	if v.String() != "09:30" {
		t.Fatalf("String = %q", v.String())
	}
}
