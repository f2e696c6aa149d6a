package scheduling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"08:30", NewTimeOfDay(8, 30), false},
		{"8:30", NewTimeOfDay(8, 30), false},
		{"13:00:00", NewTimeOfDay(13, 0), false},
		{"00:00", 0, false},
		{"24:00", 0, true},
		{"08:60", 0, true},
		{"8:5", 0, true},
		{"08:30:15", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimeOfDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDay_Display(t *testing.T) {
	tests := map[TimeOfDay]string{
		NewTimeOfDay(0, 0):   "12:00 AM",
		NewTimeOfDay(8, 30):  "8:30 AM",
		NewTimeOfDay(12, 0):  "12:00 PM",
		NewTimeOfDay(13, 45): "1:45 PM",
	}
	for in, want := range tests {
		if got := in.Display(); got != want {
			t.Errorf("Display(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	var w Window
	if err := json.Unmarshal([]byte(`{"start":"08:00","end":"11:00"}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Start != NewTimeOfDay(8, 0) || w.End != NewTimeOfDay(11, 0) {
		t.Errorf("unexpected window %+v", w)
	}
	b, _ := json.Marshal(w)
	if string(b) != `{"start":"08:00","end":"11:00"}` {
		t.Errorf("unexpected json %s", b)
	}
	if err := json.Unmarshal([]byte(`{"start":480}`), &w); err == nil {
		t.Error("expected error for numeric time")
	}
}

func TestTimeOfDay_PGRoundTrip(t *testing.T) {
	in := NewTimeOfDay(15, 30)
	v, err := in.TimeValue()
	if err != nil {
		t.Fatal(err)
	}
	if v.Microseconds != int64(15*time.Hour+30*time.Minute)/1000 {
		t.Errorf("unexpected microseconds %d", v.Microseconds)
	}
	var out TimeOfDay
	if err := out.ScanTime(v); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("got %v, want %v", out, in)
	}
	if err := out.ScanTime(pgtype.Time{}); err == nil {
		t.Error("expected error scanning NULL")
	}
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if d.Weekday() != time.Monday {
		t.Errorf("expected Monday, got %s", d.Weekday())
	}
	b, _ := json.Marshal(d)
	if string(b) != `"2026-03-02"` {
		t.Errorf("unexpected json %s", b)
	}

	manila := time.FixedZone("PHT", 8*3600)
	late := time.Date(2026, 3, 2, 23, 30, 0, 0, manila)
	if got := DateOf(late); !got.Equal(d.Time) {
		t.Errorf("DateOf = %s, want 2026-03-02", got)
	}

	if _, err := ParseDate("03/02/2026"); err == nil {
		t.Error("expected error for wrong layout")
	}

	v, _ := d.DateValue()
	var back Date
	if err := back.ScanDate(v); err != nil || !back.Equal(d.Time) {
		t.Errorf("round trip failed: %v %v", back, err)
	}
}

func TestSlotDuration(t *testing.T) {
	tests := map[string]int{
		"general_consult": 30,
		"dental":          45,
		"immunization":    20,
		"something_else":  DefaultSlotMinutes,
	}
	for code, want := range tests {
		if got := SlotDuration(code); got != want {
			t.Errorf("SlotDuration(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestDoctorAvailability_WorksOn(t *testing.T) {
	a := DefaultAvailability([16]byte{1})
	a.Saturday, a.Sunday = false, false
	if !a.WorksOn(time.Monday) || a.WorksOn(time.Saturday) || a.WorksOn(time.Sunday) {
		t.Errorf("unexpected weekday flags: %+v", a)
	}
	if !a.IsDefault {
		t.Error("expected IsDefault")
	}
}
