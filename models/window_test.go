package models

import (
	"errors"
	"testing"
	"time"
)

func TestNewDateWindow(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*3600)
	w, err := NewDateWindow(time.Date(2024, 12, 1, 23, 30, 0, 0, loc), time.Date(2024, 12, 10, 1, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("NewDateWindow: %v", err)
	}
	if got := w.String(); got != "2024-12-01..2024-12-10" {
		t.Errorf("String: got %q, want %q", got, "2024-12-01..2024-12-10")
	}
	if got := w.Days(); got != 10 {
		t.Errorf("Days: got %d, want 10", got)
	}
}

func TestDateWindowValidate(t *testing.T) {
	d := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		w       DateWindow
		wantErr bool
	}{
		{"single day", DateWindow{From: d, To: d}, false},
		{"inverted", DateWindow{From: d.AddDate(0, 0, 1), To: d}, true},
		{"zero from", DateWindow{To: d}, true},
		{"zero to", DateWindow{From: d}, true},
	}
	for _, tt := range tests {
		err := tt.w.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: got err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInput) {
			t.Errorf("%s: error should wrap ErrInput, got %v", tt.name, err)
		}
	}
}

func TestDateWindowContains(t *testing.T) {
	w := DateWindow{
		From: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC),
	}
	tests := []struct {
		d    time.Time
		want bool
	}{
		{time.Date(2024, 11, 30, 23, 59, 0, 0, time.UTC), false},
		{time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 12, 3, 18, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 12, 4, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.d); got != tt.want {
			t.Errorf("Contains(%v): got %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-12-03", "2024/12/03", "12/03/2024", "2024-12-03 14:22:01", "2024-12-03T14:22:01", "2024-12-03T14:22:01Z"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q): got %v, want %v", in, got, want)
		}
	}
	if _, err := ParseDate("yesterday"); err == nil {
		t.Error("ParseDate(yesterday): expected an error")
	}
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	a := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	b := time.Date(2024, 3, 11, 12, 0, 0, 0, loc)
	if got := DaysBetween(a, b); got != 2 {
		t.Errorf("DaysBetween: got %d, want 2", got)
	}
}

func TestMissingRanges(t *testing.T) {
	d := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	r := GapReport{Stores: []StoreGap{
		{StoreID: "A", Ranges: []DateRange{{Start: d, End: d.AddDate(0, 0, 1)}}},
		{StoreID: "B"},
		{StoreID: "C", Ranges: []DateRange{{Start: d, End: d}, {Start: d.AddDate(0, 0, 5), End: d.AddDate(0, 0, 9)}}},
	}}
	got := r.MissingRanges()
	if len(got) != 3 {
		t.Fatalf("MissingRanges: got %d, want 3", len(got))
	}
	if got[0].StoreID != "A" || got[0].Days() != 2 {
		t.Errorf("first: got %s %d days", got[0].StoreID, got[0].Days())
	}
	if got[2].StoreID != "C" || got[2].Days() != 5 {
		t.Errorf("last: got %s %d days", got[2].StoreID, got[2].Days())
	}
}
