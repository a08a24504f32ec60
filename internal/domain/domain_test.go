package domain

import (
	"testing"
	"time"
)

func TestURLsMatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want bool
	}{
		{"https://example.com/post-1", "https://example.com/post-1", true},
		{"http://example.com/post-1", "https://EXAMPLE.com/post-1/", true},
		{"https://example.com/post-1?utm_source=x", "https://example.com/post-1", true},
		{"https://example.com/post-1#top", "https://example.com/post-1", true},
		{"https://example.com/post-1", "https://example.com/post-2", false},
		{"", "https://example.com/post-1", false},
	}

	for _, tc := range cases {
		if got := URLsMatch(tc.a, tc.b); got != tc.want {
			t.Fatalf("URLsMatch(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestScheduleInWindow(t *testing.T) {
	t.Parallel()

	monday10 := time.Date(2025, time.November, 10, 10, 0, 0, 0, time.UTC)
	sched := ScheduleConfig{ActiveDays: []time.Weekday{time.Monday}, StartHour: 9, EndHour: 17}

	if !sched.InWindow(monday10) {
		t.Fatalf("expected monday 10:00 inside window")
	}
	if sched.InWindow(monday10.Add(7 * time.Hour)) {
		t.Fatalf("expected 17:00 outside [9,17)")
	}
	if sched.InWindow(monday10.Add(24 * time.Hour)) {
		t.Fatalf("expected tuesday outside active days")
	}

	overnight := ScheduleConfig{StartHour: 22, EndHour: 6}
	if !overnight.InWindow(time.Date(2025, time.November, 10, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 23:00 inside overnight window")
	}
	if overnight.InWindow(monday10) {
		t.Fatalf("expected 10:00 outside overnight window")
	}

	allDay := ScheduleConfig{StartHour: 0, EndHour: 0}
	if !allDay.InWindow(monday10) {
		t.Fatalf("expected equal hours to mean all day")
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	if d, ok := ParseWeekday(" Wed "); !ok || d != time.Wednesday {
		t.Fatalf("unexpected weekday %v %v", d, ok)
	}
	if _, ok := ParseWeekday("funday"); ok {
		t.Fatalf("expected unknown day to fail")
	}
}
