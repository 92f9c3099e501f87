package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestWeeklySchedulerNext(t *testing.T) {
	t.Parallel()

	berlin := time.FixedZone("CET", 3600)
	s, err := NewWeeklyScheduler(time.Friday, 10, 0, berlin)
	if err != nil {
		t.Fatalf("NewWeeklyScheduler error: %v", err)
	}

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "earlier in the week",
			now:  time.Date(2026, time.March, 2, 9, 0, 0, 0, berlin),
			want: time.Date(2026, time.March, 6, 10, 0, 0, 0, berlin),
		},
		{
			name: "same day before time",
			now:  time.Date(2026, time.March, 6, 9, 59, 0, 0, berlin),
			want: time.Date(2026, time.March, 6, 10, 0, 0, 0, berlin),
		},
		{
			name: "exactly at time",
			now:  time.Date(2026, time.March, 6, 10, 0, 0, 0, berlin),
			want: time.Date(2026, time.March, 13, 10, 0, 0, 0, berlin),
		},
		{
			name: "saturday",
			now:  time.Date(2026, time.March, 7, 8, 0, 0, 0, berlin),
			want: time.Date(2026, time.March, 13, 10, 0, 0, 0, berlin),
		},
		{
			name: "input in utc",
			now:  time.Date(2026, time.March, 6, 8, 30, 0, 0, time.UTC),
			want: time.Date(2026, time.March, 6, 10, 0, 0, 0, berlin),
		},
	}

	for _, tc := range cases {
		if got := s.Next(tc.now); !got.Equal(tc.want) {
			t.Fatalf("%s: Next(%v) = %v, want %v", tc.name, tc.now, got, tc.want)
		}
	}
}

func TestWeeklySchedulerRejectsBadClock(t *testing.T) {
	t.Parallel()

	if _, err := NewWeeklyScheduler(time.Monday, 24, 0, nil); err == nil {
		t.Fatalf("expected error for hour 24")
	}
	if _, err := NewWeeklyScheduler(time.Monday, 10, 60, nil); err == nil {
		t.Fatalf("expected error for minute 60")
	}
}

func TestWeeklySchedulerStartStop(t *testing.T) {
	t.Parallel()

	s, err := NewWeeklyScheduler(time.Monday, 10, 0, nil)
	if err != nil {
		t.Fatalf("NewWeeklyScheduler error: %v", err)
	}

	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("second Start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop error: %v", err)
	}
}
