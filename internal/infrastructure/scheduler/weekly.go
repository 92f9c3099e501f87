package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NewsletterAgent/internal/ports"
)

// WeeklyScheduler fires once a week at a wall-clock time in a timezone.
type WeeklyScheduler struct {
	weekday time.Weekday
	hour    int
	minute  int
	loc     *time.Location

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*WeeklyScheduler)(nil)

// NewWeeklyScheduler validates the clock and defaults the location to UTC.
func NewWeeklyScheduler(weekday time.Weekday, hour, minute int, loc *time.Location) (*WeeklyScheduler, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid schedule time %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WeeklyScheduler{weekday: weekday, hour: hour, minute: minute, loc: loc}, nil
}

// Next returns the first firing time strictly after now.
func (w *WeeklyScheduler) Next(now time.Time) time.Time {
	local := now.In(w.loc)
	days := (int(w.weekday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+days, w.hour, w.minute, 0, 0, w.loc)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+days+7, w.hour, w.minute, 0, 0, w.loc)
	}
	return candidate
}

// Start waits for each firing time and calls job synchronously, so runs never overlap.
func (w *WeeklyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	w.stop, w.done = stop, done

	go func() {
		defer close(done)
		for {
			next := w.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case t := <-timer.C:
				job(t)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for a running job to return or ctx to expire.
func (w *WeeklyScheduler) Stop(ctx context.Context) error {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
