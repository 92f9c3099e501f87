package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterAgent/internal/domain"
)

type immediateDriver struct {
	started, stopped bool
}

func (d *immediateDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	job(fixedNow)
	job(fixedNow.Add(7 * 24 * time.Hour))
	return nil
}

func (d *immediateDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

type recordingRunner struct {
	runIDs []string
	err    error
}

func (r *recordingRunner) Run(_ context.Context, state domain.PipelineState) (domain.PipelineState, error) {
	r.runIDs = append(r.runIDs, state.RunID)
	return state, r.err
}

func TestSchedulerStartsRunsWithFreshIDs(t *testing.T) {
	t.Parallel()

	ids := []string{"run-a", "run-b"}
	next := 0
	newID := func() string {
		id := ids[next]
		next++
		return id
	}

	driver := &immediateDriver{}
	runner := &recordingRunner{err: errors.New("boom")}
	s := NewScheduler(driver, runner, newID, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	assert.True(t, driver.started)
	assert.True(t, driver.stopped)
	assert.Equal(t, []string{"run-a", "run-b"}, runner.runIDs)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, &recordingRunner{}, func() string { return "x" }, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
