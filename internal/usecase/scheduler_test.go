package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/infrastructure/storage"
)

type recordingRunner struct {
	mu      sync.Mutex
	runs    []string
	runIDs  []string
	block   chan struct{}
	started chan struct{}
	err     error
	// onRun observes state while the run lock is held.
	onRun func(campaign domain.Campaign)
}

func (r *recordingRunner) Run(_ context.Context, runID string, campaign domain.Campaign) (RunReport, error) {
	r.mu.Lock()
	r.runs = append(r.runs, campaign.ID)
	r.runIDs = append(r.runIDs, runID)
	r.mu.Unlock()
	if r.onRun != nil {
		r.onRun(campaign)
	}
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	return RunReport{RunID: runID, CampaignID: campaign.ID}, r.err
}

func (r *recordingRunner) campaigns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

func scheduledCampaign(id string, start, end int) domain.Campaign {
	c := testCampaign()
	c.ID = id
	c.Schedule = domain.ScheduleConfig{StartHour: start, EndHour: end, MinIntervalMinutes: 60, BatchSize: 1}
	return c
}

func newTestScheduler(runner BatchRunner, store *storage.MemoryStore, loc *time.Location, campaigns ...domain.Campaign) *Scheduler {
	var n atomic.Int64
	return NewScheduler(SchedulerDeps{
		Catalog:  NewStaticCatalog(campaigns),
		Runs:     store,
		Runner:   runner,
		Location: loc,
		NewRunID: func() string { return "run-" + string(rune('a'+n.Add(1)-1)) },
	})
}

// 2025-03-05 is a Wednesday.
var wednesdayTen = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func TestTickRunsOneEligibleCampaignAndMarksRunFirst(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	runner := &recordingRunner{}
	var markedAt []time.Time
	runner.onRun = func(c domain.Campaign) {
		at, ok, err := store.LastRunAt(context.Background(), c.ID)
		assert.NoError(t, err)
		assert.True(t, ok, "lastRunAt persisted before the run")
		markedAt = append(markedAt, at)
	}

	paused := scheduledCampaign("paused", 0, 0)
	paused.Status = domain.CampaignPaused
	s := newTestScheduler(runner, store, time.UTC,
		paused,
		scheduledCampaign("night", 22, 6),
		scheduledCampaign("first", 9, 17),
		scheduledCampaign("second", 0, 0),
	)

	info, err := s.Tick(context.Background(), wednesdayTen)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "first", info.CampaignID)
	assert.Equal(t, []string{"first"}, runner.campaigns())
	require.Len(t, markedAt, 1)
	assert.True(t, markedAt[0].Equal(wednesdayTen))

	// "first" is inside its interval now; "second" is next.
	info, err = s.Tick(context.Background(), wednesdayTen.Add(30*time.Second))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "second", info.CampaignID)

	// both inside their interval
	info, err = s.Tick(context.Background(), wednesdayTen.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, info)

	info, err = s.Tick(context.Background(), wednesdayTen.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "first", info.CampaignID)

	_, running := s.Running()
	assert.False(t, running)
}

func TestTickRespectsActiveDaysAndTimezone(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	c := scheduledCampaign("tokyo", 9, 12)
	c.Schedule.ActiveDays = []time.Weekday{time.Thursday}
	runner := &recordingRunner{}
	s := newTestScheduler(runner, storage.NewMemoryStore(), loc, c)

	// Wednesday 10:00 UTC is Wednesday 19:00 in Tokyo.
	info, err := s.Tick(context.Background(), wednesdayTen)
	require.NoError(t, err)
	assert.Nil(t, info)

	// Thursday 01:00 UTC is Thursday 10:00 in Tokyo.
	info, err = s.Tick(context.Background(), time.Date(2025, 3, 6, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []string{"tokyo"}, runner.campaigns())
}

func TestConcurrentTicksNeverOverlap(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	campaigns := []domain.Campaign{
		scheduledCampaign("a", 0, 0),
		scheduledCampaign("b", 0, 0),
		scheduledCampaign("c", 0, 0),
	}
	s := newTestScheduler(runner, storage.NewMemoryStore(), time.UTC, campaigns...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Tick(context.Background(), wednesdayTen)
	}()
	<-runner.started

	info, ok := s.Running()
	require.True(t, ok)
	assert.Equal(t, "a", info.CampaignID)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Tick(context.Background(), wednesdayTen.Add(time.Minute))
			assert.NoError(t, err)
			assert.Nil(t, got)
		}()
	}
	wg.Wait()

	_, err := s.Trigger(context.Background(), "b")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	close(runner.block)
	<-done
	assert.Equal(t, []string{"a"}, runner.campaigns())
}

func TestTriggerRunsInBackground(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{err: errors.New("boom")}
	c := scheduledCampaign("manual", 3, 4)
	c.Status = domain.CampaignPaused
	store := storage.NewMemoryStore()
	s := newTestScheduler(runner, store, time.UTC, c)

	info, err := s.Trigger(context.Background(), "manual")
	require.NoError(t, err)
	assert.True(t, info.Manual)
	assert.Equal(t, "run-a", info.RunID)
	s.Wait()

	assert.Equal(t, []string{"manual"}, runner.campaigns())
	_, ok, err := store.LastRunAt(context.Background(), "manual")
	require.NoError(t, err)
	assert.True(t, ok)

	// the lock is released after a failed run
	_, err = s.Trigger(context.Background(), "manual")
	require.NoError(t, err)
	s.Wait()

	_, err = s.Trigger(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type fakeDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestStartRegistersTickWithDriver(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	runner := &recordingRunner{}
	s := NewScheduler(SchedulerDeps{
		Driver:  driver,
		Catalog: NewStaticCatalog([]domain.Campaign{scheduledCampaign("a", 0, 0)}),
		Runs:    storage.NewMemoryStore(),
		Runner:  runner,
	})

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)
	driver.job(wednesdayTen)
	assert.Equal(t, []string{"a"}, runner.campaigns())

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}
