package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/metrics"
	"ArticlesPublisher/internal/ports"
)

// BatchRunner executes one campaign batch.
type BatchRunner interface {
	Run(ctx context.Context, runID string, campaign domain.Campaign) (RunReport, error)
}

// SchedulerDeps wires the orchestrator.
type SchedulerDeps struct {
	Driver   ports.Scheduler
	Catalog  ports.CampaignCatalog
	Runs     ports.RunStateStore
	Runner   BatchRunner
	Location *time.Location
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	NewRunID func() string
}

// RunInfo identifies the run holding the lock.
type RunInfo struct {
	RunID      string
	CampaignID string
	StartedAt  time.Time
	Manual     bool
}

// Scheduler owns the global run lock and decides which campaign runs on a tick.
type Scheduler struct {
	driver   ports.Scheduler
	catalog  ports.CampaignCatalog
	runs     ports.RunStateStore
	runner   BatchRunner
	location *time.Location
	metrics  *metrics.Metrics
	logger   *slog.Logger
	newRunID func() string

	runLock sync.Mutex
	stateMu sync.RWMutex
	current *RunInfo
	wg      sync.WaitGroup
}

// NewScheduler returns the orchestrator.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	s := &Scheduler{
		driver:   deps.Driver,
		catalog:  deps.Catalog,
		runs:     deps.Runs,
		runner:   deps.Runner,
		location: deps.Location,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		newRunID: deps.NewRunID,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newRunID == nil {
		s.newRunID = uuid.NewString
	}
	return s
}

// Start registers Tick with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.Tick(ctx, trigger); err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop tears down the driver and waits for an in-flight run.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	if s.driver != nil {
		err = s.driver.Stop(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	return err
}

// Tick evaluates campaigns in order and runs the first eligible one to
// completion. It returns the started run, or nil when the lock was held or no
// campaign was due.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (*RunInfo, error) {
	if !s.runLock.TryLock() {
		s.logger.Debug("tick skipped, run in progress")
		return nil, nil
	}
	defer s.runLock.Unlock()

	campaign, ok, err := s.nextEligible(ctx, now)
	if err != nil || !ok {
		return nil, err
	}

	if err := s.runs.MarkRun(ctx, campaign.ID, now); err != nil {
		return nil, fmt.Errorf("mark run %s: %w", campaign.ID, err)
	}

	info := RunInfo{RunID: s.newRunID(), CampaignID: campaign.ID, StartedAt: now}
	s.wg.Add(1)
	defer s.wg.Done()
	s.execute(ctx, info, campaign)
	return &info, nil
}

// Trigger starts a manual run of campaignID in the background, bypassing the
// schedule window but not the run lock.
func (s *Scheduler) Trigger(ctx context.Context, campaignID string) (RunInfo, error) {
	campaign, err := s.catalog.Get(ctx, campaignID)
	if err != nil {
		return RunInfo{}, err
	}
	if !s.runLock.TryLock() {
		return RunInfo{}, domain.ErrRunInProgress
	}

	now := time.Now().In(s.location)
	if err := s.runs.MarkRun(ctx, campaign.ID, now); err != nil {
		s.runLock.Unlock()
		return RunInfo{}, fmt.Errorf("mark run %s: %w", campaign.ID, err)
	}

	info := RunInfo{RunID: s.newRunID(), CampaignID: campaign.ID, StartedAt: now, Manual: true}
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.runLock.Unlock()
		s.execute(runCtx, info, campaign)
	}()
	return info, nil
}

// Running reports the run currently holding the lock.
func (s *Scheduler) Running() (RunInfo, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.current == nil {
		return RunInfo{}, false
	}
	return *s.current, true
}

// Wait blocks until background runs finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) nextEligible(ctx context.Context, now time.Time) (domain.Campaign, bool, error) {
	campaigns, err := s.catalog.List(ctx)
	if err != nil {
		return domain.Campaign{}, false, fmt.Errorf("list campaigns: %w", err)
	}

	local := now.In(s.location)
	for _, campaign := range campaigns {
		if !campaign.Active() || !campaign.Schedule.InWindow(local) {
			continue
		}
		last, ok, err := s.runs.LastRunAt(ctx, campaign.ID)
		if err != nil {
			s.logger.Warn("last run lookup failed", "campaign_id", campaign.ID, "error", err)
			continue
		}
		if ok && now.Before(last.Add(campaign.Schedule.MinInterval())) {
			continue
		}
		return campaign, true, nil
	}
	return domain.Campaign{}, false, nil
}

// execute must be called with runLock held.
func (s *Scheduler) execute(ctx context.Context, info RunInfo, campaign domain.Campaign) {
	s.stateMu.Lock()
	s.current = &info
	s.stateMu.Unlock()
	s.metrics.RunInProgress.Set(1)

	defer func() {
		s.stateMu.Lock()
		s.current = nil
		s.stateMu.Unlock()
		s.metrics.RunInProgress.Set(0)
	}()

	logger := s.logger.With("run_id", info.RunID, "campaign_id", campaign.ID)
	logger.Info("campaign run started", "manual", info.Manual)

	started := time.Now()
	report, err := s.runner.Run(ctx, info.RunID, campaign)
	s.metrics.RunDurationSeconds.WithLabelValues(campaign.ID).Observe(time.Since(started).Seconds())

	result := "ok"
	switch {
	case errors.Is(err, domain.ErrNoCandidates):
		result = "empty"
		logger.Warn("campaign run found no candidates")
	case err != nil:
		result = "error"
		logger.Error("campaign run failed", "error", err)
	default:
		logger.Info("campaign run finished",
			"attempted", report.Attempted,
			"published", len(report.Published),
			"failed", report.Failed)
	}
	s.metrics.RunsTotal.WithLabelValues(campaign.ID, result).Inc()
}
