package usecase

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/events"
	"ArticlesPublisher/internal/metrics"
	"ArticlesPublisher/internal/ports"
)

// CampaignRunnerDeps wires a batch run.
type CampaignRunnerDeps struct {
	Source   ports.CandidateSource
	Ledger   ports.Ledger
	Pipeline *Pipeline
	CMS      ports.CMSFactory
	Notifier ports.Notifier
	Sink     events.Sink
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Sleep pauses between article attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// CampaignRunner discovers, filters and processes one batch for a campaign.
type CampaignRunner struct {
	source   ports.CandidateSource
	ledger   ports.Ledger
	pipeline *Pipeline
	cms      ports.CMSFactory
	notifier ports.Notifier
	sink     events.Sink
	metrics  *metrics.Metrics
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewCampaignRunner fills defaults for optional dependencies.
func NewCampaignRunner(deps CampaignRunnerDeps) *CampaignRunner {
	r := &CampaignRunner{
		source:   deps.Source,
		ledger:   deps.Ledger,
		pipeline: deps.Pipeline,
		cms:      deps.CMS,
		notifier: deps.Notifier,
		sink:     deps.Sink,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		sleep:    deps.Sleep,
		now:      deps.Now,
	}
	if r.sink == nil {
		r.sink = events.Discard
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// PublishedItem is a post created during a run.
type PublishedItem struct {
	Title  string
	Link   string
	Status domain.RecordStatus
}

// RunReport summarizes one batch run.
type RunReport struct {
	RunID      string
	CampaignID string
	Discovered int
	Queued     int
	Attempted  int
	Published  []PublishedItem
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run executes one batch. Articles are processed strictly in order; a failed
// article is logged and the batch moves on. Zero discovered candidates aborts
// the run with domain.ErrNoCandidates.
func (r *CampaignRunner) Run(ctx context.Context, runID string, campaign domain.Campaign) (RunReport, error) {
	report := RunReport{RunID: runID, CampaignID: campaign.ID, StartedAt: r.now()}
	rec := events.NewRecorder(r.sink, runID, campaign.ID)
	rec.Log(ctx, events.LevelInfo, fmt.Sprintf("campaign %q: discovering %s", campaign.Name, campaign.Source.URL))

	candidates, err := r.source.Discover(ctx, campaign.Source)
	if err != nil {
		rec.Log(ctx, events.LevelError, "discovery failed: "+err.Error())
		return r.finish(report), fmt.Errorf("discover %s: %w", campaign.Source.URL, err)
	}
	report.Discovered = len(candidates)
	if len(candidates) == 0 {
		rec.Log(ctx, events.LevelWarn, "no candidates found")
		return r.finish(report), fmt.Errorf("campaign %s: %w", campaign.ID, domain.ErrNoCandidates)
	}

	queue, err := FilterCandidates(ctx, campaign.ID, candidates, campaign.Filter, r.ledger)
	if err != nil {
		rec.Log(ctx, events.LevelError, "filter failed: "+err.Error())
		return r.finish(report), err
	}
	report.Queued = len(queue)
	rec.Log(ctx, events.LevelInfo, fmt.Sprintf("%d discovered, %d new", report.Discovered, report.Queued))

	batch := campaign.Schedule.BatchSize
	if batch <= 0 {
		batch = 1
	}
	if len(queue) > batch {
		queue = queue[:batch]
	}

	cms := r.cms(campaign.CMS)
	delay := campaign.Schedule.InterPostDelay()
	for i, candidate := range queue {
		if i > 0 && delay > 0 {
			rec.Log(ctx, events.LevelDebug, fmt.Sprintf("waiting %s before next article", delay))
			if err := r.sleep(ctx, delay); err != nil {
				rec.Log(ctx, events.LevelWarn, "run interrupted: "+err.Error())
				break
			}
		}

		report.Attempted++
		outcome, err := r.pipeline.Process(ctx, Job{
			RunID:     runID,
			Campaign:  campaign,
			CMS:       cms,
			Candidate: candidate,
			Sink:      r.sink,
		})
		if err != nil {
			report.Failed++
			r.logger.Warn("article failed", "run_id", runID, "campaign_id", campaign.ID, "url", candidate.URL, "error", err)
			continue
		}
		if outcome.Post != nil {
			report.Published = append(report.Published, PublishedItem{
				Title:  outcome.Title,
				Link:   outcome.Post.Link,
				Status: outcome.Status,
			})
		}
	}

	rec.Log(ctx, events.LevelSuccess, fmt.Sprintf("run finished: %d attempted, %d published, %d failed",
		report.Attempted, len(report.Published), report.Failed))
	r.notify(ctx, campaign, report)
	return r.finish(report), nil
}

func (r *CampaignRunner) finish(report RunReport) RunReport {
	report.FinishedAt = r.now()
	return report
}

func (r *CampaignRunner) notify(ctx context.Context, campaign domain.Campaign, report RunReport) {
	if r.notifier == nil || len(report.Published) == 0 {
		return
	}
	if err := r.notifier.PublishDigest(ctx, buildDigestMessage(campaign, report)); err != nil {
		r.logger.Warn("digest delivery failed", "campaign_id", campaign.ID, "error", err)
	}
}

func buildDigestMessage(campaign domain.Campaign, report RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n%d attempted, %d published, %d failed\n\n",
		html.EscapeString(campaign.Name), report.Attempted, len(report.Published), report.Failed)
	for _, item := range report.Published {
		fmt.Fprintf(&b, "- <a href=\"%s\">%s</a> (%s)\n",
			html.EscapeString(item.Link), html.EscapeString(item.Title), item.Status)
	}
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
