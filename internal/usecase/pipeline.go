package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/events"
	"ArticlesPublisher/internal/metrics"
	"ArticlesPublisher/internal/ports"
)

const recentPostsForLinking = 5

// DefaultBlockedPhrases mark challenge or error pages that slipped past the
// fetch layer's plausibility check.
var DefaultBlockedPhrases = []string{
	"just a moment",
	"checking your browser",
	"attention required",
	"access denied",
	"verify you are human",
	"enable javascript and cookies",
	"403 forbidden",
	"captcha",
}

var errNoContent = errors.New("no usable content extracted")

// PipelineDeps wires all driven adapters into the per-article pipeline.
type PipelineDeps struct {
	Extractor      ports.Extractor
	Rewriter       ports.Rewriter
	Images         ports.ImageAcquirer
	Ledger         ports.Ledger
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	BlockedPhrases []string
}

// Pipeline implements the per-article workflow:
// fetched -> as-is | rewritten -> image resolved -> published | draft | failed.
type Pipeline struct {
	extractor ports.Extractor
	rewriter  ports.Rewriter
	images    ports.ImageAcquirer
	ledger    ports.Ledger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	blocked   []string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		extractor: deps.Extractor,
		rewriter:  deps.Rewriter,
		images:    deps.Images,
		ledger:    deps.Ledger,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	for _, phrase := range deps.BlockedPhrases {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			p.blocked = append(p.blocked, phrase)
		}
	}
	if len(p.blocked) == 0 {
		p.blocked = DefaultBlockedPhrases
	}
	return p
}

// Job is one article attempt inside a campaign run.
type Job struct {
	RunID     string
	Campaign  domain.Campaign
	CMS       ports.CMS
	Candidate domain.CandidateRef
	Sink      events.Sink
}

// Outcome describes how an attempt ended. Record is nil when the article was
// rejected before anything was written to the ledger.
type Outcome struct {
	Status domain.RecordStatus
	Title  string
	Post   *ports.PublishedPost
	Record *domain.ProcessedRecord
}

// Process runs one candidate through the pipeline. The returned error is the
// reason of a failed outcome; it never needs to abort the enclosing batch.
func (p *Pipeline) Process(ctx context.Context, job Job) (Outcome, error) {
	rec := events.NewRecorder(job.Sink, job.RunID, job.Campaign.ID)
	candidateURL := job.Candidate.URL
	if err := p.checkUnrecorded(ctx, job); err != nil {
		rec.Log(ctx, events.LevelError, err.Error())
		p.metrics.ArticlesTotal.WithLabelValues(job.Campaign.ID, "rejected").Inc()
		return Outcome{Status: domain.StatusFailed}, err
	}
	rec.Log(ctx, events.LevelInfo, "extracting "+candidateURL)

	article, err := p.extract(ctx, job)
	if err != nil {
		rec.Log(ctx, events.LevelError, err.Error())
		p.metrics.ArticlesTotal.WithLabelValues(job.Campaign.ID, "rejected").Inc()
		return Outcome{Status: domain.StatusFailed}, err
	}
	rec.Log(ctx, events.LevelInfo, fmt.Sprintf("extracted %q (%d chars)", article.Title, len(article.BodyHTML)))

	draft := publishDraft{title: article.Title, body: article.BodyHTML, alt: article.Title}
	var tokens *int

	if job.Campaign.Processing.Mode == domain.ModeRewrite {
		result, err := p.rewrite(ctx, job, article, rec)
		if err != nil {
			return p.fail(ctx, job, rec, article.Title, tokens, err)
		}
		t := result.TokensUsed
		tokens = &t
		draft.apply(result)
		rec.Log(ctx, events.LevelSuccess, fmt.Sprintf("rewritten, %d tokens", result.TokensUsed))
	}

	imageURL := article.ImageURL
	if imageURL == "" {
		imageURL = job.Candidate.ImageURL
	}
	if imageURL != "" && p.images != nil {
		rec.Log(ctx, events.LevelInfo, "acquiring image "+imageURL)
		mediaID, err := p.images.Acquire(ctx, job.CMS, imageURL, draft.alt, draft.title)
		switch {
		case err != nil && job.Campaign.Processing.StrictImages:
			return p.fail(ctx, job, rec, draft.title, tokens, fmt.Errorf("strict image mode: %w", err))
		case err != nil:
			rec.Log(ctx, events.LevelWarn, "publishing without image: "+err.Error())
		default:
			draft.mediaID = mediaID
			rec.Log(ctx, events.LevelSuccess, fmt.Sprintf("image uploaded as media %d", mediaID))
		}
	}

	post, err := job.CMS.CreatePost(ctx, ports.PostInput{
		Title:           draft.title,
		ContentHTML:     draft.body,
		Status:          job.Campaign.CMS.PostStatus,
		CategoryID:      job.Campaign.CMS.CategoryID,
		Slug:            draft.slug,
		FeaturedMediaID: draft.mediaID,
		FocusKeyphrase:  draft.focus,
		SEOTitle:        draft.seoTitle,
		MetaDescription: draft.metaDescription,
	})
	if err != nil {
		return p.fail(ctx, job, rec, draft.title, tokens, err)
	}

	status := domain.StatusPublished
	if job.Campaign.CMS.PostStatus == domain.PostDraft {
		status = domain.StatusDraft
	}
	rec.Log(ctx, events.LevelSuccess, fmt.Sprintf("post %d created (%s) %s", post.ID, status, post.Link))

	postID := post.ID
	stored, err := p.record(ctx, rec, domain.ProcessedRecord{
		CampaignID: job.Campaign.ID,
		CMSPostID:  &postID,
		Title:      draft.title,
		SourceURL:  candidateURL,
		TargetURL:  post.Link,
		Status:     status,
		TokensUsed: tokens,
	})
	p.metrics.ArticlesTotal.WithLabelValues(job.Campaign.ID, string(status)).Inc()
	return Outcome{Status: status, Title: draft.title, Post: &post, Record: stored}, err
}

// checkUnrecorded refuses candidates whose record could not be appended, so
// nothing reaches the CMS without a ledger entry.
func (p *Pipeline) checkUnrecorded(ctx context.Context, job Job) error {
	if p.ledger == nil {
		return nil
	}
	exists, err := p.ledger.Exists(ctx, job.Campaign.ID, job.Candidate.URL)
	if err != nil {
		return fmt.Errorf("ledger lookup %s: %w", job.Candidate.URL, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateCandidate, job.Candidate.URL)
	}
	return nil
}

func (p *Pipeline) extract(ctx context.Context, job Job) (*domain.Article, error) {
	article, err := p.extractor.Extract(ctx, job.Campaign.Source.URL, job.Candidate.URL)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", job.Candidate.URL, err)
	}
	if article == nil {
		return nil, fmt.Errorf("extract %s: %w", job.Candidate.URL, errNoContent)
	}
	if article.Title == "" {
		article.Title = job.Candidate.Title
	}
	if phrase, ok := p.blockedPhrase(article.Title + " " + article.BodyHTML); ok {
		return nil, fmt.Errorf("%w: %s matched %q", domain.ErrBlockedContent, job.Candidate.URL, phrase)
	}
	if article.SourceURL == "" {
		article.SourceURL = job.Candidate.URL
	}
	return article, nil
}

func (p *Pipeline) blockedPhrase(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range p.blocked {
		if strings.Contains(lower, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func (p *Pipeline) rewrite(ctx context.Context, job Job, article *domain.Article, rec *events.Recorder) (domain.RewriteResult, error) {
	if p.rewriter == nil {
		return domain.RewriteResult{}, fmt.Errorf("%w: no rewriter configured", domain.ErrRewrite)
	}

	links, err := job.CMS.RecentPosts(ctx, recentPostsForLinking)
	if err != nil {
		rec.Log(ctx, events.LevelWarn, "recent posts unavailable: "+err.Error())
		links = nil
	}

	cfg := job.Campaign.Processing
	rec.Log(ctx, events.LevelInfo, "rewriting with "+cfg.Model)
	result, err := p.rewriter.Rewrite(ctx, ports.RewriteRequest{
		Title:          article.Title,
		BodyHTML:       article.BodyHTML,
		LinkingContext: links,
		MinWords:       cfg.MinWords,
		MaxWords:       cfg.MaxWords,
		Model:          cfg.Model,
		CustomPrompt:   cfg.CustomPrompt,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrRewrite) {
			err = fmt.Errorf("%w: %w", domain.ErrRewrite, err)
		}
		return domain.RewriteResult{}, err
	}
	return result, nil
}

// fail appends the failed record and reports err.
func (p *Pipeline) fail(ctx context.Context, job Job, rec *events.Recorder, title string, tokens *int, cause error) (Outcome, error) {
	rec.Log(ctx, events.LevelError, cause.Error())
	stored, err := p.record(ctx, rec, domain.ProcessedRecord{
		CampaignID: job.Campaign.ID,
		Title:      title,
		SourceURL:  job.Candidate.URL,
		Status:     domain.StatusFailed,
		TokensUsed: tokens,
	})
	p.metrics.ArticlesTotal.WithLabelValues(job.Campaign.ID, string(domain.StatusFailed)).Inc()
	if err != nil {
		cause = errors.Join(cause, err)
	}
	return Outcome{Status: domain.StatusFailed, Title: title, Record: stored}, cause
}

func (p *Pipeline) record(ctx context.Context, rec *events.Recorder, r domain.ProcessedRecord) (*domain.ProcessedRecord, error) {
	if p.ledger == nil {
		return nil, nil
	}
	r.Logs = rec.Lines()
	stored, err := p.ledger.Append(ctx, r)
	if err != nil {
		p.logger.Error("ledger append failed", "campaign_id", r.CampaignID, "url", r.SourceURL, "error", err)
		return nil, fmt.Errorf("record %s: %w", r.SourceURL, err)
	}
	return &stored, nil
}

// publishDraft is the post assembled from the extracted or rewritten article.
type publishDraft struct {
	title           string
	body            string
	alt             string
	slug            string
	focus           string
	seoTitle        string
	metaDescription string
	mediaID         int
}

func (d *publishDraft) apply(r domain.RewriteResult) {
	if r.BodyHTML != "" {
		d.body = r.BodyHTML
	}
	if r.ImageAlt != "" {
		d.alt = r.ImageAlt
	}
	d.slug = r.Slug
	d.focus = r.FocusKeyphrase
	d.seoTitle = r.SEOTitle
	d.metaDescription = r.MetaDescription
}
