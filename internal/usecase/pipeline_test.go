package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/infrastructure/storage"
	"ArticlesPublisher/internal/ports"
)

type pipelineFixture struct {
	extractor *fakeExtractor
	rewriter  *fakeRewriter
	images    *fakeImages
	cms       *fakeCMS
	ledger    *storage.MemoryStore
	pipeline  *Pipeline
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		extractor: &fakeExtractor{articles: map[string]*domain.Article{}, errs: map[string]error{}},
		rewriter:  &fakeRewriter{},
		images:    &fakeImages{mediaID: 77},
		cms:       newFakeCMS(),
		ledger:    storage.NewMemoryStore(),
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Extractor: f.extractor,
		Rewriter:  f.rewriter,
		Images:    f.images,
		Ledger:    f.ledger,
	})
	return f
}

func testCampaign() domain.Campaign {
	return domain.Campaign{
		ID:     "c1",
		Name:   "Tech",
		Status: domain.CampaignActive,
		Source: domain.Source{URL: "https://source.example.com"},
		CMS: domain.CMSTarget{
			URL: "https://blog.example.com", CategoryID: 4,
			PostStatus: domain.PostPublish, SEOPlugin: domain.SEOYoast,
		},
		Processing: domain.ProcessingConfig{Mode: domain.ModeAsIs},
		Schedule:   domain.ScheduleConfig{BatchSize: 1},
	}
}

func (f *pipelineFixture) process(t *testing.T, campaign domain.Campaign, candidate domain.CandidateRef) (Outcome, error) {
	t.Helper()
	return f.pipeline.Process(context.Background(), Job{
		RunID: "run-1", Campaign: campaign, CMS: f.cms, Candidate: candidate,
	})
}

func (f *pipelineFixture) records(t *testing.T) []domain.ProcessedRecord {
	t.Helper()
	recs, err := f.ledger.ListByCampaign(context.Background(), "c1")
	require.NoError(t, err)
	return recs
}

func TestProcessAsIsPublishes(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	url := "https://source.example.com/post-1"
	f.extractor.articles[url] = &domain.Article{
		Title: "Hello", BodyHTML: "<p>Body text long enough to publish.</p>", ImageURL: "https://img.example.com/a.jpg",
	}

	out, err := f.process(t, testCampaign(), domain.CandidateRef{URL: url})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, out.Status)
	require.NotNil(t, out.Post)

	require.Len(t, f.cms.posts, 1)
	post := f.cms.posts[0]
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, 4, post.CategoryID)
	assert.Equal(t, 77, post.FeaturedMediaID)
	assert.Equal(t, domain.PostPublish, post.Status)
	assert.Empty(t, f.rewriter.got, "as-is mode never calls the rewriter")

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusPublished, recs[0].Status)
	assert.Equal(t, url, recs[0].SourceURL)
	assert.Equal(t, out.Post.Link, recs[0].TargetURL)
	require.NotNil(t, recs[0].CMSPostID)
	assert.Equal(t, out.Post.ID, *recs[0].CMSPostID)
	assert.NotEmpty(t, recs[0].Logs)

	found, err := f.ledger.Exists(context.Background(), "c1", url)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestProcessDraftStatus(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	campaign := testCampaign()
	campaign.CMS.PostStatus = domain.PostDraft

	out, err := f.process(t, campaign, domain.CandidateRef{URL: "https://source.example.com/d"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, out.Status)
	assert.Equal(t, domain.PostDraft, f.cms.posts[0].Status)
	assert.Equal(t, domain.StatusDraft, f.records(t)[0].Status)
}

func TestProcessRejectionsWriteNoRecord(t *testing.T) {
	t.Parallel()

	cases := map[string]func(f *pipelineFixture, url string){
		"blocked title": func(f *pipelineFixture, url string) {
			f.extractor.articles[url] = &domain.Article{Title: "Just a moment...", BodyHTML: "<p>Checking the site connection security.</p>"}
		},
		"blocked body": func(f *pipelineFixture, url string) {
			f.extractor.articles[url] = &domain.Article{Title: "News", BodyHTML: "<p>Please complete the CAPTCHA to continue.</p>"}
		},
		"null extraction": func(f *pipelineFixture, _ string) {
			f.pipeline.extractor = nilExtractor{}
		},
		"fetch error": func(f *pipelineFixture, url string) {
			f.extractor.errs[url] = fmt.Errorf("%w: timeout", domain.ErrFetch)
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newPipelineFixture()
			url := "https://source.example.com/x"
			setup(f, url)

			out, err := f.process(t, testCampaign(), domain.CandidateRef{URL: url})
			require.Error(t, err)
			assert.Equal(t, domain.StatusFailed, out.Status)
			assert.Nil(t, out.Record)
			assert.Empty(t, f.records(t))
			assert.Zero(t, f.cms.postCount())
		})
	}
}

type nilExtractor struct{}

var _ ports.Extractor = nilExtractor{}

func (nilExtractor) Extract(context.Context, string, string) (*domain.Article, error) { return nil, nil }

func TestProcessBlockedContentIsClassified(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	url := "https://source.example.com/waf"
	f.extractor.articles[url] = &domain.Article{Title: "Attention Required! | Cloudflare", BodyHTML: "<p>x</p>"}

	_, err := f.process(t, testCampaign(), domain.CandidateRef{URL: url})
	assert.ErrorIs(t, err, domain.ErrBlockedContent)
}

func TestProcessRewriteMode(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.cms.recentErr = errors.New("recent posts down")
	f.rewriter.result = domain.RewriteResult{
		BodyHTML: "<p>rewritten</p>", FocusKeyphrase: "go tips", SEOTitle: "Go Tips",
		MetaDescription: "desc", Slug: "go-tips", ImageAlt: "gopher", TokensUsed: 1234,
	}
	campaign := testCampaign()
	campaign.Processing = domain.ProcessingConfig{
		Mode: domain.ModeRewrite, Model: "gpt-4o-mini", MinWords: 500, MaxWords: 900, CustomPrompt: "be brief",
	}

	out, err := f.process(t, campaign, domain.CandidateRef{URL: "https://source.example.com/r"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, out.Status)
	assert.Equal(t, 1, f.cms.recentCalls)

	require.Len(t, f.rewriter.got, 1)
	req := f.rewriter.got[0]
	assert.Equal(t, 500, req.MinWords)
	assert.Equal(t, 900, req.MaxWords)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, "be brief", req.CustomPrompt)
	assert.Empty(t, req.LinkingContext)

	post := f.cms.posts[0]
	assert.Equal(t, "<p>rewritten</p>", post.ContentHTML)
	assert.Equal(t, "go-tips", post.Slug)
	assert.Equal(t, "go tips", post.FocusKeyphrase)
	assert.Equal(t, "Go Tips", post.SEOTitle)
	assert.Equal(t, "desc", post.MetaDescription)

	recs := f.records(t)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].TokensUsed)
	assert.Equal(t, 1234, *recs[0].TokensUsed)
}

func TestProcessRewriteFailureRecordsFailed(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.rewriter.err = domain.ErrMissingCredential
	campaign := testCampaign()
	campaign.Processing.Mode = domain.ModeRewrite
	campaign.Processing.Model = "claude-sonnet-4"

	out, err := f.process(t, campaign, domain.CandidateRef{URL: "https://source.example.com/r"})
	assert.ErrorIs(t, err, domain.ErrRewrite)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Zero(t, f.cms.postCount())

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusFailed, recs[0].Status)
}

func TestProcessStrictImageFailureNeverPublishes(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.images.err = fmt.Errorf("%w: all download strategies failed", domain.ErrImageAcquisition)
	url := "https://source.example.com/img"
	f.extractor.articles[url] = &domain.Article{Title: "Pic", BodyHTML: "<p>Body with a picture attached to it.</p>", ImageURL: "https://img/x.png"}
	campaign := testCampaign()
	campaign.Processing.StrictImages = true

	out, err := f.process(t, campaign, domain.CandidateRef{URL: url})
	assert.ErrorIs(t, err, domain.ErrImageAcquisition)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Zero(t, f.cms.postCount(), "no publish call under strict mode")

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusFailed, recs[0].Status)
}

func TestProcessLenientImageFailurePublishesWithoutMedia(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.images.err = domain.ErrImageAcquisition
	url := "https://source.example.com/img"
	f.extractor.articles[url] = &domain.Article{Title: "Pic", BodyHTML: "<p>Body with a picture attached to it.</p>", ImageURL: "https://img/x.png"}

	out, err := f.process(t, testCampaign(), domain.CandidateRef{URL: url})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, out.Status)
	assert.Zero(t, f.cms.posts[0].FeaturedMediaID)
}

func TestProcessUsesCandidateImageHint(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	_, err := f.process(t, testCampaign(), domain.CandidateRef{
		URL: "https://source.example.com/feed-item", ImageURL: "https://cdn.example.com/enclosure.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/enclosure.jpg"}, f.images.urls)
	assert.Equal(t, 77, f.cms.posts[0].FeaturedMediaID)
}

func TestProcessPublishFailureRecordsFailed(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.cms.createErr = fmt.Errorf("%w: status 500", domain.ErrPublish)

	out, err := f.process(t, testCampaign(), domain.CandidateRef{URL: "https://source.example.com/p"})
	assert.ErrorIs(t, err, domain.ErrPublish)
	assert.Equal(t, domain.StatusFailed, out.Status)
	require.NotNil(t, out.Record)
	assert.Equal(t, domain.StatusFailed, out.Record.Status)
	assert.Nil(t, out.Record.CMSPostID)
}

func TestProcessedArticleIsFilteredOnNextRun(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.cms.createErr = domain.ErrPublish
	candidate := domain.CandidateRef{URL: "https://source.example.com/once"}

	_, _ = f.process(t, testCampaign(), candidate)

	queue, err := FilterCandidates(context.Background(), "c1",
		[]domain.CandidateRef{candidate, {URL: "https://source.example.com/fresh"}},
		domain.FilterConfig{}, f.ledger)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://source.example.com/fresh"}, urls(queue))
}

func TestProcessRefusesCandidateMatchingARecord(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	_, err := f.ledger.Append(context.Background(), domain.ProcessedRecord{
		CampaignID: "c1", SourceURL: "https://source.example.com/post-1", Status: domain.StatusPublished,
	})
	require.NoError(t, err)

	out, err := f.process(t, testCampaign(), domain.CandidateRef{URL: "https://source.example.com/post-10"})
	require.ErrorIs(t, err, domain.ErrDuplicateCandidate)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Nil(t, out.Record)
	assert.Zero(t, f.cms.postCount())
	assert.Empty(t, f.extractor.calls)
	assert.Len(t, f.records(t), 1)
}
