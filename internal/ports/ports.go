package ports

import (
	"context"
	"time"

	"ArticlesPublisher/internal/domain"
)

// FetchResult is the outcome of a resilient fetch.
type FetchResult struct {
	Body      string
	Succeeded bool
	Strategy  string
}

// Fetcher retrieves documents through direct and proxied strategies.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// CandidateSource discovers candidates for a campaign source.
type CandidateSource interface {
	Discover(ctx context.Context, source domain.Source) ([]domain.CandidateRef, error)
}

// Extractor turns a single item reference into an article.
// A nil article with a nil error means the page yielded nothing usable.
type Extractor interface {
	Extract(ctx context.Context, baseURL, articleURL string) (*domain.Article, error)
}

// LedgerLookup is the dedup predicate used by the filter stage.
type LedgerLookup interface {
	Exists(ctx context.Context, campaignID, url string) (bool, error)
}

// Ledger persists processed records for deduplication and reporting.
type Ledger interface {
	LedgerLookup
	Append(ctx context.Context, rec domain.ProcessedRecord) (domain.ProcessedRecord, error)
	Get(ctx context.Context, id string) (domain.ProcessedRecord, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.ProcessedRecord, error)
	Update(ctx context.Context, rec domain.ProcessedRecord) error
	Delete(ctx context.Context, id string) error
}

// CampaignCatalog lists configured campaigns.
type CampaignCatalog interface {
	List(ctx context.Context) ([]domain.Campaign, error)
	Get(ctx context.Context, id string) (domain.Campaign, error)
}

// RunStateStore keeps the per-campaign lastRunAt timestamp.
type RunStateStore interface {
	LastRunAt(ctx context.Context, campaignID string) (time.Time, bool, error)
	MarkRun(ctx context.Context, campaignID string, at time.Time) error
}

// RewriteRequest is the input of the external rewrite collaborator.
type RewriteRequest struct {
	Title          string
	BodyHTML       string
	LinkingContext []PostRef
	MinWords       int
	MaxWords       int
	Model          string
	CustomPrompt   string
}

// Rewriter is the opaque article -> rewritten article + SEO metadata function.
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (domain.RewriteResult, error)
}

// PostRef is a lightweight reference to an existing CMS post.
type PostRef struct {
	ID    int
	Title string
	Link  string
}

// Category is a CMS taxonomy term.
type Category struct {
	ID   int
	Name string
	Slug string
}

// PostInput carries everything sent on publish.
type PostInput struct {
	Title           string
	ContentHTML     string
	Status          domain.PostStatus
	CategoryID      int
	Slug            string
	FeaturedMediaID int
	FocusKeyphrase  string
	SEOTitle        string
	MetaDescription string
}

// PublishedPost is the CMS answer to a successful publish.
type PublishedPost struct {
	ID     int
	Link   string
	Status string
}

// MediaUpload is a binary asset ready for transfer.
type MediaUpload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// MediaStore is the CMS media subset the image subsystem needs.
type MediaStore interface {
	UploadMediaMultipart(ctx context.Context, m MediaUpload) (int, error)
	UploadMediaBinary(ctx context.Context, m MediaUpload) (int, error)
	UpdateMedia(ctx context.Context, id int, altText, title string) error
}

// CMS is the subset of the CMS REST surface the pipeline depends on.
type CMS interface {
	MediaStore
	VerifyConnection(ctx context.Context) ([]Category, error)
	RecentPosts(ctx context.Context, limit int) ([]PostRef, error)
	CreatePost(ctx context.Context, in PostInput) (PublishedPost, error)
	PostStatus(ctx context.Context, id int) (string, error)
	DeletePost(ctx context.Context, id int, force bool) error
}

// CMSFactory builds a CMS client for a campaign target.
type CMSFactory func(target domain.CMSTarget) CMS

// ImageAcquirer downloads a remote image and uploads it to the CMS media library.
type ImageAcquirer interface {
	Acquire(ctx context.Context, media MediaStore, imageURL, altText, title string) (int, error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when the orchestrator ticks.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
