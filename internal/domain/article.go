package domain

import "time"

// CandidateRef is a discovered but not yet fetched content item.
// Title and ImageURL are optional hints some sources (feeds) carry.
type CandidateRef struct {
	URL        string
	ObservedAt time.Time
	Title      string
	ImageURL   string
}

// Article is the normalized extraction result of a single page.
type Article struct {
	Title     string
	BodyHTML  string
	ImageURL  string
	SourceURL string
}

// HasImage reports whether the article declares a representative image.
func (a Article) HasImage() bool {
	return a.ImageURL != ""
}

// RewriteResult is returned by the external rewrite collaborator.
type RewriteResult struct {
	BodyHTML        string
	FocusKeyphrase  string
	SEOTitle        string
	MetaDescription string
	Slug            string
	ImageAlt        string
	Synonyms        []string
	TokensUsed      int
}

// RecordStatus enumerates the terminal and intermediate states of a processed article.
type RecordStatus string

const (
	StatusFetched    RecordStatus = "fetched"
	StatusRewritten  RecordStatus = "rewritten"
	StatusTranslated RecordStatus = "translated"
	StatusPublished  RecordStatus = "published"
	StatusDraft      RecordStatus = "draft"
	StatusFailed     RecordStatus = "failed"
	StatusTrashed    RecordStatus = "trashed"
)

// Valid reports whether s is one of the known statuses.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusFetched, StatusRewritten, StatusTranslated, StatusPublished,
		StatusDraft, StatusFailed, StatusTrashed:
		return true
	}
	return false
}

// ProcessedRecord is the ledger entry written once per attempted article.
type ProcessedRecord struct {
	ID         string
	CampaignID string
	CMSPostID  *int
	Title      string
	SourceURL  string
	TargetURL  string
	Status     RecordStatus
	TokensUsed *int
	CreatedAt  time.Time
	Logs       []string
}
