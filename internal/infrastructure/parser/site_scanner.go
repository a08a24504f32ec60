package parser

import (
	"context"
	"log/slog"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/scanner"
	"ArticlesPublisher/internal/strategy"
)

// defaultFeedPaths are common feed filenames probed under the site root.
var defaultFeedPaths = []string{
	"/feed",
	"/rss",
	"/feed.xml",
	"/rss.xml",
	"/atom.xml",
	"/index.xml",
	"/feed/atom",
}

// FeedPathsScanner probes conventional feed locations.
type FeedPathsScanner struct {
	feeds *FeedScanner
	paths []string
}

var _ scanner.Scanner = (*FeedPathsScanner)(nil)

// NewFeedPathsScanner probes the default feed paths through feeds.
func NewFeedPathsScanner(feeds *FeedScanner) *FeedPathsScanner {
	return &FeedPathsScanner{feeds: feeds, paths: defaultFeedPaths}
}

// Name identifies the strategy inside the registry.
func (s *FeedPathsScanner) Name() string {
	return "feedpaths"
}

// Scan returns the items of the first probed feed that has any.
func (s *FeedPathsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateRef, error) {
	root := siteRoot(req.SourceURL)
	for _, p := range s.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, err := s.feeds.scanURL(ctx, root+p)
		if err == nil && len(refs) > 0 {
			return refs, nil
		}
	}
	return nil, nil
}

// SiteScanner chains generic site strategies, stopping at the first that
// yields candidates. Errors from a strategy count as "not found".
type SiteScanner struct {
	steps  []scanner.Scanner
	logger *slog.Logger
}

var _ scanner.Scanner = (*SiteScanner)(nil)

// NewSiteScanner builds the ordered chain.
func NewSiteScanner(logger *slog.Logger, steps ...scanner.Scanner) *SiteScanner {
	return &SiteScanner{steps: steps, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *SiteScanner) Name() string {
	return "site"
}

// Scan runs the chain and drops the method name.
func (s *SiteScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateRef, error) {
	refs, _, err := s.ScanWithMethod(ctx, req)
	return refs, err
}

// ScanWithMethod also reports which strategy produced the candidates. Nothing
// found is not an error.
func (s *SiteScanner) ScanWithMethod(ctx context.Context, req scanner.Request) ([]domain.CandidateRef, string, error) {
	steps := make([]strategy.Step[[]domain.CandidateRef], 0, len(s.steps))
	for _, sc := range s.steps {
		steps = append(steps, strategy.Step[[]domain.CandidateRef]{
			Name: sc.Name(),
			Do: func(ctx context.Context) ([]domain.CandidateRef, error) {
				return sc.Scan(ctx, req)
			},
		})
	}

	refs, method, err := strategy.First(ctx, steps, func(r []domain.CandidateRef) bool { return len(r) > 0 })
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		if s.logger != nil {
			s.logger.Debug("site discovery found nothing", "source", req.SourceURL, "error", err)
		}
		return nil, "", nil
	}
	return refs, method, nil
}
