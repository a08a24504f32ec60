package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/scanner"
)

// defaultSourceType is used when a campaign leaves its source type empty.
const defaultSourceType = "site"

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry.
func NewStrategySource(reg *scanner.Registry, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		logger:   log,
	}
}

// NewDefaultRegistry registers every discovery strategy with its aliases.
func NewDefaultRegistry(fetcher ports.Fetcher, logger *slog.Logger) *scanner.Registry {
	feeds := NewFeedScanner(fetcher, logger)
	sitemaps := NewSitemapScanner(fetcher, logger)
	feedPaths := NewFeedPathsScanner(feeds)
	homepage := NewHTMLScanner(fetcher, feeds, logger)

	registry := scanner.NewRegistry()
	registry.Register(feeds, "rss", "atom")
	registry.Register(sitemaps)
	registry.Register(feedPaths)
	registry.Register(homepage)
	registry.Register(NewSiteScanner(logger, sitemaps, feedPaths, homepage), "auto", "website")
	return registry
}

// Discover resolves the scanner for the source type and executes it.
func (s *StrategySource) Discover(ctx context.Context, source domain.Source) ([]domain.CandidateRef, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	sourceType := strings.TrimSpace(source.Type)
	if sourceType == "" {
		sourceType = defaultSourceType
	}

	s.debug("discover", "source", source.URL, "type", sourceType)
	strategy, err := s.registry.Resolve(sourceType)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.URL, err)
	}

	results, err := strategy.Scan(ctx, scanner.Request{SourceURL: source.URL})
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", source.URL, err)
	}

	s.debug("source produced candidates", "source", source.URL, "scanner", strategy.Name(), "count", len(results))
	return results, nil
}

// Detect runs the generic site chain and reports which method matched.
func (s *StrategySource) Detect(ctx context.Context, sourceURL string) ([]domain.CandidateRef, string, error) {
	strategy, err := s.registry.Resolve(defaultSourceType)
	if err != nil {
		return nil, "", err
	}
	site, ok := strategy.(*SiteScanner)
	if !ok {
		refs, err := strategy.Scan(ctx, scanner.Request{SourceURL: sourceURL})
		return refs, strategy.Name(), err
	}
	return site.ScanWithMethod(ctx, scanner.Request{SourceURL: sourceURL})
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
