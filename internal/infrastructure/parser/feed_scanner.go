package parser

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/scanner"
)

// imgSrcExpr finds the first embedded image inside item markup.
var imgSrcExpr = regexp.MustCompile(`(?i)<img[^>]+src\s*=\s*["']([^"']+)["']`)

// FeedScanner reads RSS and Atom feeds.
type FeedScanner struct {
	fetcher ports.Fetcher
	logger  *slog.Logger
	now     func() time.Time
}

var _ scanner.Scanner = (*FeedScanner)(nil)

// NewFeedScanner wires the resilient fetcher.
func NewFeedScanner(fetcher ports.Fetcher, logger *slog.Logger) *FeedScanner {
	return &FeedScanner{fetcher: fetcher, logger: logger, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *FeedScanner) Name() string {
	return "feed"
}

// Scan returns the feed items in feed order with the feed's own timestamps.
func (s *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateRef, error) {
	return s.scanURL(ctx, req.SourceURL)
}

func (s *FeedScanner) scanURL(ctx context.Context, feedURL string) ([]domain.CandidateRef, error) {
	res := s.fetcher.Fetch(ctx, feedURL)
	if !res.Succeeded {
		return nil, fmt.Errorf("%w: feed %s", domain.ErrFetch, feedURL)
	}

	refs, err := parseFeed(res.Body, s.now())
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feedURL, err)
	}

	if s.logger != nil {
		s.logger.Debug("feed parsed", "url", feedURL, "items", len(refs), "strategy", res.Strategy)
	}
	return refs, nil
}

func parseFeed(body string, now time.Time) ([]domain.CandidateRef, error) {
	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	refs := make([]domain.CandidateRef, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		link := itemLink(item)
		if link == "" {
			continue
		}

		observed := now
		switch {
		case item.PublishedParsed != nil:
			observed = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			observed = *item.UpdatedParsed
		}

		refs = append(refs, domain.CandidateRef{
			URL:        link,
			ObservedAt: observed,
			Title:      strings.TrimSpace(item.Title),
			ImageURL:   itemImage(item),
		})
	}
	return refs, nil
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if strings.HasPrefix(item.GUID, "http") {
		return item.GUID
	}
	return ""
}

// itemImage picks the first image from, in order: an enclosure, a media
// extension (content, thumbnail, group/content) and an <img> in the markup.
func itemImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return enc.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
		for _, group := range media["group"] {
			for _, ext := range group.Children["content"] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, markup := range []string{item.Content, item.Description} {
		if m := imgSrcExpr.FindStringSubmatch(markup); m != nil {
			return html.UnescapeString(m[1])
		}
	}
	return ""
}
