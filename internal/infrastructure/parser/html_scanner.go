package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/scanner"
)

const minLinkTextLength = 15

// homepageNoise is stripped before link scoring.
const homepageNoise = "nav, footer, aside, .sidebar, #sidebar, .widget, .menu, #menu, .nav, .navbar, .breadcrumb, .footer, #footer, .header-menu"

type scoredSelector struct {
	selector string
	score    int
}

// linkSelectors are ordered by descending score; the ".post-box" pattern is a
// site-specific listing box that is boosted above generic article markup.
var linkSelectors = []scoredSelector{
	{".post-box h2 a, .post-box h3 a, .post-box .title a", 12},
	{".post-box a", 10},
	{"article h2 a, article h3 a", 8},
	{".entry-title a, .post-title a", 7},
	{".news-title a, .article-title a, h2.title a, h3.title a", 6},
	{".post a, .news-item a, .card a", 5},
	{"article a", 4},
	{"main h2 a, main h3 a", 3},
	{"h2 a, h3 a", 2},
}

var skippedPathParts = []string{"/tag/", "/category/", "/author/", "/page/", "/search", "/wp-login", "/feed"}

// HTMLScanner guesses the newest article from a site's homepage markup.
type HTMLScanner struct {
	fetcher ports.Fetcher
	feeds   *FeedScanner
	logger  *slog.Logger
	now     func() time.Time
}

var _ scanner.Scanner = (*HTMLScanner)(nil)

// NewHTMLScanner reuses feeds for alternate-link feeds found in the page head.
func NewHTMLScanner(fetcher ports.Fetcher, feeds *FeedScanner, logger *slog.Logger) *HTMLScanner {
	return &HTMLScanner{fetcher: fetcher, feeds: feeds, logger: logger, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *HTMLScanner) Name() string {
	return "html"
}

// Scan prefers an advertised feed, otherwise returns a single best-guess link.
func (s *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateRef, error) {
	res := s.fetcher.Fetch(ctx, req.SourceURL)
	if !res.Succeeded {
		return nil, fmt.Errorf("%w: homepage %s", domain.ErrFetch, req.SourceURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: homepage %s: %v", domain.ErrParse, req.SourceURL, err)
	}

	if feedURL := alternateFeedLink(doc, req.SourceURL); feedURL != "" && s.feeds != nil {
		refs, err := s.feeds.scanURL(ctx, feedURL)
		if err == nil && len(refs) > 0 {
			s.debug("alternate feed used", "feed", feedURL, "items", len(refs))
			return refs, nil
		}
	}

	doc.Find(homepageNoise).Remove()

	link, title := bestGuessLink(doc, req.SourceURL)
	if link == "" {
		return nil, nil
	}
	s.debug("html best guess", "url", link, "title", title)
	return []domain.CandidateRef{{URL: link, ObservedAt: s.now(), Title: title}}, nil
}

func (s *HTMLScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

// alternateFeedLink returns the first RSS/Atom <link rel="alternate"> in the document.
func alternateFeedLink(doc *goquery.Document, baseURL string) string {
	var found string
	doc.Find(`link[rel="alternate"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		linkType := strings.ToLower(sel.AttrOr("type", ""))
		if !strings.Contains(linkType, "rss+xml") && !strings.Contains(linkType, "atom+xml") {
			return true
		}
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return true
		}
		found = resolveURL(baseURL, href)
		return found == ""
	})
	return found
}

// bestGuessLink walks selectors from the highest score down and, within the
// first selector that has qualifying anchors, picks the longest link text.
func bestGuessLink(doc *goquery.Document, baseURL string) (string, string) {
	for _, sc := range linkSelectors {
		var bestLink, bestText string
		doc.Find(sc.selector).Each(func(_ int, a *goquery.Selection) {
			link, text, ok := qualifyingLink(a, baseURL)
			if ok && len(text) > len(bestText) {
				bestLink, bestText = link, text
			}
		})
		if bestLink != "" {
			return bestLink, bestText
		}
	}
	return "", ""
}

func qualifyingLink(a *goquery.Selection, baseURL string) (string, string, bool) {
	href := strings.TrimSpace(a.AttrOr("href", ""))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", "", false
	}

	text := strings.Join(strings.Fields(a.Text()), " ")
	if len(text) < minLinkTextLength {
		return "", "", false
	}

	link := resolveURL(baseURL, href)
	if !strings.HasPrefix(link, "http") || !sameSite(baseURL, link) {
		return "", "", false
	}
	if domain.NormalizeURL(link) == domain.NormalizeURL(siteRoot(baseURL)) {
		return "", "", false
	}
	lower := strings.ToLower(link)
	for _, part := range skippedPathParts {
		if strings.Contains(lower, part) {
			return "", "", false
		}
	}
	return link, text, true
}
