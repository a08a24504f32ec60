package parser

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/scanner"
)

const maxSitemapDepth = 3

// defaultSitemapPaths are the conventional sitemap locations probed in order.
var defaultSitemapPaths = []string{
	"/sitemap_index.xml",
	"/sitemap.xml",
	"/wp-sitemap.xml",
	"/sitemap-index.xml",
	"/post-sitemap.xml",
	"/news-sitemap.xml",
}

var (
	sitemapIncludeWords = []string{"post", "news", "article"}
	sitemapExcludeWords = []string{"image", "video", "author", "tag", "category"}
	sitemapNumberExpr   = regexp.MustCompile(`(\d+)\.xml(\.gz)?$`)
)

// SitemapEntry is a <sitemap> element of a sitemap index.
type SitemapEntry struct {
	Loc     string
	LastMod *time.Time
}

// xmlSitemapDoc decodes both <sitemapindex> and <urlset> roots.
type xmlSitemapDoc struct {
	Sitemaps []xmlLocEntry `xml:"sitemap"`
	URLs     []xmlLocEntry `xml:"url"`
}

type xmlLocEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// SitemapScanner traverses sitemap indexes down to the newest post sitemap.
type SitemapScanner struct {
	fetcher ports.Fetcher
	logger  *slog.Logger
	paths   []string
	now     func() time.Time
}

var _ scanner.Scanner = (*SitemapScanner)(nil)

// NewSitemapScanner probes the default sitemap paths.
func NewSitemapScanner(fetcher ports.Fetcher, logger *slog.Logger) *SitemapScanner {
	return &SitemapScanner{fetcher: fetcher, logger: logger, paths: defaultSitemapPaths, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *SitemapScanner) Name() string {
	return "sitemap"
}

// Scan returns the URL entries of the winning sitemap. A source URL that
// already points at an .xml document is tried before the conventional paths.
func (s *SitemapScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateRef, error) {
	probes := make([]string, 0, len(s.paths)+1)
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(req.SourceURL)), ".xml") {
		probes = append(probes, req.SourceURL)
	}
	root := siteRoot(req.SourceURL)
	for _, p := range s.paths {
		probes = append(probes, root+p)
	}

	for _, probe := range probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs := s.traverse(ctx, probe)
		if len(refs) > 0 {
			s.debug("sitemap resolved", "probe", probe, "urls", len(refs))
			return refs, nil
		}
	}
	return nil, nil
}

// traverse follows index documents, choosing a winner at each level, until a
// urlset is reached. Any unusable document ends the walk with no result.
func (s *SitemapScanner) traverse(ctx context.Context, docURL string) []domain.CandidateRef {
	current := docURL
	for depth := 0; depth < maxSitemapDepth; depth++ {
		res := s.fetcher.Fetch(ctx, current)
		if !res.Succeeded {
			return nil
		}

		doc, err := decodeSitemap(res.Body)
		if err != nil {
			s.debug("sitemap not parseable", "url", current, "error", err)
			return nil
		}

		if len(doc.Sitemaps) == 0 {
			return urlsetCandidates(doc.URLs, s.now())
		}

		winner, ok := SelectSitemap(indexEntries(doc.Sitemaps))
		if !ok {
			return nil
		}
		s.debug("sitemap index winner", "index", current, "winner", winner.Loc, "entries", len(doc.Sitemaps))
		current = winner.Loc
	}
	return nil
}

func (s *SitemapScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func decodeSitemap(body string) (xmlSitemapDoc, error) {
	var doc xmlSitemapDoc
	if strings.TrimSpace(body) == "" {
		return doc, fmt.Errorf("%w: empty sitemap", domain.ErrParse)
	}
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return doc, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return doc, nil
}

func indexEntries(raw []xmlLocEntry) []SitemapEntry {
	entries := make([]SitemapEntry, 0, len(raw))
	for _, e := range raw {
		loc := strings.TrimSpace(e.Loc)
		if loc == "" {
			continue
		}
		entry := SitemapEntry{Loc: loc}
		if t, err := parseLastMod(e.LastMod); err == nil {
			entry.LastMod = &t
		}
		entries = append(entries, entry)
	}
	return entries
}

func urlsetCandidates(raw []xmlLocEntry, now time.Time) []domain.CandidateRef {
	refs := make([]domain.CandidateRef, 0, len(raw))
	for _, e := range raw {
		loc := strings.TrimSpace(e.Loc)
		if loc == "" {
			continue
		}
		observed := now
		if t, err := parseLastMod(e.LastMod); err == nil {
			observed = t
		}
		refs = append(refs, domain.CandidateRef{URL: loc, ObservedAt: observed})
	}
	return refs
}

// SelectSitemap picks the newest post sitemap of an index. Entries are first
// narrowed to post/news/article sitemaps (all entries when that empties the
// set); the winner has the highest numeric filename suffix, with lastmod
// breaking ties. A missing suffix counts as 1.
func SelectSitemap(entries []SitemapEntry) (SitemapEntry, bool) {
	survivors := make([]SitemapEntry, 0, len(entries))
	for _, e := range entries {
		if isPostSitemap(e.Loc) {
			survivors = append(survivors, e)
		}
	}
	if len(survivors) == 0 {
		survivors = entries
	}
	if len(survivors) == 0 {
		return SitemapEntry{}, false
	}

	best := survivors[0]
	for _, e := range survivors[1:] {
		if newerSitemap(e, best) {
			best = e
		}
	}
	return best, true
}

func isPostSitemap(loc string) bool {
	lower := strings.ToLower(sitemapFilename(loc))
	for _, w := range sitemapExcludeWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	for _, w := range sitemapIncludeWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func newerSitemap(a, b SitemapEntry) bool {
	na, nb := sitemapNumber(a.Loc), sitemapNumber(b.Loc)
	if na != nb {
		return na > nb
	}
	switch {
	case a.LastMod != nil && b.LastMod != nil:
		return a.LastMod.After(*b.LastMod)
	default:
		return a.LastMod != nil && b.LastMod == nil
	}
}

// sitemapFilename is the last path segment of loc; host and query never
// take part in sitemap classification.
func sitemapFilename(loc string) string {
	name := loc
	if u, err := url.Parse(loc); err == nil {
		name = u.Path
	}
	return path.Base(name)
}

func sitemapNumber(loc string) int {
	m := sitemapNumberExpr.FindStringSubmatch(sitemapFilename(loc))
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n
}

// parseLastMod accepts RFC 3339, date-only and a space separated datetime.
func parseLastMod(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty lastmod")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse lastmod %q", trimmed)
}
