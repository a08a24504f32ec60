package parser

import (
	"context"
	"testing"
	"time"

	"ArticlesPublisher/internal/scanner"
)

func TestSelectSitemapPrefersHighestNumber(t *testing.T) {
	t.Parallel()

	entries := []SitemapEntry{
		{Loc: "https://example.com/post-sitemap.xml"},
		{Loc: "https://example.com/post-sitemap12.xml"},
		{Loc: "https://example.com/post-sitemap7.xml"},
		{Loc: "https://example.com/page-sitemap40.xml"},
		{Loc: "https://example.com/category-sitemap99.xml"},
	}

	winner, ok := SelectSitemap(entries)
	if !ok {
		t.Fatalf("expected a winner")
	}
	if winner.Loc != "https://example.com/post-sitemap12.xml" {
		t.Fatalf("unexpected winner: %s", winner.Loc)
	}
}

func TestSelectSitemapIgnoresHostname(t *testing.T) {
	t.Parallel()

	for _, host := range []string{"www.heritage-daily.com", "www.technews.com", "images.example.com"} {
		entries := []SitemapEntry{
			{Loc: "https://" + host + "/post-sitemap.xml"},
			{Loc: "https://" + host + "/post-sitemap2.xml"},
			{Loc: "https://" + host + "/page-sitemap3.xml"},
			{Loc: "https://" + host + "/post_tag-sitemap5.xml"},
		}

		winner, ok := SelectSitemap(entries)
		if !ok {
			t.Fatalf("%s: expected a winner", host)
		}
		if want := "https://" + host + "/post-sitemap2.xml"; winner.Loc != want {
			t.Fatalf("%s: winner = %s, want %s", host, winner.Loc, want)
		}
	}
}

func TestSelectSitemapLastModBreaksTies(t *testing.T) {
	t.Parallel()

	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []SitemapEntry{
		{Loc: "https://example.com/news-sitemap.xml", LastMod: &older},
		{Loc: "https://example.com/post-sitemap.xml", LastMod: &newer},
		{Loc: "https://example.com/article-sitemap.xml"},
	}

	winner, ok := SelectSitemap(entries)
	if !ok || winner.Loc != "https://example.com/post-sitemap.xml" {
		t.Fatalf("unexpected winner: %+v", winner)
	}
}

func TestSelectSitemapFallsBackToAllEntries(t *testing.T) {
	t.Parallel()

	entries := []SitemapEntry{
		{Loc: "https://example.com/sitemap-1.xml"},
		{Loc: "https://example.com/sitemap-3.xml"},
	}
	winner, ok := SelectSitemap(entries)
	if !ok || winner.Loc != "https://example.com/sitemap-3.xml" {
		t.Fatalf("unexpected winner: %+v", winner)
	}

	if _, ok := SelectSitemap(nil); ok {
		t.Fatalf("empty index must not produce a winner")
	}
}

func TestSitemapScannerTraversesIndex(t *testing.T) {
	t.Parallel()

	index := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/post-sitemap.xml</loc></sitemap>
  <sitemap><loc>https://example.com/post-sitemap2.xml</loc><lastmod>2025-01-03</lastmod></sitemap>
  <sitemap><loc>https://example.com/tag-sitemap9.xml</loc></sitemap>
</sitemapindex>`
	urlset := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/first</loc><lastmod>2025-01-02T08:00:00+00:00</lastmod></url>
  <url><loc>https://example.com/second</loc></url>
</urlset>`

	fetcher := newStubFetcher(map[string]string{
		"https://example.com/sitemap.xml":       index,
		"https://example.com/post-sitemap2.xml": urlset,
	})
	sc := NewSitemapScanner(fetcher, nil)
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	sc.now = func() time.Time { return now }

	refs, err := sc.Scan(context.Background(), scanner.Request{SourceURL: "https://example.com/blog"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].URL != "https://example.com/first" {
		t.Fatalf("unexpected first url: %s", refs[0].URL)
	}
	if !refs[0].ObservedAt.Equal(time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected lastmod: %v", refs[0].ObservedAt)
	}
	if !refs[1].ObservedAt.Equal(now) {
		t.Fatalf("missing lastmod should use now, got %v", refs[1].ObservedAt)
	}
	if fetcher.requested("https://example.com/tag-sitemap9.xml") {
		t.Fatalf("tag sitemap must not be fetched")
	}
}

func TestSitemapScannerNothingFound(t *testing.T) {
	t.Parallel()

	sc := NewSitemapScanner(newStubFetcher(nil), nil)
	refs, err := sc.Scan(context.Background(), scanner.Request{SourceURL: "https://example.com"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs, got %d", len(refs))
	}
}

func TestParseLastMod(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Time{
		"2025-01-02":                time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		"2025-01-02T03:04:05Z":      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		"2025-01-02 03:04:05":       time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		" 2025-01-02T03:04:05Z \n ": time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for raw, want := range cases {
		got, err := parseLastMod(raw)
		if err != nil {
			t.Fatalf("parseLastMod(%q): %v", raw, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parseLastMod(%q) = %v, want %v", raw, got, want)
		}
	}

	if _, err := parseLastMod("yesterday"); err == nil {
		t.Fatalf("expected error for free text")
	}
}
