package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

const (
	maxPages         = 5
	minBodyLength    = 50
	minParagraphText = 200
	pageDivider      = `<hr class="page-break" />`
)

// noiseSelectors are removed from every page before anything is read.
var noiseSelectors = strings.Join([]string{
	"script", "style", "noscript", "iframe", "form", "svg",
	".video-player", ".jwplayer", ".player", "video", "audio",
	".ads", ".ad", ".advert", ".advertisement", ".adsbygoogle", `[id^="ad-"]`, `[class*="sponsor"]`,
	".post-meta", ".entry-meta", ".byline", ".author-box", ".share", ".social-share", ".related-posts",
	"aside", ".sidebar", "#sidebar", ".widget", ".comments", "#comments", "nav", "footer",
}, ", ")

// contentSelectors are probed in order; the first container with text wins.
var contentSelectors = []string{
	".entry-content",
	".post-content",
	".article-content",
	".article-body",
	"[itemprop='articleBody']",
	".td-post-content",
	".single-content",
	".content-inner",
	"article .content",
	"article",
	"main",
	"#content",
}

// nextSelectors locate the "next page" anchor inside an article.
var nextSelectors = []string{
	`a[rel="next"]`,
	`link[rel="next"]`,
	"a.next",
	"a.next-page",
	".nav-next a",
	".next a",
	".post-page-numbers.next",
}

// paginationListSelector is the fallback: the last anchor of a page list.
const paginationListSelector = ".pagination a, .page-links a, .pages a, ul.page-numbers a"

// Extractor fetches article pages and normalises them into domain articles.
type Extractor struct {
	fetcher ports.Fetcher
	logger  *slog.Logger
}

var _ ports.Extractor = (*Extractor)(nil)

// New wires the resilient fetcher.
func New(fetcher ports.Fetcher, logger *slog.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, logger: logger}
}

// Extract follows in-article pagination. It returns nil, nil when the page
// has no title or no meaningful body.
func (e *Extractor) Extract(ctx context.Context, baseURL, articleURL string) (*domain.Article, error) {
	startURL := resolve(baseURL, articleURL)
	if startURL == "" {
		startURL = articleURL
	}

	var (
		title     string
		imageURL  string
		fragments []string
		visited   = map[string]struct{}{}
		current   = startURL
	)

	for page := 0; page < maxPages && current != ""; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := domain.NormalizeURL(current)
		if _, seen := visited[key]; seen {
			break
		}
		visited[key] = struct{}{}

		res := e.fetcher.Fetch(ctx, current)
		if !res.Succeeded {
			if page == 0 {
				return nil, fmt.Errorf("%w: article %s", domain.ErrFetch, current)
			}
			e.debug("pagination stopped on fetch failure", "url", current, "page", page+1)
			break
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("%w: article %s: %v", domain.ErrParse, current, err)
			}
			break
		}

		// Pagination links live in noise containers on some themes.
		next := nextPageURL(doc, current)
		doc.Find(noiseSelectors).Remove()

		if page == 0 {
			title = pageTitle(doc)
			imageURL = leadImage(doc, current)
		}

		if fragment := bodyFragment(doc); fragment != "" {
			fragments = append(fragments, fragment)
		}
		current = next
	}

	body := strings.Join(fragments, pageDivider)
	if title == "" || len(textOf(body)) < minBodyLength {
		e.debug("extraction yielded nothing", "url", startURL, "title", title, "pages", len(fragments))
		return nil, nil
	}

	return &domain.Article{
		Title:     title,
		BodyHTML:  body,
		ImageURL:  imageURL,
		SourceURL: startURL,
	}, nil
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func pageTitle(doc *goquery.Document) string {
	if h1 := collapse(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return collapse(doc.Find("title").First().Text())
}

func leadImage(doc *goquery.Document, pageURL string) string {
	if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return resolve(pageURL, og)
	}
	for _, sel := range contentSelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		if src := imageSource(container.Find("img").First()); src != "" {
			return resolve(pageURL, src)
		}
	}
	return ""
}

// imageSource prefers lazy-load attributes over src placeholders.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-lazy-src", "src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func bodyFragment(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 || collapse(container.Text()) == "" {
			continue
		}
		inner, err := container.Html()
		if err == nil && strings.TrimSpace(inner) != "" {
			return strings.TrimSpace(inner)
		}
	}

	var (
		b     strings.Builder
		total int
	)
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := collapse(p.Text())
		if text == "" {
			return
		}
		total += len(text)
		inner, err := p.Html()
		if err != nil {
			return
		}
		b.WriteString("<p>")
		b.WriteString(strings.TrimSpace(inner))
		b.WriteString("</p>")
	})
	if total < minParagraphText {
		return ""
	}
	return b.String()
}

func nextPageURL(doc *goquery.Document, pageURL string) string {
	for _, sel := range nextSelectors {
		if href := strings.TrimSpace(doc.Find(sel).First().AttrOr("href", "")); href != "" && !strings.HasPrefix(href, "#") {
			return resolve(pageURL, href)
		}
	}
	last := doc.Find(paginationListSelector).Last()
	if last.Length() == 0 {
		return ""
	}
	href := strings.TrimSpace(last.AttrOr("href", ""))
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	next := resolve(pageURL, href)
	if domain.NormalizeURL(next) == domain.NormalizeURL(pageURL) {
		return ""
	}
	return next
}

func resolve(baseURL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func textOf(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
