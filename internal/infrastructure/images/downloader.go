// Package images moves a remote image into the CMS media library through
// ordered download and upload strategies.
package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/metrics"
	"ArticlesPublisher/internal/strategy"
)

const maxImageBytes = 20 << 20

// Source is one named download route. Template "{url}" is replaced with the
// escaped image URL; an empty template means a direct request.
type Source struct {
	Name     string
	Template string
}

// Config tunes the downloader.
type Config struct {
	Sources   []Source
	MinBytes  int
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns the CDN-first route list.
func DefaultConfig() Config {
	return Config{
		Sources: []Source{
			{Name: "weserv", Template: "https://images.weserv.nl/?url={url}"},
			{Name: "corsproxy", Template: "https://corsproxy.io/?url={url}"},
			{Name: "allorigins", Template: "https://api.allorigins.win/raw?url={url}"},
		},
		MinBytes:  1024,
		Timeout:   20 * time.Second,
		UserAgent: "Mozilla/5.0 (compatible; ArticlesPublisher/1.0)",
	}
}

// Image is a downloaded asset.
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
	Source      string
}

// Downloader fetches image bytes through the configured sources.
type Downloader struct {
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewDownloader wires the HTTP client used for every route.
func NewDownloader(cfg Config, httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Downloader{cfg: cfg, http: httpClient, logger: logger, metrics: m}
}

// Download returns the first payload that looks like a real image.
func (d *Downloader) Download(ctx context.Context, imageURL string) (Image, error) {
	if strings.TrimSpace(imageURL) == "" {
		return Image{}, fmt.Errorf("%w: empty image url", domain.ErrImageAcquisition)
	}

	steps := make([]strategy.Step[Image], 0, len(d.cfg.Sources))
	for _, src := range d.cfg.Sources {
		steps = append(steps, strategy.Step[Image]{
			Name: src.Name,
			Do: func(ctx context.Context) (Image, error) {
				img, err := d.get(ctx, sourceURL(src.Template, imageURL))
				img.Source = src.Name
				return img, err
			},
		})
	}

	img, source, err := strategy.First(ctx, steps, d.acceptable)
	if err != nil {
		return Image{}, fmt.Errorf("%w: download %s: %w", domain.ErrImageAcquisition, imageURL, err)
	}
	img.Filename = filenameFor(imageURL, img.ContentType)
	if d.logger != nil {
		d.logger.Debug("image downloaded", "url", imageURL, "source", source, "bytes", len(img.Data))
	}
	return img, nil
}

func (d *Downloader) acceptable(img Image) bool {
	ok := len(img.Data) > d.cfg.MinBytes && !strings.HasPrefix(strings.ToLower(img.ContentType), "text/html")
	result := "rejected"
	if ok {
		result = "ok"
	}
	d.metrics.ImageAttemptsTotal.WithLabelValues("download:"+img.Source, result).Inc()
	return ok
}

func (d *Downloader) get(ctx context.Context, target string) (Image, error) {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Image{}, fmt.Errorf("new request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

	resp, err := d.http.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return Image{}, fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Image{Data: data, ContentType: contentType}, nil
}

func sourceURL(template, imageURL string) string {
	if template == "" {
		return imageURL
	}
	escaped := url.QueryEscape(imageURL)
	if strings.Contains(template, "{url}") {
		return strings.ReplaceAll(template, "{url}", escaped)
	}
	return template + escaped
}

// filenameFor keeps the remote basename when it has an extension and derives
// one from the content type otherwise.
func filenameFor(imageURL, contentType string) string {
	name := "image"
	if u, err := url.Parse(imageURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	if path.Ext(name) != "" {
		return name
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "image/png":
		return name + ".png"
	case "image/gif":
		return name + ".gif"
	case "image/webp":
		return name + ".webp"
	default:
		return name + ".jpg"
	}
}
