// Package fetch implements the proxy-resilient GET every other component calls through.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ArticlesPublisher/internal/metrics"
	"ArticlesPublisher/internal/ports"
	"ArticlesPublisher/internal/strategy"
)

const (
	// StrategyDirect names the unproxied attempt.
	StrategyDirect = "direct"

	maxBodyBytes = 10 << 20
)

// DefaultBlockMarkers are case-insensitive substrings identifying WAF or error pages.
var DefaultBlockMarkers = []string{
	"cloudflare",
	"403 forbidden",
	"access denied",
	"just a moment",
	"attention required",
	"captcha",
}

// Config tunes the fetch chain.
type Config struct {
	// Proxies are URL templates tried in order after the direct request.
	// "{url}" is replaced by the escaped target; otherwise the escaped target is appended.
	Proxies       []string
	Retries       int
	BaseDelay     time.Duration
	DirectTimeout time.Duration
	ProxyTimeout  time.Duration
	MinBodyLength int
	BlockMarkers  []string
	UserAgent     string
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		Proxies: []string{
			"https://api.allorigins.win/raw?url={url}",
			"https://corsproxy.io/?url={url}",
			"https://api.codetabs.com/v1/proxy?quest={url}",
		},
		Retries:       2,
		BaseDelay:     time.Second,
		DirectTimeout: 5 * time.Second,
		ProxyTimeout:  15 * time.Second,
		MinBodyLength: 500,
		BlockMarkers:  DefaultBlockMarkers,
		UserAgent:     "Mozilla/5.0 (compatible; ArticlesPublisher/1.0)",
	}
}

// Client tries a direct request, then each proxy with retries and backoff.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ ports.Fetcher = (*Client)(nil)

// New wires an HTTP client; per-attempt timeouts come from cfg, not from client.
func New(cfg Config, client *http.Client, logger *slog.Logger, m *metrics.Metrics) *Client {
	if client == nil {
		client = &http.Client{}
	}
	if m == nil {
		m = metrics.Nop()
	}
	if len(cfg.BlockMarkers) == 0 {
		cfg.BlockMarkers = DefaultBlockMarkers
	}
	if cfg.DirectTimeout <= 0 {
		cfg.DirectTimeout = 5 * time.Second
	}
	if cfg.ProxyTimeout <= 0 {
		cfg.ProxyTimeout = 15 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Client{cfg: cfg, http: client, logger: logger, metrics: m, sleep: sleepContext}
}

// Fetch returns the first plausible body. Failure is reported through
// Succeeded, never as an error: callers treat it as "not found".
func (c *Client) Fetch(ctx context.Context, target string) ports.FetchResult {
	steps := make([]strategy.Step[string], 0, len(c.cfg.Proxies)+1)
	steps = append(steps, strategy.Step[string]{
		Name: StrategyDirect,
		Do: func(ctx context.Context) (string, error) {
			return c.attempt(ctx, StrategyDirect, target, c.cfg.DirectTimeout)
		},
	})
	for i, proxy := range c.cfg.Proxies {
		steps = append(steps, c.proxyStep(i, proxy, target))
	}

	body, used, err := strategy.First(ctx, steps, c.plausible)
	if err != nil {
		c.debug("fetch exhausted", "url", target, "error", err)
		return ports.FetchResult{Strategy: "none"}
	}

	c.debug("fetch succeeded", "url", target, "strategy", used, "bytes", len(body))
	return ports.FetchResult{Body: body, Succeeded: true, Strategy: used}
}

func (c *Client) proxyStep(index int, proxy, target string) strategy.Step[string] {
	name := fmt.Sprintf("proxy[%d]", index)
	proxied := proxyURL(proxy, target)

	return strategy.Step[string]{
		Name: name,
		Do: func(ctx context.Context) (string, error) {
			var lastErr error
			for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
				if attempt > 0 {
					delay := c.cfg.BaseDelay * time.Duration(1<<(attempt-1))
					if err := c.sleep(ctx, delay); err != nil {
						return "", err
					}
				}

				body, err := c.attempt(ctx, name, proxied, c.cfg.ProxyTimeout)
				if err != nil {
					lastErr = err
					continue
				}
				if reason := c.implausible(body); reason != "" {
					lastErr = errors.New(reason)
					continue
				}
				return body, nil
			}
			return "", lastErr
		},
	}
}

func (c *Client) attempt(ctx context.Context, name, target string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.get(ctx, target)
	result := "ok"
	if err != nil {
		result = "error"
	} else if c.implausible(body) != "" {
		result = "implausible"
	}
	c.metrics.FetchAttemptsTotal.WithLabelValues(name, result).Inc()
	return body, err
}

func (c *Client) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(raw), nil
}

func (c *Client) plausible(body string) bool {
	return c.implausible(body) == ""
}

// implausible returns why body is rejected, or "" when it is acceptable.
func (c *Client) implausible(body string) string {
	if len(body) <= c.cfg.MinBodyLength {
		return fmt.Sprintf("body too short (%d bytes)", len(body))
	}
	lower := strings.ToLower(body)
	for _, marker := range c.cfg.BlockMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return fmt.Sprintf("block marker %q", marker)
		}
	}
	return ""
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// proxyURL renders a proxy template for target.
func proxyURL(template, target string) string {
	escaped := url.QueryEscape(target)
	if strings.Contains(template, "{url}") {
		return strings.ReplaceAll(template, "{url}", escaped)
	}
	return template + escaped
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
