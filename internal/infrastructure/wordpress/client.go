package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

const apiPrefix = "/wp-json/wp/v2"

// Client talks to the WordPress REST API with application-password basic auth.
type Client struct {
	baseURL   string
	username  string
	password  string
	seoPlugin domain.SEOPlugin
	http      *http.Client
}

var _ ports.CMS = (*Client)(nil)

// NewClient builds a client for one campaign target.
func NewClient(target domain.CMSTarget, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(target.URL), "/"),
		username:  target.Username,
		password:  target.Password,
		seoPlugin: target.SEOPlugin,
		http:      httpClient,
	}
}

// Factory adapts NewClient to ports.CMSFactory with a shared transport.
func Factory(httpClient *http.Client) ports.CMSFactory {
	return func(target domain.CMSTarget) ports.CMS {
		return NewClient(target, httpClient)
	}
}

type wpRendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID     int        `json:"id"`
	Link   string     `json:"link"`
	Status string     `json:"status"`
	Title  wpRendered `json:"title"`
}

type wpCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type wpMedia struct {
	ID int `json:"id"`
}

// APIError is a non-2xx answer from the CMS.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress error %d: %s", e.StatusCode, e.Body)
}

// VerifyConnection checks credentials and returns the category list.
func (c *Client) VerifyConnection(ctx context.Context) ([]ports.Category, error) {
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, "", nil); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return c.Categories(ctx)
}

// Categories lists up to 100 categories.
func (c *Client) Categories(ctx context.Context) ([]ports.Category, error) {
	var raw []wpCategory
	if err := c.do(ctx, http.MethodGet, "/categories?per_page=100", nil, "", &raw); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]ports.Category, 0, len(raw))
	for _, cat := range raw {
		out = append(out, ports.Category{ID: cat.ID, Name: cat.Name, Slug: cat.Slug})
	}
	return out, nil
}

// RecentPosts returns the newest published posts, used as internal-linking context.
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]ports.PostRef, error) {
	if limit <= 0 {
		limit = 5
	}
	var raw []wpPost
	path := "/posts?per_page=" + strconv.Itoa(limit) + "&_fields=id,title,link"
	if err := c.do(ctx, http.MethodGet, path, nil, "", &raw); err != nil {
		return nil, fmt.Errorf("recent posts: %w", err)
	}
	out := make([]ports.PostRef, 0, len(raw))
	for _, p := range raw {
		out = append(out, ports.PostRef{ID: p.ID, Title: p.Title.Rendered, Link: p.Link})
	}
	return out, nil
}

// UploadMediaMultipart sends the file as a multipart form.
func (c *Client) UploadMediaMultipart(ctx context.Context, m ports.MediaUpload) (int, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, m.Filename))
	header.Set("Content-Type", m.ContentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return 0, fmt.Errorf("multipart part: %w", err)
	}
	if _, err := part.Write(m.Data); err != nil {
		return 0, fmt.Errorf("multipart write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("multipart close: %w", err)
	}

	var media wpMedia
	if err := c.do(ctx, http.MethodPost, "/media", &buf, w.FormDataContentType(), &media); err != nil {
		return 0, fmt.Errorf("upload media: %w", err)
	}
	return mediaID(media)
}

// UploadMediaBinary sends the raw bytes with a Content-Disposition header.
func (c *Client) UploadMediaBinary(ctx context.Context, m ports.MediaUpload) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/media", bytes.NewReader(m.Data), m.ContentType)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", m.Filename))

	var media wpMedia
	if err := c.send(req, &media); err != nil {
		return 0, fmt.Errorf("upload media binary: %w", err)
	}
	return mediaID(media)
}

// UpdateMedia sets the alt text and title of an uploaded asset.
func (c *Client) UpdateMedia(ctx context.Context, id int, altText, title string) error {
	body, err := json.Marshal(map[string]string{
		"alt_text": altText,
		"title":    title,
	})
	if err != nil {
		return fmt.Errorf("marshal media update: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, "/media/"+strconv.Itoa(id), bytes.NewReader(body), "application/json", nil); err != nil {
		return fmt.Errorf("update media %d: %w", id, err)
	}
	return nil
}

// CreatePost publishes the post; any failure wraps domain.ErrPublish.
func (c *Client) CreatePost(ctx context.Context, in ports.PostInput) (ports.PublishedPost, error) {
	payload := map[string]any{
		"title":   in.Title,
		"content": in.ContentHTML,
		"status":  string(in.Status),
	}
	if in.CategoryID > 0 {
		payload["categories"] = []int{in.CategoryID}
	}
	if in.Slug != "" {
		payload["slug"] = in.Slug
	}
	if in.FeaturedMediaID > 0 {
		payload["featured_media"] = in.FeaturedMediaID
	}
	if meta := seoMeta(c.seoPlugin, in); len(meta) > 0 {
		payload["meta"] = meta
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ports.PublishedPost{}, fmt.Errorf("%w: marshal post: %v", domain.ErrPublish, err)
	}

	var post wpPost
	if err := c.do(ctx, http.MethodPost, "/posts", bytes.NewReader(body), "application/json", &post); err != nil {
		return ports.PublishedPost{}, fmt.Errorf("%w: %w", domain.ErrPublish, err)
	}
	if post.ID == 0 {
		return ports.PublishedPost{}, fmt.Errorf("%w: response carries no post id", domain.ErrPublish)
	}
	return ports.PublishedPost{ID: post.ID, Link: post.Link, Status: post.Status}, nil
}

// PostStatus returns the live status of a post; a missing post yields domain.ErrNotFound.
func (c *Client) PostStatus(ctx context.Context, id int) (string, error) {
	var post wpPost
	if err := c.do(ctx, http.MethodGet, "/posts/"+strconv.Itoa(id)+"?context=edit&_fields=id,status", nil, "", &post); err != nil {
		return "", fmt.Errorf("post %d status: %w", id, err)
	}
	return post.Status, nil
}

// DeletePost trashes the post, or removes it permanently when force is set.
func (c *Client) DeletePost(ctx context.Context, id int, force bool) error {
	path := "/posts/" + strconv.Itoa(id)
	if force {
		path += "?force=true"
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, "", nil); err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return nil
}

func seoMeta(plugin domain.SEOPlugin, in ports.PostInput) map[string]string {
	var keys [3]string
	switch plugin {
	case domain.SEOYoast:
		keys = [3]string{"_yoast_wpseo_focuskw", "_yoast_wpseo_title", "_yoast_wpseo_metadesc"}
	case domain.SEORankMath:
		keys = [3]string{"rank_math_focus_keyword", "rank_math_title", "rank_math_description"}
	default:
		return nil
	}

	meta := map[string]string{}
	for i, v := range []string{in.FocusKeyphrase, in.SEOTitle, in.MetaDescription} {
		if v != "" {
			meta[keys[i]] = v
		}
	}
	return meta
}

func mediaID(m wpMedia) (int, error) {
	if m.ID == 0 {
		return 0, fmt.Errorf("media response carries no id")
	}
	return m.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("wordpress client misconfigured")
	}
	endpoint, err := url.JoinPath(c.baseURL, apiPrefix)
	if err != nil {
		return nil, fmt.Errorf("build endpoint: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, req.Method, req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
