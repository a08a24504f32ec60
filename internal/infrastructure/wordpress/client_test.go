package wordpress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

func newTestClient(t *testing.T, plugin domain.SEOPlugin, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(domain.CMSTarget{
		URL:       srv.URL + "/",
		Username:  "editor",
		Password:  "app-pass",
		SEOPlugin: plugin,
	}, srv.Client())
}

func TestCreatePostSendsSEOMeta(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, domain.SEOYoast, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "editor", user)
		assert.Equal(t, "app-pass", pass)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":42,"link":"https://cms.example.com/hello","status":"publish"}`)
	})

	post, err := client.CreatePost(context.Background(), ports.PostInput{
		Title:           "Hello",
		ContentHTML:     "<p>Body</p>",
		Status:          domain.PostPublish,
		CategoryID:      7,
		Slug:            "hello",
		FeaturedMediaID: 99,
		FocusKeyphrase:  "greeting",
		SEOTitle:        "Hello there",
		MetaDescription: "A friendly hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, post.ID)
	assert.Equal(t, "https://cms.example.com/hello", post.Link)

	assert.Equal(t, "publish", got["status"])
	assert.Equal(t, "hello", got["slug"])
	assert.EqualValues(t, 99, got["featured_media"])
	assert.Equal(t, []any{float64(7)}, got["categories"])
	meta, ok := got["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "greeting", meta["_yoast_wpseo_focuskw"])
	assert.Equal(t, "Hello there", meta["_yoast_wpseo_title"])
	assert.Equal(t, "A friendly hello", meta["_yoast_wpseo_metadesc"])
}

func TestCreatePostFailureWrapsPublishError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, domain.SEONone, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"rest_cannot_create"}`, http.StatusForbidden)
	})

	_, err := client.CreatePost(context.Background(), ports.PostInput{Title: "x", Status: domain.PostDraft})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPublish)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestUploadMediaVariants(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, domain.SEONone, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/wp-json/wp/v2/media" && r.Header.Get("Content-Disposition") != "":
			assert.Equal(t, `attachment; filename="pic.jpg"`, r.Header.Get("Content-Disposition"))
			assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
			_, _ = io.WriteString(w, `{"id":11}`)
		case r.Method == http.MethodPost && r.URL.Path == "/wp-json/wp/v2/media":
			file, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "pic.jpg", header.Filename)
			assert.Equal(t, []byte("jpegdata"), data)
			_, _ = io.WriteString(w, `{"id":10}`)
		case r.Method == http.MethodPost && r.URL.Path == "/wp-json/wp/v2/media/10":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "alt text", body["alt_text"])
			_, _ = io.WriteString(w, `{"id":10}`)
		default:
			http.NotFound(w, r)
		}
	})

	upload := ports.MediaUpload{Data: []byte("jpegdata"), Filename: "pic.jpg", ContentType: "image/jpeg"}
	id, err := client.UploadMediaMultipart(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, 10, id)

	id, err = client.UploadMediaBinary(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, 11, id)

	require.NoError(t, client.UpdateMedia(context.Background(), 10, "alt text", "title"))
}

func TestPostStatusAndDelete(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, domain.SEONone, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/wp-json/wp/v2/posts/5":
			assert.Equal(t, "edit", r.URL.Query().Get("context"))
			_, _ = io.WriteString(w, `{"id":5,"status":"draft"}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/wp-json/wp/v2/posts/5":
			assert.Equal(t, "true", r.URL.Query().Get("force"))
			_, _ = io.WriteString(w, `{"deleted":true}`)
		default:
			http.NotFound(w, r)
		}
	})

	status, err := client.PostStatus(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "draft", status)

	_, err = client.PostStatus(context.Background(), 6)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, client.DeletePost(context.Background(), 5, true))
}

func TestVerifyConnectionAndRecentPosts(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, domain.SEONone, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wp/v2/users/me":
			_, _ = io.WriteString(w, `{"id":1,"name":"editor"}`)
		case "/wp-json/wp/v2/categories":
			_, _ = io.WriteString(w, `[{"id":3,"name":"News","slug":"news"}]`)
		case "/wp-json/wp/v2/posts":
			assert.Equal(t, "3", r.URL.Query().Get("per_page"))
			_, _ = io.WriteString(w, `[{"id":8,"title":{"rendered":"Older post"},"link":"https://cms.example.com/older"}]`)
		default:
			http.NotFound(w, r)
		}
	})

	cats, err := client.VerifyConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ports.Category{{ID: 3, Name: "News", Slug: "news"}}, cats)

	posts, err := client.RecentPosts(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []ports.PostRef{{ID: 8, Title: "Older post", Link: "https://cms.example.com/older"}}, posts)
}

func TestVerifyConnectionRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, domain.SEONone, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.VerifyConnection(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
