package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goodBody = "<html><body>" + strings.Repeat("real article text ", 20) + "</body></html>"

type countingServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newServer(t *testing.T, status int, body string) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func testClient(proxies []string, retries int) *Client {
	c := New(Config{
		Proxies:       proxies,
		Retries:       retries,
		BaseDelay:     time.Millisecond,
		MinBodyLength: 100,
	}, nil, nil, nil)
	return c
}

func TestFetchDirectSuccess(t *testing.T) {
	t.Parallel()

	origin := newServer(t, http.StatusOK, goodBody)
	proxy := newServer(t, http.StatusOK, goodBody)

	res := testClient([]string{proxy.URL + "/?url={url}"}, 1).Fetch(context.Background(), origin.URL)

	require.True(t, res.Succeeded)
	assert.Equal(t, StrategyDirect, res.Strategy)
	assert.Equal(t, goodBody, res.Body)
	assert.Zero(t, proxy.hits.Load())
}

func TestFetchFallsBackToThirdProxy(t *testing.T) {
	t.Parallel()

	origin := newServer(t, http.StatusOK, "tiny")
	blocked := newServer(t, http.StatusOK, "<html>Attention Required! | Cloudflare"+strings.Repeat(".", 200)+"</html>")
	broken := newServer(t, http.StatusBadGateway, goodBody)
	working := newServer(t, http.StatusOK, goodBody)
	unused := newServer(t, http.StatusOK, goodBody)

	client := testClient([]string{
		blocked.URL + "/?url={url}",
		broken.URL + "/raw?u=",
		working.URL + "/?url={url}",
		unused.URL + "/?url={url}",
	}, 1)

	var slept []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	res := client.Fetch(context.Background(), origin.URL)

	require.True(t, res.Succeeded)
	assert.Equal(t, "proxy[2]", res.Strategy)
	assert.Equal(t, goodBody, res.Body)
	assert.EqualValues(t, 1, origin.hits.Load())
	assert.EqualValues(t, 2, blocked.hits.Load())
	assert.EqualValues(t, 2, broken.hits.Load())
	assert.EqualValues(t, 1, working.hits.Load())
	assert.Zero(t, unused.hits.Load())
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, slept)
}

func TestFetchExhausted(t *testing.T) {
	t.Parallel()

	origin := newServer(t, http.StatusForbidden, goodBody)
	proxy := newServer(t, http.StatusOK, "403 Forbidden"+strings.Repeat(" ", 200))

	client := testClient([]string{proxy.URL + "/?url={url}"}, 2)
	var slept []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	res := client.Fetch(context.Background(), origin.URL)

	assert.False(t, res.Succeeded)
	assert.Empty(t, res.Body)
	assert.EqualValues(t, 3, proxy.hits.Load())
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, slept)
}

func TestFetchTimeoutCountsAsFailedAttempt(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	working := newServer(t, http.StatusOK, goodBody)

	client := New(Config{
		Proxies:       []string{working.URL + "/?url={url}"},
		DirectTimeout: 50 * time.Millisecond,
		MinBodyLength: 100,
	}, nil, nil, nil)

	res := client.Fetch(context.Background(), slow.URL)
	require.True(t, res.Succeeded)
	assert.Equal(t, "proxy[0]", res.Strategy)
}

func TestProxyURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://p.example/?url=https%3A%2F%2Fa.example%2Fx%3Fy%3D1",
		proxyURL("https://p.example/?url={url}", "https://a.example/x?y=1"))
	assert.Equal(t, "https://p.example/raw?u=https%3A%2F%2Fa.example",
		proxyURL("https://p.example/raw?u=", "https://a.example"))
}
