package parser

import (
	"context"
	"sync"

	"ArticlesPublisher/internal/ports"
)

// stubFetcher serves canned bodies keyed by URL; unknown URLs fail.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func newStubFetcher(pages map[string]string) *stubFetcher {
	return &stubFetcher{pages: pages}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ports.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return ports.FetchResult{}
	}
	return ports.FetchResult{Body: body, Succeeded: true, Strategy: "direct"}
}

func (f *stubFetcher) requested(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}
