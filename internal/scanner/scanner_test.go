package scanner

import (
	"context"
	"testing"

	"ArticlesPublisher/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.CandidateRef, error) {
	return []domain.CandidateRef{{URL: "https://example.com/" + s.name}}, nil
}

func TestRegistryResolvesAliases(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubScanner{name: "feed"}, "rss", "atom")

	for _, name := range []string{"feed", "RSS", " atom "} {
		sc, err := reg.Resolve(name)
		if err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
		if sc.Name() != "feed" {
			t.Fatalf("unexpected scanner %s for %q", sc.Name(), name)
		}
	}

	if _, err := reg.Resolve("sitemap"); err == nil {
		t.Fatalf("expected error for unregistered scanner")
	}
}
