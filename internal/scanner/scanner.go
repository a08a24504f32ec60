package scanner

import (
	"context"
	"fmt"
	"strings"

	"ArticlesPublisher/internal/domain"
)

// Request carries all parameters required to execute a discovery scan.
type Request struct {
	SourceURL string
}

// Scanner captures a single discovery strategy (feed, sitemap, html, ...).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.CandidateRef, error)
}

// Registry keeps a mapping from scanner names and aliases to implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation under its name and aliases.
func (r *Registry) Register(scanner Scanner, aliases ...string) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[normalize(scanner.Name())] = scanner
	for _, alias := range aliases {
		r.scanners[normalize(alias)] = scanner
	}
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[normalize(name)]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
