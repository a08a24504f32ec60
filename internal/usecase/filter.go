package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

// FilterCandidates keeps candidates observed on or after the start date whose
// URL contains one of the keywords (when any are configured) and that the
// ledger has not seen yet. Candidates matching an earlier one under the
// ledger match rule are dropped. The result is ordered oldest first.
func FilterCandidates(ctx context.Context, campaignID string, candidates []domain.CandidateRef, cfg domain.FilterConfig, ledger ports.LedgerLookup) ([]domain.CandidateRef, error) {
	keywords := make([]string, 0, len(cfg.URLKeywords))
	for _, kw := range cfg.URLKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	seen := make([]string, 0, len(candidates))
	out := make([]domain.CandidateRef, 0, len(candidates))
	for _, c := range candidates {
		if cfg.StartDate != nil && c.ObservedAt.Before(*cfg.StartDate) {
			continue
		}
		if len(keywords) > 0 && !containsAny(strings.ToLower(c.URL), keywords) {
			continue
		}

		if matchesAny(c.URL, seen) {
			continue
		}
		seen = append(seen, c.URL)

		if ledger != nil {
			exists, err := ledger.Exists(ctx, campaignID, c.URL)
			if err != nil {
				return nil, fmt.Errorf("ledger lookup %s: %w", c.URL, err)
			}
			if exists {
				continue
			}
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b domain.CandidateRef) int {
		return a.ObservedAt.Compare(b.ObservedAt)
	})
	return out, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func matchesAny(u string, seen []string) bool {
	for _, s := range seen {
		if domain.URLsMatch(u, s) {
			return true
		}
	}
	return false
}
