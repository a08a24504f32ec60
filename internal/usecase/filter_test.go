package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/infrastructure/storage"
)

type erroringLookup struct{ err error }

func (e erroringLookup) Exists(context.Context, string, string) (bool, error) { return false, e.err }

func day(d int) time.Time {
	return time.Date(2025, 1, d, 9, 0, 0, 0, time.UTC)
}

func urls(cs []domain.CandidateRef) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.URL
	}
	return out
}

func TestFilterCandidatesDateKeywordsAndLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger := storage.NewMemoryStore()
	_, err := ledger.Append(ctx, domain.ProcessedRecord{
		CampaignID: "c1", SourceURL: "https://site.com/news/seen", Status: domain.StatusFailed,
	})
	require.NoError(t, err)

	start := day(10)
	candidates := []domain.CandidateRef{
		{URL: "https://site.com/news/late", ObservedAt: day(20)},
		{URL: "https://site.com/news/old", ObservedAt: day(5)},
		{URL: "https://site.com/NEWS/early", ObservedAt: day(11)},
		{URL: "https://site.com/about/team", ObservedAt: day(12)},
		{URL: "https://site.com/news/seen", ObservedAt: day(15)},
		{URL: "http://site.com/news/late/", ObservedAt: day(21)},
	}

	got, err := FilterCandidates(ctx, "c1", candidates, domain.FilterConfig{
		StartDate:   &start,
		URLKeywords: []string{" news "},
	}, ledger)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.com/NEWS/early", "https://site.com/news/late"}, urls(got))
}

func TestFilterCandidatesWithoutConstraintsSortsStable(t *testing.T) {
	t.Parallel()

	candidates := []domain.CandidateRef{
		{URL: "https://a.com/3", ObservedAt: day(3)},
		{URL: "https://a.com/1b", ObservedAt: day(1)},
		{URL: "https://a.com/1a", ObservedAt: day(1)},
		{URL: "https://a.com/2", ObservedAt: day(2)},
	}
	got, err := FilterCandidates(context.Background(), "c1", candidates, domain.FilterConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/1b", "https://a.com/1a", "https://a.com/2", "https://a.com/3"}, urls(got))
}

func TestFilterCandidatesPropagatesLedgerErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	_, err := FilterCandidates(context.Background(), "c1",
		[]domain.CandidateRef{{URL: "https://a.com/x", ObservedAt: day(1)}},
		domain.FilterConfig{}, erroringLookup{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestFilterCandidatesDropsContainedURLs(t *testing.T) {
	t.Parallel()

	candidates := []domain.CandidateRef{
		{URL: "https://a.com/post-1", ObservedAt: day(2)},
		{URL: "https://a.com/post-10", ObservedAt: day(1)},
		{URL: "http://a.com/post-1?utm=x", ObservedAt: day(3)},
		{URL: "https://a.com/other", ObservedAt: day(4)},
	}
	got, err := FilterCandidates(context.Background(), "c1", candidates, domain.FilterConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/post-1", "https://a.com/other"}, urls(got))
}
