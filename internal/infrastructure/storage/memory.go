package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

// MemoryStore is an in-process ledger and run-state store for tests and the
// "memory" database driver.
type MemoryStore struct {
	mu      sync.RWMutex
	records []domain.ProcessedRecord
	runs    map[string]time.Time
	now     func() time.Time
}

var (
	_ ports.Ledger        = (*MemoryStore)(nil)
	_ ports.RunStateStore = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: map[string]time.Time{}, now: time.Now}
}

// Exists applies domain.URLsMatch to every record of the campaign.
func (m *MemoryStore) Exists(_ context.Context, campaignID, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.existsLocked(campaignID, url), nil
}

func (m *MemoryStore) existsLocked(campaignID, url string) bool {
	for _, rec := range m.records {
		if rec.CampaignID == campaignID && domain.URLsMatch(rec.SourceURL, url) {
			return true
		}
	}
	return false
}

// Append stores a copy of rec.
func (m *MemoryStore) Append(_ context.Context, rec domain.ProcessedRecord) (domain.ProcessedRecord, error) {
	rec, err := prepareRecord(rec, m.now)
	if err != nil {
		return domain.ProcessedRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsLocked(rec.CampaignID, rec.SourceURL) {
		return domain.ProcessedRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateCandidate, rec.SourceURL)
	}
	rec.Logs = slices.Clone(rec.Logs)
	m.records = append(m.records, rec)
	return rec, nil
}

// Get returns the record with id.
func (m *MemoryStore) Get(_ context.Context, id string) (domain.ProcessedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.ProcessedRecord{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
}

// ListByCampaign returns the campaign's records, newest first.
func (m *MemoryStore) ListByCampaign(_ context.Context, campaignID string) ([]domain.ProcessedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.ProcessedRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].CampaignID == campaignID {
			out = append(out, m.records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b domain.ProcessedRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// Update replaces the mutable fields of the record with rec.ID.
func (m *MemoryStore) Update(_ context.Context, rec domain.ProcessedRecord) error {
	if !rec.Status.Valid() {
		return fmt.Errorf("invalid record status %q", rec.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID != rec.ID {
			continue
		}
		cur := &m.records[i]
		cur.CMSPostID = rec.CMSPostID
		cur.Title = rec.Title
		cur.TargetURL = rec.TargetURL
		cur.Status = rec.Status
		cur.TokensUsed = rec.TokensUsed
		cur.Logs = slices.Clone(rec.Logs)
		return nil
	}
	return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
}

// Delete removes the record with id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = slices.Delete(m.records, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
}

// LastRunAt returns the last trigger time of a campaign.
func (m *MemoryStore) LastRunAt(_ context.Context, campaignID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.runs[campaignID]
	return at, ok, nil
}

// MarkRun stores the last trigger time of a campaign.
func (m *MemoryStore) MarkRun(_ context.Context, campaignID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[campaignID] = at
	return nil
}
