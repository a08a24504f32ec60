package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

// Records manages ledger entries against the campaign's CMS.
type Records struct {
	ledger  ports.Ledger
	catalog ports.CampaignCatalog
	cms     ports.CMSFactory
	logger  *slog.Logger
}

// NewRecords builds the ledger management use case.
func NewRecords(ledger ports.Ledger, catalog ports.CampaignCatalog, cms ports.CMSFactory, logger *slog.Logger) *Records {
	if logger == nil {
		logger = slog.Default()
	}
	return &Records{ledger: ledger, catalog: catalog, cms: cms, logger: logger}
}

// List returns the campaign's records, newest first.
func (r *Records) List(ctx context.Context, campaignID string) ([]domain.ProcessedRecord, error) {
	if _, err := r.catalog.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return r.ledger.ListByCampaign(ctx, campaignID)
}

// SyncResult counts the records whose status changed.
type SyncResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
}

// Sync refreshes the status of every record that has a CMS post.
// Per-record lookup errors are collected and the sync carries on.
func (r *Records) Sync(ctx context.Context, campaignID string) (SyncResult, error) {
	campaign, err := r.catalog.Get(ctx, campaignID)
	if err != nil {
		return SyncResult{}, err
	}
	records, err := r.ledger.ListByCampaign(ctx, campaignID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list records: %w", err)
	}

	cms := r.cms(campaign.CMS)
	var (
		result SyncResult
		errs   []error
	)
	for _, rec := range records {
		if rec.CMSPostID == nil {
			continue
		}
		result.Checked++

		status, err := remoteStatus(ctx, cms, *rec.CMSPostID)
		if err != nil {
			errs = append(errs, fmt.Errorf("post %d: %w", *rec.CMSPostID, err))
			continue
		}
		if status == "" || status == rec.Status {
			continue
		}

		r.logger.Info("record status changed", "record_id", rec.ID, "from", rec.Status, "to", status)
		rec.Status = status
		if err := r.ledger.Update(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("update record %s: %w", rec.ID, err))
			continue
		}
		result.Updated++
	}
	return result, errors.Join(errs...)
}

// remoteStatus maps a CMS post status onto a record status. Unknown statuses
// map to "".
func remoteStatus(ctx context.Context, cms ports.CMS, postID int) (domain.RecordStatus, error) {
	status, err := cms.PostStatus(ctx, postID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.StatusTrashed, nil
	}
	if err != nil {
		return "", err
	}
	return MapPostStatus(status), nil
}

// MapPostStatus translates WordPress post statuses.
func MapPostStatus(status string) domain.RecordStatus {
	switch status {
	case "publish":
		return domain.StatusPublished
	case "draft", "pending", "future", "private":
		return domain.StatusDraft
	case "trash":
		return domain.StatusTrashed
	}
	return ""
}

// Delete removes a record and, when deleteRemote is set, its CMS post.
// A post that is already gone on the CMS side is not an error.
func (r *Records) Delete(ctx context.Context, id string, deleteRemote bool) error {
	rec, err := r.ledger.Get(ctx, id)
	if err != nil {
		return err
	}

	if deleteRemote && rec.CMSPostID != nil {
		campaign, err := r.catalog.Get(ctx, rec.CampaignID)
		if err != nil {
			return err
		}
		err = r.cms(campaign.CMS).DeletePost(ctx, *rec.CMSPostID, true)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete post %d: %w", *rec.CMSPostID, err)
		}
	}
	return r.ledger.Delete(ctx, id)
}
