package usecase

import (
	"context"
	"fmt"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

// StaticCatalog serves campaigns loaded once from configuration, in order.
type StaticCatalog struct {
	campaigns []domain.Campaign
}

var _ ports.CampaignCatalog = (*StaticCatalog)(nil)

// NewStaticCatalog copies campaigns.
func NewStaticCatalog(campaigns []domain.Campaign) *StaticCatalog {
	return &StaticCatalog{campaigns: append([]domain.Campaign(nil), campaigns...)}
}

// List returns every campaign in configuration order.
func (c *StaticCatalog) List(context.Context) ([]domain.Campaign, error) {
	return append([]domain.Campaign(nil), c.campaigns...), nil
}

// Get returns the campaign with id.
func (c *StaticCatalog) Get(_ context.Context, id string) (domain.Campaign, error) {
	for _, campaign := range c.campaigns {
		if campaign.ID == id {
			return campaign, nil
		}
	}
	return domain.Campaign{}, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
}
