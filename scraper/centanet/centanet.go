// Package centanet is a stub adapter for Centanet. The site's listing pages
// sit behind aggressive bot detection; until an extraction strategy exists
// this source reports no coverage and always returns empty.
package centanet

import (
	"context"

	"hk-market-scraper/models"
	"hk-market-scraper/utils"
)

type Scraper struct {
	logger *utils.Logger
}

func New(logger *utils.Logger) *Scraper {
	return &Scraper{logger: logger}
}

func (s *Scraper) Name() models.ListingSource { return models.SourceCentanet }

func (s *Scraper) Covers(models.District) bool { return false }

func (s *Scraper) Scrape(_ context.Context, district models.District, _ int) ([]*models.MarketListing, error) {
	s.logger.Debug("[centanet] Stub adapter invoked for %s — no coverage", district)
	return nil, nil
}
