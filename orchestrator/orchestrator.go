// Package orchestrator decides, per district, whether to scrape live,
// reuse the cached snapshot, or fall back to mock data. It is the only
// component allowed to decide what becomes "current" for a district.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"hk-market-scraper/models"
	"hk-market-scraper/scraper"
	"hk-market-scraper/services"
	"hk-market-scraper/storage"
	"hk-market-scraper/utils"
)

// Archiver is the optional write-only history sink for scraped snapshots.
type Archiver interface {
	Archive(listings []*models.MarketListing) error
}

// Options carries the orchestration policy knobs.
type Options struct {
	MaxListingsPerDistrict int
	// DistrictDelay is the politeness pause between districts in a full
	// cycle. Districts are scraped strictly one at a time: concurrent
	// headless-browser launches against the same site from one process
	// invite rate limiting, so this must not be parallelized.
	DistrictDelay time.Duration
	CacheTTL      time.Duration
	// MaxStale bounds how old a kept-stale snapshot may be before an empty
	// scrape falls through to mock data instead. Zero keeps stale data
	// indefinitely.
	MaxStale time.Duration
}

// Orchestrator runs the scrape-or-fallback ladder across the configured
// sources, in priority order.
type Orchestrator struct {
	sources []scraper.Source
	store   *storage.CacheStore
	archive Archiver
	logger  *utils.Logger
	opts    Options

	cycleGate utils.Gate
}

// New wires an Orchestrator. archive may be nil.
func New(sources []scraper.Source, store *storage.CacheStore, archive Archiver, logger *utils.Logger, opts Options) *Orchestrator {
	if opts.MaxListingsPerDistrict <= 0 {
		opts.MaxListingsPerDistrict = 15
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	return &Orchestrator{
		sources: sources,
		store:   store,
		archive: archive,
		logger:  logger,
		opts:    opts,
	}
}

// ScrapeDistrict runs one scrape-or-fallback cycle for a district:
//
//  1. live scrape via the sources in priority order — first non-empty wins;
//  2. non-empty result: recompute stats, fully replace the cached snapshot;
//  3. empty result with a usable prior cache: keep it untouched and report
//     its count (stale-but-real data beats discarding on a transient miss);
//  4. empty result with no usable cache: persist the mock snapshot.
//
// Every empty-scrape condition still reports success; only a fault escaping
// the adapters' never-fails contract (or a failed persist) yields
// success=false.
func (o *Orchestrator) ScrapeDistrict(ctx context.Context, district models.District) (result models.ScrapeResult) {
	start := time.Now()
	result = models.ScrapeResult{District: district}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("[orchestrator] Panic scraping %s: %v", district, r)
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	listings := o.scrapeLive(ctx, district)

	if len(listings) > 0 {
		cache := &models.DistrictCache{
			District:    district,
			UpdatedAt:   time.Now(),
			Listings:    listings,
			MarketStats: services.ComputeStats(listings),
		}
		if err := o.store.Save(cache); err != nil {
			result.Error = err.Error()
			return result
		}
		o.archiveSnapshot(listings)

		result.Success = true
		result.ListingsFound = len(listings)
		o.logger.Info("[orchestrator] %s: live scrape cached %d listings", district, len(listings))
		return result
	}

	if prior, ok := o.store.Load(district); ok && o.usable(prior) {
		result.Success = true
		result.ListingsFound = len(prior.Listings)
		o.logger.Warn("[orchestrator] %s: empty scrape, keeping prior cache (%d listings, age %s)",
			district, len(prior.Listings), time.Since(prior.UpdatedAt).Round(time.Minute))
		return result
	}

	mock := services.GenerateMockCache(district)
	if err := o.store.Save(mock); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.ListingsFound = len(mock.Listings)
	o.logger.Warn("[orchestrator] %s: no live data and no cache, persisted mock snapshot (%d listings)",
		district, len(mock.Listings))
	return result
}

// ScrapeAllDistricts cycles every supported district strictly sequentially
// with the politeness delay between them.
func (o *Orchestrator) ScrapeAllDistricts(ctx context.Context) []models.ScrapeResult {
	results := make([]models.ScrapeResult, 0, len(models.AllDistricts))

	for i, district := range models.AllDistricts {
		if i > 0 && o.opts.DistrictDelay > 0 {
			select {
			case <-time.After(o.opts.DistrictDelay):
			case <-ctx.Done():
				o.logger.Warn("[orchestrator] Cycle cancelled after %d/%d districts", i, len(models.AllDistricts))
				return results
			}
		}
		results = append(results, o.ScrapeDistrict(ctx, district))
	}

	return results
}

// RunScheduledCycle runs one full cycle unless a previous one is still in
// flight, in which case it skips and reports false. A cycle outlasting the
// scheduling interval must never overlap with itself.
func (o *Orchestrator) RunScheduledCycle(ctx context.Context) bool {
	if !o.cycleGate.TryAcquire() {
		o.logger.Warn("[orchestrator] Scheduled cycle skipped — previous cycle still running")
		return false
	}
	defer o.cycleGate.Release()

	results := o.ScrapeAllDistricts(ctx)
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	o.logger.Info("[orchestrator] Scheduled cycle done: %d/%d districts succeeded", ok, len(results))
	return true
}

// StartScheduler triggers a full cycle every interval until ctx is done.
// Failures are logged and never stop the next tick.
func (o *Orchestrator) StartScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		o.logger.Info("[orchestrator] Scheduler started — full cycle every %s", interval)
		for {
			select {
			case <-ctx.Done():
				o.logger.Info("[orchestrator] Scheduler stopped")
				return
			case <-ticker.C:
				o.RunScheduledCycle(ctx)
			}
		}
	}()
}

// GetMarketDataForAgent returns the current snapshot for a district,
// refreshing it synchronously first when stale. The scrape-or-fallback
// ladder guarantees the returned snapshot is never nil.
func (o *Orchestrator) GetMarketDataForAgent(ctx context.Context, district models.District) *models.DistrictCache {
	if o.store.IsStale(district, o.opts.CacheTTL) {
		o.logger.Info("[orchestrator] %s: cache stale, refreshing before agent use", district)
		o.ScrapeDistrict(ctx, district)
	}

	cache, ok := o.store.Load(district)
	if !ok {
		// Save failed or the file vanished underneath us; the agent still
		// gets data, just unpersisted.
		cache = services.GenerateMockCache(district)
	}
	return cache
}

// scrapeLive tries each covering source in priority order and returns the
// first non-empty result. Source faults are logged and treated as empty.
func (o *Orchestrator) scrapeLive(ctx context.Context, district models.District) []*models.MarketListing {
	for _, src := range o.sources {
		if !src.Covers(district) {
			continue
		}
		listings, err := src.Scrape(ctx, district, o.opts.MaxListingsPerDistrict)
		if err != nil {
			o.logger.Error("[orchestrator] Source %s failed for %s: %v", src.Name(), district, err)
			continue
		}
		if len(listings) > 0 {
			return listings
		}
	}
	return nil
}

// usable applies the staleness bound to a kept-stale snapshot.
func (o *Orchestrator) usable(cache *models.DistrictCache) bool {
	if o.opts.MaxStale <= 0 {
		return true
	}
	return time.Since(cache.UpdatedAt) < o.opts.MaxStale
}

func (o *Orchestrator) archiveSnapshot(listings []*models.MarketListing) {
	if o.archive == nil {
		return
	}
	if err := o.archive.Archive(listings); err != nil {
		o.logger.Warn("[orchestrator] Archive write failed: %v", err)
	}
}
