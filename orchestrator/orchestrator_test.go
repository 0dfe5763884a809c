package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hk-market-scraper/models"
	"hk-market-scraper/scraper"
	"hk-market-scraper/storage"
	"hk-market-scraper/utils"
)

// fakeSource is a scripted adapter for ladder tests.
type fakeSource struct {
	name     models.ListingSource
	covers   bool
	listings []*models.MarketListing
	err      error

	mu    sync.Mutex
	calls int
	block chan struct{} // when set, Scrape waits until closed
}

func (f *fakeSource) Name() models.ListingSource  { return f.name }
func (f *fakeSource) Covers(models.District) bool { return f.covers }

func (f *fakeSource) Scrape(ctx context.Context, district models.District, maxListings int) ([]*models.MarketListing, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.listings) > maxListings {
		return f.listings[:maxListings], nil
	}
	return f.listings, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func liveListings(district models.District, n int) []*models.MarketListing {
	var out []*models.MarketListing
	for i := 0; i < n; i++ {
		out = append(out, &models.MarketListing{
			ID:              fmt.Sprintf("28hse-%d", 1000+i),
			Source:          models.Source28Hse,
			ScrapedAt:       time.Now(),
			Address:         fmt.Sprintf("Test Court %d", i+1),
			District:        district,
			Rooms:           2,
			SizeSqft:        500,
			PriceHKD:        6_000_000,
			PricePerSqftHKD: 12_000,
			ListingStatus:   models.StatusForSale,
		})
	}
	return out
}

func newTestOrchestrator(t *testing.T, sources []*fakeSource, opts Options) (*Orchestrator, *storage.CacheStore) {
	t.Helper()
	logger := utils.NewLogger()
	store, err := storage.NewCacheStore(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewCacheStore: %v", err)
	}

	wrapped := make([]scraper.Source, 0, len(sources))
	for _, s := range sources {
		wrapped = append(wrapped, s)
	}
	return New(wrapped, store, nil, logger, opts), store
}

func TestScrapeDistrictLiveResultReplacesCache(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true, listings: liveListings(models.KwunTong, 3)}
	orch, store := newTestOrchestrator(t, []*fakeSource{src}, Options{})

	result := orch.ScrapeDistrict(context.Background(), models.KwunTong)

	if !result.Success || result.ListingsFound != 3 {
		t.Fatalf("result: %+v, want success with 3 listings", result)
	}
	cache, ok := store.Load(models.KwunTong)
	if !ok {
		t.Fatal("cache should be persisted")
	}
	if len(cache.Listings) != 3 {
		t.Errorf("cached listings: got %d, want 3", len(cache.Listings))
	}
	if cache.MarketStats.TotalListingsScraped != 3 {
		t.Errorf("stats should be recomputed at write time: %+v", cache.MarketStats)
	}
	if cache.MarketStats.MedianPriceHKD != 6_000_000 {
		t.Errorf("median: got %d, want 6000000", cache.MarketStats.MedianPriceHKD)
	}
}

func TestScrapeDistrictEmptyKeepsPriorCache(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true}
	orch, store := newTestOrchestrator(t, []*fakeSource{src}, Options{})

	prior := &models.DistrictCache{
		District:  models.MongKok,
		UpdatedAt: time.Now().Add(-30 * time.Hour),
		Listings:  liveListings(models.MongKok, 5),
	}
	prior.MarketStats.TotalListingsScraped = 5
	if err := store.Save(prior); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result := orch.ScrapeDistrict(context.Background(), models.MongKok)

	if !result.Success || result.ListingsFound != 5 {
		t.Fatalf("result: %+v, want success with the prior cache's 5 listings", result)
	}
	cache, _ := store.Load(models.MongKok)
	if len(cache.Listings) != 5 {
		t.Errorf("prior cache should be untouched: got %d listings", len(cache.Listings))
	}
	if !cache.UpdatedAt.Equal(prior.UpdatedAt) {
		t.Errorf("prior cache timestamp should be preserved")
	}
	if cache.Listings[0].Source == models.SourceMock {
		t.Error("stale real data must not be replaced by mock data")
	}
}

func TestScrapeDistrictEmptyNoCacheFallsBackToMock(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true}
	orch, store := newTestOrchestrator(t, []*fakeSource{src}, Options{})

	result := orch.ScrapeDistrict(context.Background(), models.ShaTin)

	if !result.Success {
		t.Fatalf("result: %+v, want success", result)
	}
	cache, ok := store.Load(models.ShaTin)
	if !ok {
		t.Fatal("mock snapshot should be persisted")
	}
	if result.ListingsFound != len(cache.Listings) {
		t.Errorf("result count %d != cached count %d", result.ListingsFound, len(cache.Listings))
	}
	if len(cache.Listings) == 0 || cache.Listings[0].Source != models.SourceMock {
		t.Error("fallback snapshot should come from the mock generator")
	}
}

// A bounded staleness policy turns an ancient cache plus an empty scrape
// into mock data instead of keeping the ancient snapshot.
func TestScrapeDistrictMaxStaleExpiresOldCache(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true}
	orch, store := newTestOrchestrator(t, []*fakeSource{src}, Options{MaxStale: 48 * time.Hour})

	ancient := &models.DistrictCache{
		District:  models.TuenMun,
		UpdatedAt: time.Now().Add(-72 * time.Hour),
		Listings:  liveListings(models.TuenMun, 4),
	}
	if err := store.Save(ancient); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result := orch.ScrapeDistrict(context.Background(), models.TuenMun)

	if !result.Success {
		t.Fatalf("result: %+v", result)
	}
	cache, _ := store.Load(models.TuenMun)
	if cache.Listings[0].Source != models.SourceMock {
		t.Error("cache beyond MaxStale should be superseded by mock data")
	}
}

func TestScrapeDistrictSourceErrorFallsThrough(t *testing.T) {
	failing := &fakeSource{name: models.Source28Hse, covers: true, err: errors.New("browser crashed")}
	working := &fakeSource{name: models.SourceHouse730, covers: true, listings: liveListings(models.KwunTong, 2)}
	orch, _ := newTestOrchestrator(t, []*fakeSource{failing, working}, Options{})

	result := orch.ScrapeDistrict(context.Background(), models.KwunTong)

	if !result.Success || result.ListingsFound != 2 {
		t.Fatalf("result: %+v, want success via the second source", result)
	}
	if failing.callCount() != 1 || working.callCount() != 1 {
		t.Errorf("both sources should be consulted: %d, %d", failing.callCount(), working.callCount())
	}
}

func TestScrapeDistrictSkipsNonCoveringSources(t *testing.T) {
	noCoverage := &fakeSource{name: models.Source28Hse, covers: false, listings: liveListings(models.WongTaiSin, 3)}
	orch, _ := newTestOrchestrator(t, []*fakeSource{noCoverage}, Options{})

	orch.ScrapeDistrict(context.Background(), models.WongTaiSin)

	if noCoverage.callCount() != 0 {
		t.Errorf("non-covering source should never be scraped, got %d calls", noCoverage.callCount())
	}
}

func TestScrapeAllDistrictsCoversEveryDistrict(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true}
	orch, _ := newTestOrchestrator(t, []*fakeSource{src}, Options{})

	results := orch.ScrapeAllDistricts(context.Background())

	if len(results) != len(models.AllDistricts) {
		t.Fatalf("results: got %d, want %d", len(results), len(models.AllDistricts))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("%s: %+v", r.District, r)
		}
	}
}

func TestScrapeAllDistrictsHonorsCancellation(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true}
	orch, _ := newTestOrchestrator(t, []*fakeSource{src}, Options{DistrictDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []models.ScrapeResult, 1)
	go func() { done <- orch.ScrapeAllDistricts(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case results := <-done:
		if len(results) >= len(models.AllDistricts) {
			t.Errorf("cancelled cycle should stop early, got %d results", len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not stop after cancellation")
	}
}

// A second scheduled cycle must not start while one is in flight.
func TestRunScheduledCycleGuardsOverlap(t *testing.T) {
	block := make(chan struct{})
	src := &fakeSource{name: models.Source28Hse, covers: true, block: block}
	orch, _ := newTestOrchestrator(t, []*fakeSource{src}, Options{})

	started := make(chan bool, 1)
	go func() { started <- orch.RunScheduledCycle(context.Background()) }()

	// Wait for the first cycle to be inside its first scrape.
	deadline := time.Now().Add(2 * time.Second)
	for src.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.callCount() == 0 {
		t.Fatal("first cycle never started")
	}

	if orch.RunScheduledCycle(context.Background()) {
		t.Error("second cycle should be skipped while the first is in flight")
	}

	close(block)
	if !<-started {
		t.Error("first cycle should report that it ran")
	}

	// Gate released: a fresh cycle may run again.
	if !orch.RunScheduledCycle(context.Background()) {
		t.Error("cycle after completion should not be skipped")
	}
}

func TestGetMarketDataForAgentNeverNil(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true}
	orch, _ := newTestOrchestrator(t, []*fakeSource{src}, Options{})

	cache := orch.GetMarketDataForAgent(context.Background(), models.KowloonCity)
	if cache == nil {
		t.Fatal("agent accessor must never return nil")
	}
	if len(cache.Listings) == 0 {
		t.Error("agent accessor should return the persisted fallback snapshot")
	}
}

func TestGetMarketDataForAgentRefreshesStaleCache(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true, listings: liveListings(models.ShamShuiPo, 4)}
	orch, store := newTestOrchestrator(t, []*fakeSource{src}, Options{CacheTTL: 6 * time.Hour})

	stale := &models.DistrictCache{
		District:  models.ShamShuiPo,
		UpdatedAt: time.Now().Add(-10 * time.Hour),
		Listings:  liveListings(models.ShamShuiPo, 1),
	}
	if err := store.Save(stale); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cache := orch.GetMarketDataForAgent(context.Background(), models.ShamShuiPo)

	if src.callCount() != 1 {
		t.Errorf("stale cache should trigger one synchronous scrape, got %d", src.callCount())
	}
	if len(cache.Listings) != 4 {
		t.Errorf("agent should see the refreshed snapshot: got %d listings", len(cache.Listings))
	}
}

func TestGetMarketDataForAgentUsesFreshCacheWithoutScraping(t *testing.T) {
	src := &fakeSource{name: models.Source28Hse, covers: true, listings: liveListings(models.MongKok, 4)}
	orch, store := newTestOrchestrator(t, []*fakeSource{src}, Options{CacheTTL: 6 * time.Hour})

	fresh := &models.DistrictCache{
		District:  models.MongKok,
		UpdatedAt: time.Now().Add(-time.Hour),
		Listings:  liveListings(models.MongKok, 2),
	}
	if err := store.Save(fresh); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cache := orch.GetMarketDataForAgent(context.Background(), models.MongKok)

	if src.callCount() != 0 {
		t.Errorf("fresh cache must not trigger a scrape, got %d calls", src.callCount())
	}
	if len(cache.Listings) != 2 {
		t.Errorf("agent should see the cached snapshot: got %d listings", len(cache.Listings))
	}
}
