package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hk-market-scraper/config"
	"hk-market-scraper/models"
	"hk-market-scraper/orchestrator"
	"hk-market-scraper/scraper"
	"hk-market-scraper/scraper/centanet"
	"hk-market-scraper/scraper/house730"
	"hk-market-scraper/scraper/hse28"
	"hk-market-scraper/server"
	"hk-market-scraper/storage"
	"hk-market-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== HK Market Data Pipeline starting ===")
	logger.Info("Config — cache: %s | TTL: %dh | max listings/district: %d | district delay: %dms",
		cfg.CacheDir, cfg.CacheTTLHours, cfg.MaxListingsPerDistrict, cfg.DistrictDelayMs)

	store, err := storage.NewCacheStore(cfg.CacheDir, logger)
	if err != nil {
		logger.Error("Failed to create cache store: %v", err)
		os.Exit(1)
	}

	var archive *storage.ArchiveWriter
	if cfg.ArchiveEnabled {
		archive, err = storage.NewArchiveWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect archive sink, continuing without it: %v", err)
			archive = nil
		} else {
			defer archive.Close()
			logger.Info("Archive sink connected (table: market_listings)")
		}
	}

	sources := []scraper.Source{
		hse28.New(cfg.ChromeBin, cfg.NavTimeoutSec, cfg.MaxRetries, logger),
		house730.New(cfg.ChromeBin, cfg.NavTimeoutSec, cfg.MaxRetries, logger),
		centanet.New(logger),
	}

	opts := orchestrator.Options{
		MaxListingsPerDistrict: cfg.MaxListingsPerDistrict,
		DistrictDelay:          time.Duration(cfg.DistrictDelayMs) * time.Millisecond,
		CacheTTL:               time.Duration(cfg.CacheTTLHours) * time.Hour,
		MaxStale:               time.Duration(cfg.CacheMaxStaleHours) * time.Hour,
	}

	var orchArchive orchestrator.Archiver
	if archive != nil {
		orchArchive = archive
	}
	orch := orchestrator.New(sources, store, orchArchive, logger, opts)

	mode := "scrape"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "scrape":
		runScrape(orch, logger)
	case "serve":
		runServe(cfg, orch, store, archive, logger)
	case "status":
		printStatus(store, opts.CacheTTL)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [scrape|serve|status]\n", os.Args[0])
		os.Exit(2)
	}
}

// runScrape executes one full district cycle and prints the results.
func runScrape(orch *orchestrator.Orchestrator, logger *utils.Logger) {
	results := orch.ScrapeAllDistricts(context.Background())

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
			logger.Info("%-14s %3d listings  (%dms)", r.District, r.ListingsFound, r.DurationMs)
		} else {
			logger.Error("%-14s FAILED: %s", r.District, r.Error)
		}
	}
	logger.Info("Cycle complete — %d/%d districts succeeded", ok, len(results))
}

// runServe starts the scheduler and the HTTP trigger surface, shutting both
// down on SIGINT/SIGTERM.
func runServe(cfg *config.Config, orch *orchestrator.Orchestrator, store *storage.CacheStore, archive *storage.ArchiveWriter, logger *utils.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch.StartScheduler(ctx, time.Duration(cfg.ScrapeIntervalHours)*time.Hour)

	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	srv := server.New(orch, store, archive, logger, ttl)
	if err := srv.Run(ctx, cfg.HTTPAddr); err != nil {
		logger.Error("HTTP server exited: %v", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

// printStatus reports cache coverage per district without scraping.
func printStatus(store *storage.CacheStore, ttl time.Duration) {
	fmt.Printf("%-14s %-8s %-10s %-9s %s\n", "DISTRICT", "CACHED", "AGE", "LISTINGS", "MEDIAN PRICE")
	for _, district := range models.AllDistricts {
		cache, ok := store.Load(district)
		if !ok {
			fmt.Printf("%-14s %-8s %-10s %-9s %s\n", district, "no", "-", "-", "-")
			continue
		}
		age := time.Since(cache.UpdatedAt).Round(time.Minute)
		staleMark := ""
		if store.IsStale(district, ttl) {
			staleMark = " (stale)"
		}
		fmt.Printf("%-14s %-8s %-10s %-9d HK$%d%s\n",
			district, "yes", age, len(cache.Listings), cache.MarketStats.MedianPriceHKD, staleMark)
	}
}
