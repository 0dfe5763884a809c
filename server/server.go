// Package server exposes the thin HTTP trigger surface over the pipeline:
// scrape-now, per-district status, and the agent-facing market fragment.
// Handlers are wrappers over orchestrator/store calls and hold no policy.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hk-market-scraper/models"
	"hk-market-scraper/orchestrator"
	"hk-market-scraper/services"
	"hk-market-scraper/storage"
	"hk-market-scraper/utils"
)

// Server wires the trigger endpoints to the orchestrator and cache store.
type Server struct {
	orch    *orchestrator.Orchestrator
	store   *storage.CacheStore
	archive *storage.ArchiveWriter
	logger  *utils.Logger
	ttl     time.Duration
}

// New creates a Server. archive may be nil when the Postgres sink is
// disabled.
func New(orch *orchestrator.Orchestrator, store *storage.CacheStore, archive *storage.ArchiveWriter, logger *utils.Logger, ttl time.Duration) *Server {
	return &Server{orch: orch, store: store, archive: archive, logger: logger, ttl: ttl}
}

// Router builds the chi routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/scrape", s.handleScrape)
	r.Get("/status", s.handleStatus)
	r.Get("/market/{district}", s.handleMarket)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("[server] Listening on %s", addr)
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleScrape triggers a scrape cycle. With ?district= it scrapes one
// district synchronously; without, it runs the full guarded cycle and
// reports 409 when one is already in flight.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("district"); name != "" {
		district, ok := models.ParseDistrict(name)
		if !ok {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "unsupported district: " + name,
			})
			return
		}
		result := s.orch.ScrapeDistrict(r.Context(), district)
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	if !s.orch.RunScheduledCycle(r.Context()) {
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"error": "a scrape cycle is already running",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cycle complete"})
}

type districtStatus struct {
	District     string              `json:"district"`
	Cached       bool                `json:"cached"`
	AgeMinutes   int64               `json:"age_minutes,omitempty"`
	Stale        bool                `json:"stale"`
	ListingCount int                 `json:"listing_count"`
	Stats        *models.MarketStats `json:"stats,omitempty"`
	ArchivedRows int                 `json:"archived_rows,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]districtStatus, 0, len(models.AllDistricts))

	for _, district := range models.AllDistricts {
		st := districtStatus{District: string(district), Stale: true}

		if cache, ok := s.store.Load(district); ok {
			st.Cached = true
			st.AgeMinutes = int64(time.Since(cache.UpdatedAt).Minutes())
			st.Stale = s.store.IsStale(district, s.ttl)
			st.ListingCount = len(cache.Listings)
			stats := cache.MarketStats
			st.Stats = &stats
		}

		if s.archive != nil {
			if n, err := s.archive.CountForDistrict(district); err == nil {
				st.ArchivedRows = n
			}
		}

		statuses = append(statuses, st)
	}

	s.writeJSON(w, http.StatusOK, statuses)
}

// handleMarket returns the cached snapshot for one district together with
// the formatted fragment the enrichment collaborator consumes. Stale data is
// refreshed synchronously first.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "district")
	district, ok := models.ParseDistrict(name)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unsupported district: " + name,
		})
		return
	}

	cache := s.orch.GetMarketDataForAgent(r.Context(), district)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"district":     cache.District,
		"updatedAt":    cache.UpdatedAt,
		"market_stats": cache.MarketStats,
		"fragment":     services.FormatForAgent(cache),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("[server] JSON encode failed: %v", err)
	}
}
