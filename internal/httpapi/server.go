// Package httpapi exposes the read-only query surface described in spec §6:
// active narratives, a single narrative's timeline, trending entities,
// entity alerts, and a small set of admin triggers (force a cycle, cache
// stats, cost summaries). It has no write path into the pipeline other than
// those explicit admin triggers.
package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/enrichment"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/narrative"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/signals"
)

// Cycles groups the on-demand pipeline entry points the admin surface can
// trigger out of band from their normal scheduled cadence.
type Cycles struct {
	Enrichment *enrichment.Pipeline
	Scorer     *signals.Scorer
	Detector   *narrative.Detector
}

// Server serves the aggregator's read-only HTTP query API.
type Server struct {
	store    *persistence.Manager
	cache    *llm.ResponseCache
	cost     *llm.CostTracker
	cycles   Cycles
	adminKey string
	log      zerolog.Logger

	mux *http.ServeMux
}

// NewServer builds the HTTP API server. adminKey, when non-empty, gates the
// /api/v1/admin/* routes behind a bearer-token check; when empty, admin
// routes are left open (local/dev use only).
func NewServer(store *persistence.Manager, cache *llm.ResponseCache, cost *llm.CostTracker, cycles Cycles, adminKey string, log zerolog.Logger) *Server {
	s := &Server{
		store:    store,
		cache:    cache,
		cost:     cost,
		cycles:   cycles,
		adminKey: adminKey,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/narratives", s.handleListNarratives)
	s.mux.HandleFunc("GET /api/v1/narratives/{narrativeID}/timeline", s.handleNarrativeTimeline)
	s.mux.HandleFunc("GET /api/v1/entities/trending", s.handleTrendingEntities)
	s.mux.HandleFunc("GET /api/v1/entities/alerts", s.handleEntityAlerts)

	s.mux.HandleFunc("POST /api/v1/admin/cycles/enrichment", s.withAdmin(s.handleTriggerEnrichment))
	s.mux.HandleFunc("POST /api/v1/admin/cycles/signals", s.withAdmin(s.handleTriggerSignals))
	s.mux.HandleFunc("POST /api/v1/admin/cycles/narratives", s.withAdmin(s.handleTriggerNarratives))
	s.mux.HandleFunc("GET /api/v1/admin/cache/stats", s.withAdmin(s.handleCacheStats))
	s.mux.HandleFunc("GET /api/v1/admin/costs/summary", s.withAdmin(s.handleCostSummary))
}

// withAdmin enforces the admin bearer token, when configured, before
// delegating to the wrapped handler.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.adminKey {
			respondError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		next(w, r)
	}
}
