package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

var errUnauthorized = errors.New("missing or invalid admin token")

// handleListNarratives serves the paginated, lifecycle-filterable active
// narrative listing. Per §7, HTTP queries return empty lists rather than a
// 5xx when the underlying store read fails for this path; 5xx is reserved
// for outright store unavailability.
func (s *Server) handleListNarratives(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := persistence.NarrativeFilter{
		LifecycleState: persistence.LifecycleState(q.Get("lifecycle")),
		Limit:          queryInt(q, "limit", 50),
		Offset:         queryInt(q, "offset", 0),
	}
	narratives, err := s.store.Narratives.ListActive(r.Context(), filter)
	if err != nil {
		s.log.Warn().Err(err).Msg("list_narratives_failed")
		respondJSON(w, http.StatusOK, map[string]any{"narratives": []persistence.Narrative{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"narratives": narratives})
}

func (s *Server) handleNarrativeTimeline(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("narrativeID")
	snapshots, err := s.store.Narratives.Timeline(r.Context(), id)
	if err != nil {
		s.log.Warn().Err(err).Str("narrative_id", id).Msg("narrative_timeline_failed")
		respondJSON(w, http.StatusOK, map[string]any{"timeline": []persistence.TimelineSnapshot{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"narrative_id": id, "timeline": snapshots})
}

// handleTrendingEntities serves the top-N entities for a window, per §4.H.
func (s *Server) handleTrendingEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window := firstNonEmptyQuery(q.Get("window"), "24h")
	topN := queryInt(q, "limit", 20)
	threshold := queryFloat(q, "threshold", 0)

	entities, err := s.cycles.scorerTrending(r.Context(), window, topN, threshold)
	if err != nil {
		s.log.Warn().Err(err).Str("window", window).Msg("trending_entities_failed")
		respondJSON(w, http.StatusOK, map[string]any{"entities": []persistence.SignalScore{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"window": window, "entities": entities})
}

func (s *Server) handleEntityAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := persistence.EntityAlertFilter{
		Severity: q.Get("severity"),
		Limit:    queryInt(q, "limit", 50),
	}
	if v := q.Get("resolved"); v != "" {
		b := v == "true"
		filter.Resolved = &b
	}
	alerts, err := s.store.EntityAlerts.List(r.Context(), filter)
	if err != nil {
		s.log.Warn().Err(err).Msg("list_entity_alerts_failed")
		respondJSON(w, http.StatusOK, map[string]any{"alerts": []persistence.EntityAlert{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleTriggerEnrichment(w http.ResponseWriter, r *http.Request) {
	if s.cycles.Enrichment == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("enrichment pipeline not wired"))
		return
	}
	result, err := s.cycles.Enrichment.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTriggerSignals(w http.ResponseWriter, r *http.Request) {
	if s.cycles.Scorer == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("signal scorer not wired"))
		return
	}
	entityType := r.URL.Query().Get("entity_type")
	if err := s.cycles.Scorer.RunCycle(r.Context(), entityType); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleTriggerNarratives(w http.ResponseWriter, r *http.Request) {
	if s.cycles.Detector == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("narrative detector not wired"))
		return
	}
	result, err := s.cycles.Detector.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		respondJSON(w, http.StatusOK, map[string]any{"hits": 0, "misses": 0})
		return
	}
	hits, misses := s.cache.Stats()
	respondJSON(w, http.StatusOK, map[string]any{"hits": hits, "misses": misses})
}

func (s *Server) handleCostSummary(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since_hours"); v != "" {
		if hrs, err := strconv.Atoi(v); err == nil && hrs > 0 {
			since = time.Now().UTC().Add(-time.Duration(hrs) * time.Hour)
		}
	}
	summary, err := s.store.APICosts.Summary(r.Context(), since)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func queryInt(q map[string][]string, key string, def int) int {
	vals, ok := q[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return def
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil {
		return def
	}
	return n
}

func queryFloat(q map[string][]string, key string, def float64) float64 {
	vals, ok := q[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return def
	}
	f, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return def
	}
	return f
}

func firstNonEmptyQuery(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// scorerTrending indirects through Cycles so handleTrendingEntities keeps
// working even when only a Scorer (not the full Cycles set) is wired.
func (c Cycles) scorerTrending(ctx context.Context, window string, topN int, threshold float64) ([]persistence.SignalScore, error) {
	if c.Scorer == nil {
		return nil, errors.New("signal scorer not wired")
	}
	return c.Scorer.Trending(ctx, window, topN, threshold)
}
