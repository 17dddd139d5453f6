package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/databases"
)

func newTestServer(t *testing.T) (*Server, *persistence.Manager) {
	t.Helper()
	store := databases.NewMemoryManager()
	srv := NewServer(store, nil, nil, Cycles{}, "", zerolog.Nop())
	return srv, store
}

func TestListNarrativesEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/narratives", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"narratives":[]`)
}

func TestListNarrativesFiltersByLifecycle(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC()
	require.NoError(t, store.Narratives.Upsert(t.Context(), persistence.Narrative{
		ID:             "n1",
		NucleusEntity:  "Bitcoin",
		LifecycleState: persistence.LifecycleHot,
		ArticleIDs:     []string{"a1"},
		ArticleCount:   1,
		FirstSeen:      now,
		LastUpdated:    now,
	}))
	require.NoError(t, store.Narratives.Upsert(t.Context(), persistence.Narrative{
		ID:             "n2",
		NucleusEntity:  "Ethereum",
		LifecycleState: persistence.LifecycleCooling,
		ArticleIDs:     []string{"a2"},
		ArticleCount:   1,
		FirstSeen:      now,
		LastUpdated:    now,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/narratives?lifecycle=hot", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Bitcoin")
	require.NotContains(t, rec.Body.String(), "Ethereum")
}

func TestAdminRouteRequiresToken(t *testing.T) {
	store := databases.NewMemoryManager()
	srv := NewServer(store, nil, nil, Cycles{}, "secret", zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestEntityAlertsEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.EntityAlerts.Insert(t.Context(), persistence.EntityAlert{
		ID:        "alert1",
		Entity:    "Bitcoin",
		Severity:  "warning",
		Reason:    "velocity spike",
		CreatedAt: time.Now().UTC(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/alerts?severity=warning", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "velocity spike")
}
