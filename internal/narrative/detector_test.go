package narrative

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/events"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/gateway"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/databases"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/testhelpers"
)

func newTestDetector(t *testing.T, discoverResponse, summarizeResponse string) (*Detector, *persistence.Manager) {
	t.Helper()
	mgr := databases.NewMemoryManager()
	cache := llm.NewResponseCache(mgr.LLMCache, llm.DefaultCacheTTL)
	cost := llm.NewCostTracker(mgr.APICosts, map[string]llm.ModelPrice{
		"cheap-model":    {InputUSD: 1, OutputUSD: 1},
		"capable-model":  {InputUSD: 1, OutputUSD: 1},
	}, "cheap-model")

	cheap := &testhelpers.FakeProvider{Default: discoverResponse}
	capable := &testhelpers.FakeProvider{Default: summarizeResponse}
	providers := map[string]llm.Provider{"cheap-model": cheap, "capable-model": capable}
	gw := gateway.New(providers, cache, cost, "cheap-model", "capable-model", nil)

	d := New(mgr.Articles, mgr.Narratives, gw, Config{LookbackHours: 48, MinClusterSize: 2, BackfillLimit: 50})
	return d, mgr
}

func TestDetector_BackfillsAndCreatesNarrative(t *testing.T) {
	discoverResp := `{"nucleus_entity":"Bitcoin","actors":["SEC"],"actor_salience":{"SEC":5},"actions":["approved ETF"],"tensions":[],"implications":[],"summary":"x"}`
	summarizeResp := `{"title":"Bitcoin ETF Wave","summary":"Regulators approve spot ETFs."}`
	d, mgr := newTestDetector(t, discoverResp, summarizeResp)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
			ID: id, Source: "coindesk", Title: "Bitcoin ETF news " + id,
			Body: "The SEC approved a Bitcoin ETF.", PublishedAt: now,
			RelevanceTier: 1,
		}))
	}

	result, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Backfilled)
	require.Equal(t, 1, result.Clusters)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 0, result.Matched)

	all, err := mgr.Narratives.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Bitcoin", all[0].NucleusEntity)
	require.Equal(t, "Bitcoin ETF Wave", all[0].Title)
	require.Len(t, all[0].ArticleIDs, 2)
	require.NotEmpty(t, all[0].TimelineData)
}

func TestDetector_SecondCycleMergesIntoExisting(t *testing.T) {
	discoverResp := `{"nucleus_entity":"Bitcoin","actors":["SEC"],"actor_salience":{"SEC":5},"actions":["approved ETF"],"tensions":[],"implications":[],"summary":"x"}`
	summarizeResp := `{"title":"Bitcoin ETF Wave","summary":"Regulators approve spot ETFs."}`
	d, mgr := newTestDetector(t, discoverResp, summarizeResp)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
			ID: id, Source: "coindesk", Title: "Bitcoin ETF news " + id,
			Body: "The SEC approved a Bitcoin ETF.", PublishedAt: now, RelevanceTier: 1,
		}))
	}
	_, err := d.Run(ctx)
	require.NoError(t, err)

	for _, id := range []string{"a3", "a4"} {
		require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
			ID: id, Source: "coindesk", Title: "Bitcoin ETF followup " + id,
			Body: "More SEC Bitcoin ETF coverage.", PublishedAt: now, RelevanceTier: 1,
		}))
	}

	result, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Matched)
	require.Equal(t, 0, result.Created)

	all, err := mgr.Narratives.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, all[0].ArticleIDs, 4)
}

func TestDetector_SkipsArticleWithNoNucleus(t *testing.T) {
	discoverResp := `{"nucleus_entity":"","actors":[],"actor_salience":{},"actions":[],"tensions":[],"implications":[],"summary":""}`
	d, mgr := newTestDetector(t, discoverResp, `{"title":"x","summary":"y"}`)
	ctx := context.Background()

	require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
		ID: "a1", Source: "coindesk", Title: "Vague piece", Body: "Nothing specific.",
		PublishedAt: time.Now().UTC(), RelevanceTier: 2,
	}))

	result, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.Backfilled)
	require.Equal(t, 0, result.Clusters)
}

func TestDetector_ShallowClusterWithoutMergeTargetSurvives(t *testing.T) {
	discoverResp := `{"nucleus_entity":"Bitcoin","actors":["SEC"],"actor_salience":{"SEC":5},"actions":["approved ETF"],"tensions":[],"implications":[],"summary":"x"}`
	summarizeResp := `{"title":"Bitcoin ETF Wave","summary":"Regulators approve spot ETFs."}`
	d, mgr := newTestDetector(t, discoverResp, summarizeResp)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two articles on the ubiquitous Bitcoin nucleus form a shallow cluster;
	// with no substantial cluster to fold into it stays standalone and still
	// meets MinClusterSize=2.
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
			ID: id, Source: "coindesk", Title: "Bitcoin ETF news " + id,
			Body: "The SEC approved a Bitcoin ETF.", PublishedAt: now, RelevanceTier: 1,
		}))
	}

	result, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Clusters)
	require.Equal(t, 1, result.Created)
}

func TestDetector_SkipsBlacklistedNucleus(t *testing.T) {
	discoverResp := `{"nucleus_entity":"Sponsored Content","actors":[],"actor_salience":{},"actions":[],"tensions":[],"implications":[],"summary":"x"}`
	mgr := databases.NewMemoryManager()
	cache := llm.NewResponseCache(mgr.LLMCache, llm.DefaultCacheTTL)
	cost := llm.NewCostTracker(mgr.APICosts, map[string]llm.ModelPrice{
		"cheap-model":   {InputUSD: 1, OutputUSD: 1},
		"capable-model": {InputUSD: 1, OutputUSD: 1},
	}, "cheap-model")
	cheap := &testhelpers.FakeProvider{Default: discoverResp}
	capable := &testhelpers.FakeProvider{Default: `{"title":"x","summary":"y"}`}
	gw := gateway.New(map[string]llm.Provider{"cheap-model": cheap, "capable-model": capable}, cache, cost, "cheap-model", "capable-model", nil)

	d := New(mgr.Articles, mgr.Narratives, gw, Config{
		LookbackHours: 48, MinClusterSize: 2, BackfillLimit: 50,
		NucleusBlacklist: []string{"Sponsored Content"},
	})
	ctx := context.Background()
	now := time.Now().UTC()
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
			ID: id, Source: "coindesk", Title: "Promo piece " + id,
			Body: "Not real news.", PublishedAt: now, RelevanceTier: 1,
		}))
	}

	result, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Clusters)
	require.Equal(t, 0, result.Created)
	require.Equal(t, 0, result.Matched)
	require.Equal(t, 0, result.Failed)

	all, err := mgr.Narratives.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 0)
}

func TestDetector_Consolidate(t *testing.T) {
	d, mgr := newTestDetector(t, "{}", "{}")
	ctx := context.Background()
	now := time.Now().UTC()

	fp := persistence.Fingerprint{NucleusEntity: "Bitcoin", NarrativeFocus: "etf", KeyEntities: []string{"SEC", "Bitcoin"}}
	n1 := persistence.Narrative{ID: "n1", NucleusEntity: "Bitcoin", ArticleIDs: []string{"a1"}, ArticleCount: 1,
		LifecycleState: persistence.LifecycleHot, Fingerprint: fp, FirstSeen: now, LastUpdated: now}
	n2 := persistence.Narrative{ID: "n2", NucleusEntity: "Bitcoin", ArticleIDs: []string{"a2", "a3"}, ArticleCount: 2,
		LifecycleState: persistence.LifecycleRising, Fingerprint: fp, FirstSeen: now, LastUpdated: now}
	require.NoError(t, mgr.Narratives.Upsert(ctx, n1))
	require.NoError(t, mgr.Narratives.Upsert(ctx, n2))

	merged, err := d.Consolidate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, merged)

	survivor, ok, err := mgr.Narratives.Get(ctx, "n2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, survivor.ArticleIDs, 3)

	loser, ok, err := mgr.Narratives.Get(ctx, "n1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, persistence.LifecycleMerged, loser.LifecycleState)
	require.Equal(t, "n2", loser.MergedInto)
}

func TestDetector_WithEventPublisherDisabledIsNilSafe(t *testing.T) {
	discoverResp := `{"nucleus_entity":"Bitcoin","actors":["SEC"],"actor_salience":{"SEC":5},"actions":["approved ETF"],"tensions":[],"implications":[],"summary":"x"}`
	summarizeResp := `{"title":"Bitcoin ETF Wave","summary":"Regulators approve spot ETFs."}`
	d, mgr := newTestDetector(t, discoverResp, summarizeResp)

	pub, err := events.New(config.EventsConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, pub)
	d.WithEventPublisher(pub)

	ctx := context.Background()
	now := time.Now().UTC()
	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
			ID: id, Source: "coindesk", Title: "Bitcoin ETF news " + id,
			Body: "The SEC approved a Bitcoin ETF.", PublishedAt: now,
			RelevanceTier: 1,
		}))
	}

	result, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
}
