package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/databases"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/selective"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/testhelpers"
)

func newTestGateway(t *testing.T, cheap, capable *testhelpers.FakeProvider) *Gateway {
	t.Helper()
	mgr := databases.NewMemoryManager()
	cache := llm.NewResponseCache(mgr.LLMCache, llm.DefaultCacheTTL)
	cost := llm.NewCostTracker(mgr.APICosts, map[string]llm.ModelPrice{
		"cheap-model":    {InputUSD: 1, OutputUSD: 2},
		"capable-model":  {InputUSD: 5, OutputUSD: 10},
		"fallback-model": {InputUSD: 1, OutputUSD: 2},
	}, "cheap-model")

	providers := map[string]llm.Provider{
		"cheap-model":    cheap,
		"capable-model":  capable,
		"fallback-model": cheap,
	}

	return New(providers, cache, cost, "cheap-model", "capable-model", []string{"fallback-model"})
}

func TestExtractEntitiesBatch(t *testing.T) {
	cheap := &testhelpers.FakeProvider{
		Default: `{"results": {"a1": {"primary_entities": [{"type":"cryptocurrency","name":"btc","ticker":"BTC","confidence":0.9}], "context_entities": []}}}`,
	}
	gw := newTestGateway(t, cheap, &testhelpers.FakeProvider{})

	out, err := gw.ExtractEntitiesBatch(context.Background(), []selective.Article{
		{ID: "a1", Title: "Bitcoin rallies", Text: "BTC surged today"},
	})
	require.NoError(t, err)
	require.Len(t, out["a1"], 1)
	require.Equal(t, "Bitcoin", out["a1"][0].Name)
	require.True(t, out["a1"][0].Primary)
	require.Equal(t, 1, cheap.CallCount())
}

func TestAnalyzeArticlesBatch_Sentiment(t *testing.T) {
	cheap := &testhelpers.FakeProvider{
		Default: `{"results": {"a1": {"primary_entities": [], "context_entities": [], "sentiment": 0.65}}}`,
	}
	gw := newTestGateway(t, cheap, &testhelpers.FakeProvider{})

	out, err := gw.AnalyzeArticlesBatch(context.Background(), []selective.Article{
		{ID: "a1", Title: "Bullish news", Text: "prices up"},
	})
	require.NoError(t, err)
	require.InDelta(t, 0.65, out["a1"].Sentiment, 0.0001)
}

func TestAnalyzeArticlesBatch_MalformedResponseFailsClosed(t *testing.T) {
	cheap := &testhelpers.FakeProvider{Default: "not json at all"}
	gw := newTestGateway(t, cheap, &testhelpers.FakeProvider{})

	out, err := gw.AnalyzeArticlesBatch(context.Background(), []selective.Article{
		{ID: "a1", Title: "x", Text: "y"},
	})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestExtractEntitiesBatch_EmptyInput(t *testing.T) {
	gw := newTestGateway(t, &testhelpers.FakeProvider{}, &testhelpers.FakeProvider{})
	out, err := gw.ExtractEntitiesBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestExtractEntitiesBatch_MarkdownFencedResponse(t *testing.T) {
	cheap := &testhelpers.FakeProvider{
		Default: "```json\n{\"results\": {\"a1\": {\"primary_entities\": [], \"context_entities\": [{\"type\":\"cryptocurrency\",\"name\":\"eth\",\"confidence\":0.5}]}}}\n```",
	}
	gw := newTestGateway(t, cheap, &testhelpers.FakeProvider{})

	out, err := gw.ExtractEntitiesBatch(context.Background(), []selective.Article{
		{ID: "a1", Title: "Ethereum update", Text: "ETH gas fees"},
	})
	require.NoError(t, err)
	require.Len(t, out["a1"], 1)
	require.Equal(t, "Ethereum", out["a1"][0].Name)
	require.False(t, out["a1"][0].Primary)
}

func TestExtractEntitiesBatch_CacheHitSkipsSecondCall(t *testing.T) {
	cheap := &testhelpers.FakeProvider{
		Default: `{"results": {"a1": {"primary_entities": [{"type":"cryptocurrency","name":"btc","confidence":0.9}], "context_entities": []}}}`,
	}
	gw := newTestGateway(t, cheap, &testhelpers.FakeProvider{})

	articles := []selective.Article{{ID: "a1", Title: "Bitcoin rallies", Text: "BTC surged today"}}
	_, err := gw.ExtractEntitiesBatch(context.Background(), articles)
	require.NoError(t, err)
	_, err = gw.ExtractEntitiesBatch(context.Background(), articles)
	require.NoError(t, err)

	require.Equal(t, 1, cheap.CallCount())
}

func TestDiscoverNarrative(t *testing.T) {
	cheap := &testhelpers.FakeProvider{
		Default: `{"nucleus_entity":"ethereum","actors":["Vitalik"],"actor_salience":{"vitalik":0.7},"actions":["proposed"],"tensions":[],"implications":[],"summary":"A summary."}`,
	}
	gw := newTestGateway(t, cheap, &testhelpers.FakeProvider{})

	summary, err := gw.DiscoverNarrative(context.Background(), "a1", "Vitalik proposes change", "body text")
	require.NoError(t, err)
	require.Equal(t, "Ethereum", summary.NucleusEntity)
	require.Equal(t, "A summary.", summary.Summary)
}

func TestSummarizeCluster(t *testing.T) {
	capable := &testhelpers.FakeProvider{
		Default: `{"title":"Bitcoin ETF approval wave","summary":"Several spot ETFs were approved this week."}`,
	}
	gw := newTestGateway(t, &testhelpers.FakeProvider{}, capable)

	title, summary, err := gw.SummarizeCluster(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)
	require.Equal(t, "Bitcoin ETF approval wave", title)
	require.NotEmpty(t, summary)
	require.Equal(t, 1, capable.CallCount())
}

func TestSummarizeCluster_NoArticles(t *testing.T) {
	gw := newTestGateway(t, &testhelpers.FakeProvider{}, &testhelpers.FakeProvider{})
	_, _, err := gw.SummarizeCluster(context.Background(), nil)
	require.Error(t, err)
}

func TestCall_FallsBackOnAccessDenied(t *testing.T) {
	cheap := &testhelpers.FakeProvider{Err: &llm.ErrAccessDenied{Model: "cheap-model"}}
	capable := &testhelpers.FakeProvider{}
	gw := newTestGateway(t, cheap, capable)

	fallback := &testhelpers.FakeProvider{
		Default: `{"results": {}}`,
	}
	gw.providers["fallback-model"] = fallback

	_, err := gw.ExtractEntitiesBatch(context.Background(), []selective.Article{
		{ID: "a1", Title: "x", Text: "y"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, cheap.CallCount())
	require.Equal(t, 1, fallback.CallCount())
}
