package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/gateway"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/databases"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/testhelpers"
)

func newTestPipeline(t *testing.T, cheapResponse string, blacklist []string) (*Pipeline, *persistence.Manager) {
	t.Helper()
	mgr := databases.NewMemoryManager()
	cache := llm.NewResponseCache(mgr.LLMCache, llm.DefaultCacheTTL)
	cost := llm.NewCostTracker(mgr.APICosts, map[string]llm.ModelPrice{"cheap-model": {InputUSD: 1, OutputUSD: 1}}, "cheap-model")
	cheap := &testhelpers.FakeProvider{Default: cheapResponse}
	gw := gateway.New(map[string]llm.Provider{"cheap-model": cheap}, cache, cost, "cheap-model", "capable-model", nil)

	return New(mgr.Articles, mgr.EntityMentions, gw, 10, blacklist), mgr
}

func TestRun_LLMRoutedArticleIsEnrichedAndPersisted(t *testing.T) {
	pipeline, mgr := newTestPipeline(t, `{"results": {"a1": {"primary_entities": [{"type":"cryptocurrency","name":"btc","confidence":0.9}], "context_entities": [], "sentiment": 0.6}}}`, nil)
	ctx := context.Background()

	require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
		ID:          "a1",
		Source:      "coindesk",
		Title:       "Bitcoin ETF approval rocks markets",
		Body:        "The SEC approved a spot Bitcoin ETF today.",
		PublishedAt: time.Now().UTC(),
	}))

	result, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Enriched)
	require.Equal(t, 0, result.Failed)

	updated, ok, err := mgr.Articles.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "positive", updated.SentimentLabel)
	require.NotZero(t, updated.RelevanceTier)
	require.Len(t, updated.Entities, 1)
	require.Equal(t, "Bitcoin", updated.Entities[0].Name)

	mentions, err := mgr.EntityMentions.ListByArticle(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	require.Equal(t, "Bitcoin", mentions[0].Entity)
	require.Equal(t, "positive", mentions[0].SentimentLabel)
}

func TestRun_RuleRoutedArticleGetsNeutralSentiment(t *testing.T) {
	pipeline, mgr := newTestPipeline(t, "", nil)
	ctx := context.Background()

	require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
		ID:          "a2",
		Source:      "cryptoslate", // in skipLLMSources
		Title:       "Weekly market roundup",
		Body:        "Nothing particularly notable happened this week.",
		PublishedAt: time.Now().UTC(),
	}))

	result, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Enriched)

	updated, ok, err := mgr.Articles.GetByID(ctx, "a2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "neutral", updated.SentimentLabel)
	require.Zero(t, updated.SentimentScore)
}

func TestRun_BlacklistedSourceSkipped(t *testing.T) {
	pipeline, mgr := newTestPipeline(t, "", []string{"spamfeed"})
	ctx := context.Background()

	require.NoError(t, mgr.Articles.Upsert(ctx, persistence.Article{
		ID:          "a3",
		Source:      "SpamFeed",
		Title:       "Buy now",
		Body:        "Advertisement content",
		PublishedAt: time.Now().UTC(),
	}))

	result, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 0, result.Enriched)

	updated, ok, err := mgr.Articles.GetByID(ctx, "a3")
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, updated.RelevanceTier)
}

func TestSentimentLabelThresholds(t *testing.T) {
	require.Equal(t, "positive", sentimentLabel(0.4))
	require.Equal(t, "positive", sentimentLabel(0.9))
	require.Equal(t, "negative", sentimentLabel(-0.4))
	require.Equal(t, "negative", sentimentLabel(-0.9))
	require.Equal(t, "neutral", sentimentLabel(0.1))
	require.Equal(t, "neutral", sentimentLabel(-0.1))
}

func TestExtractKeywords_TopTenWithThemesAppended(t *testing.T) {
	text := "Bitcoin Bitcoin Bitcoin ETF ETF approval approval approval SEC regulation markets soar"
	kws := extractKeywords(text, []string{"Ethereum"})
	require.Contains(t, kws, "Bitcoin")
	require.Contains(t, kws, "Ethereum")
	require.LessOrEqual(t, len(kws), keywordCap)
}

func TestExtractKeywords_DropsShortAndDigitTokens(t *testing.T) {
	kws := extractKeywords("to be 123 at an xx ok", nil)
	require.NotContains(t, kws, "123")
	require.NotContains(t, kws, "to")
}

func TestExtractKeywords_PreservesAllCaps(t *testing.T) {
	kws := extractKeywords("SEC SEC SEC regulation regulation regulation filings", nil)
	require.Contains(t, kws, "SEC")
}
