package signals

import (
	"context"
	"testing"
	"time"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/databases"
)

func TestComputeVelocityFallback(t *testing.T) {
	if v := ComputeVelocity(3, 0, 24); v != 3.0 {
		t.Errorf("expected fallback velocity 3.0, got %f", v)
	}
}

func TestComputeVelocityRatio(t *testing.T) {
	// 24 mentions over 24h = 1/hr expected; 2 in the last hour -> velocity 2.0
	if v := ComputeVelocity(2, 24, 24); v != 2.0 {
		t.Errorf("expected velocity 2.0, got %f", v)
	}
}

func TestSourceCountOnlyPrimary(t *testing.T) {
	mentions := []persistence.EntityMention{
		{Source: "a", IsPrimary: true},
		{Source: "b", IsPrimary: true},
		{Source: "c", IsPrimary: false},
		{Source: "a", IsPrimary: true},
	}
	if n := SourceCount(mentions); n != 2 {
		t.Errorf("expected 2 distinct primary sources, got %d", n)
	}
}

func TestSentimentStatsFor(t *testing.T) {
	mentions := []persistence.EntityMention{
		{IsPrimary: true, SentimentLabel: "positive"},
		{IsPrimary: true, SentimentLabel: "negative"},
		{IsPrimary: false, SentimentLabel: "positive"},
	}
	stats := SentimentStatsFor(mentions)
	if stats.Avg != 0 {
		t.Errorf("expected avg 0 (one positive, one negative), got %f", stats.Avg)
	}
	if stats.Max != 1.0 || stats.Min != -1.0 {
		t.Errorf("expected min -1 max 1, got min=%f max=%f", stats.Min, stats.Max)
	}
}

func TestScoreFromComponentsClampsToTen(t *testing.T) {
	s := ScoreFromComponents(100, 100, 1.0)
	if s != 10.0 {
		t.Errorf("expected clamp to 10.0, got %f", s)
	}
}

func TestScoreFromComponentsZero(t *testing.T) {
	if s := ScoreFromComponents(0, 0, 0); s != 0 {
		t.Errorf("expected 0, got %f", s)
	}
}

func TestRecencyScoreNow(t *testing.T) {
	now := time.Now().UTC()
	mentions := []persistence.EntityMention{{Timestamp: now}}
	if r := recencyScore(mentions, now); r < 0.99 {
		t.Errorf("expected recency near 1.0 for now, got %f", r)
	}
}

func TestTrendingFiltersStaleScores(t *testing.T) {
	mgr := databases.NewMemoryManager()
	scorer := NewScorer(mgr.EntityMentions, mgr.SignalScores)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := mgr.EntityMentions.InsertBatch(ctx, []persistence.EntityMention{
		{ID: "m1", Entity: "Bitcoin", ArticleID: "a1", IsPrimary: true, Source: "coindesk", Timestamp: now},
	}); err != nil {
		t.Fatalf("seed mentions: %v", err)
	}

	fresh := persistence.SignalScore{
		Entity:  "Bitcoin",
		Windows: map[string]persistence.WindowStats{"24h": {Score: 8.0}},
	}
	stale := persistence.SignalScore{
		Entity:  "Dogecoin", // no EntityMention seeded for this entity
		Windows: map[string]persistence.WindowStats{"24h": {Score: 9.0}},
	}
	if err := mgr.SignalScores.Upsert(ctx, fresh); err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}
	if err := mgr.SignalScores.Upsert(ctx, stale); err != nil {
		t.Fatalf("upsert stale: %v", err)
	}

	trending, err := scorer.Trending(ctx, "24h", 10, 1.0)
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if len(trending) != 1 || trending[0].Entity != "Bitcoin" {
		t.Errorf("expected only Bitcoin to survive staleness filtering, got %+v", trending)
	}
}

func TestTrendingRespectsThreshold(t *testing.T) {
	mgr := databases.NewMemoryManager()
	scorer := NewScorer(mgr.EntityMentions, mgr.SignalScores)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := mgr.EntityMentions.InsertBatch(ctx, []persistence.EntityMention{
		{ID: "m1", Entity: "Bitcoin", ArticleID: "a1", IsPrimary: true, Source: "coindesk", Timestamp: now},
	}); err != nil {
		t.Fatalf("seed mentions: %v", err)
	}

	low := persistence.SignalScore{
		Entity:  "Bitcoin",
		Windows: map[string]persistence.WindowStats{"24h": {Score: 0.5}},
	}
	if err := mgr.SignalScores.Upsert(ctx, low); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	trending, err := scorer.Trending(ctx, "24h", 10, 5.0)
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	if len(trending) != 0 {
		t.Errorf("expected no entities above threshold, got %+v", trending)
	}
}

func TestScoreEntitySourceCountAndSentimentAreAllTime(t *testing.T) {
	mgr := databases.NewMemoryManager()
	scorer := NewScorer(mgr.EntityMentions, mgr.SignalScores)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := mgr.EntityMentions.InsertBatch(ctx, []persistence.EntityMention{
		{ID: "m1", Entity: "Bitcoin", ArticleID: "a1", IsPrimary: true, Source: "coindesk", SentimentLabel: "positive", Timestamp: now},
		// Outside every window (>30d old) but must still count toward source
		// diversity and sentiment, which are windowless per §4.H.
		{ID: "m2", Entity: "Bitcoin", ArticleID: "a2", IsPrimary: true, Source: "theblock", SentimentLabel: "negative", Timestamp: now.Add(-60 * 24 * time.Hour)},
	}); err != nil {
		t.Fatalf("seed mentions: %v", err)
	}

	score, err := scorer.ScoreEntity(ctx, "Bitcoin", "crypto")
	if err != nil {
		t.Fatalf("ScoreEntity: %v", err)
	}
	if score.SourceCount != 2 {
		t.Errorf("expected all-time source count of 2, got %d", score.SourceCount)
	}
	if score.Sentiment.Avg != 0 {
		t.Errorf("expected all-time sentiment avg 0 (one positive, one negative), got %f", score.Sentiment.Avg)
	}
	for label, ws := range score.Windows {
		if label == "30d" {
			continue
		}
		if ws.Mentions != 1 {
			t.Errorf("window %s: expected only the recent mention counted, got %d", label, ws.Mentions)
		}
	}
}

func TestDeleteStaleBeforeRemovesScoreWithNoMentions(t *testing.T) {
	mgr := databases.NewMemoryManager()
	scorer := NewScorer(mgr.EntityMentions, mgr.SignalScores)
	ctx := context.Background()

	if err := mgr.EntityMentions.InsertBatch(ctx, []persistence.EntityMention{
		{ID: "m1", Entity: "Dogecoin", ArticleID: "a1", IsPrimary: true, Source: "coindesk", Timestamp: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("seed mentions: %v", err)
	}
	if err := mgr.SignalScores.Upsert(ctx, persistence.SignalScore{
		Entity:  "Dogecoin",
		Windows: map[string]persistence.WindowStats{"24h": {Score: 9.0, Mentions: 1}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := mgr.EntityMentions.DeleteByArticle(ctx, "a1"); err != nil {
		t.Fatalf("delete mentions: %v", err)
	}

	n, err := scorer.DeleteStaleBefore(ctx, time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("DeleteStaleBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 stale score removed, got %d", n)
	}

	trending, err := scorer.Trending(ctx, "24h", 10, 0)
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	for _, sc := range trending {
		if sc.Entity == "Dogecoin" {
			t.Errorf("Dogecoin should never appear in trending after staleness cleanup")
		}
	}
}
