package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

func TestEvaluateVelocitySpike(t *testing.T) {
	now := time.Now().UTC()
	score := persistence.SignalScore{
		Entity: "Bitcoin",
		Windows: map[string]persistence.WindowStats{
			"24h": {Velocity: 4.0},
		},
	}
	got := evaluate(score, now)
	require.Len(t, got, 1)
	require.Equal(t, "warning", got[0].Severity)
	require.Equal(t, "velocity_spike", got[0].Reason)
}

func TestEvaluateCriticalVelocity(t *testing.T) {
	now := time.Now().UTC()
	score := persistence.SignalScore{
		Entity: "Bitcoin",
		Windows: map[string]persistence.WindowStats{
			"24h": {Velocity: 7.0},
		},
	}
	got := evaluate(score, now)
	require.Len(t, got, 1)
	require.Equal(t, "critical", got[0].Severity)
}

func TestEvaluateSentimentExtremeRequiresConsensus(t *testing.T) {
	now := time.Now().UTC()
	divergent := persistence.SignalScore{
		Entity:    "Ethereum",
		Sentiment: persistence.SentimentStats{Avg: 0.9, Min: -1, Max: 1},
	}
	require.Empty(t, evaluate(divergent, now))

	consensus := persistence.SignalScore{
		Entity:    "Ethereum",
		Sentiment: persistence.SentimentStats{Avg: 0.9, Min: 0.8, Max: 1.0},
	}
	got := evaluate(consensus, now)
	require.Len(t, got, 1)
	require.Equal(t, "sentiment_extreme", got[0].Reason)
}

func TestIndexRecentOpenSkipsResolvedAndStale(t *testing.T) {
	now := time.Now().UTC()
	alerts := []persistence.EntityAlert{
		{Entity: "A", Reason: "velocity_spike", CreatedAt: now.Add(-time.Hour), Resolved: false},
		{Entity: "B", Reason: "velocity_spike", CreatedAt: now.Add(-time.Hour), Resolved: true},
		{Entity: "C", Reason: "velocity_spike", CreatedAt: now.Add(-48 * time.Hour), Resolved: false},
	}
	idx := indexRecentOpen(alerts, now)
	require.True(t, idx["A|velocity_spike"])
	require.False(t, idx["B|velocity_spike"])
	require.False(t, idx["C|velocity_spike"])
}
