package narrative

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

func TestClassifyThemes_MatchesKeywords(t *testing.T) {
	themes := ClassifyThemes("SEC sues exchange over unregistered securities", "A regulatory filing was announced")
	require.Contains(t, themes, "regulatory")
}

func TestClassifyThemes_CapsAtThree(t *testing.T) {
	themes := ClassifyThemes(
		"SEC regulation hack exploit NFT gaming partnership integration stablecoin depeg",
		"",
	)
	require.LessOrEqual(t, len(themes), 3)
}

func TestClassifyThemes_NoMatchIsEmpty(t *testing.T) {
	themes := ClassifyThemes("a quiet day in the markets", "")
	require.Empty(t, themes)
}

func TestLegacyLifecycleStage_MatureDecliningBecomesCooling(t *testing.T) {
	require.Equal(t, "cooling", LegacyLifecycleStage(10, 6.0, persistence.MomentumDeclining))
}

func TestLegacyLifecycleStage_HotGrowingBecomesHeating(t *testing.T) {
	require.Equal(t, "heating", LegacyLifecycleStage(3, 2.0, persistence.MomentumGrowing))
}

func TestLegacyLifecycleStage_EmergingGrowingBecomesRising(t *testing.T) {
	require.Equal(t, "rising", LegacyLifecycleStage(1, 0.2, persistence.MomentumGrowing))
}

func TestLegacyLifecycleStage_DefaultEmerging(t *testing.T) {
	require.Equal(t, "emerging", LegacyLifecycleStage(1, 0.2, persistence.MomentumUnknown))
}
