package narrative

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

func TestComputeFingerprint_PicksMostFrequentNucleus(t *testing.T) {
	counts := map[string]int{"Bitcoin": 3, "Ethereum": 1}
	actors := []ActorSalience{{Actor: "SEC", Salience: 5}, {Actor: "Gensler", Salience: 3}}
	fp := ComputeFingerprint(counts, actors, []string{"approved ETF", "approved ETF", "sued exchange"}, 1, 2)

	require.Equal(t, "Bitcoin", fp.NucleusEntity)
	require.Equal(t, []string{"SEC"}, fp.TopActors)
	require.Equal(t, []string{"approved ETF", "sued exchange"}, fp.KeyActions)
}

func TestSimilarity_NucleusAndJaccardOnlyWithoutFocus(t *testing.T) {
	a := persistence.Fingerprint{NucleusEntity: "Bitcoin", KeyEntities: []string{"SEC", "Gensler"}}
	b := persistence.Fingerprint{NucleusEntity: "bitcoin", KeyEntities: []string{"SEC"}}

	sim := Similarity(a, b)
	require.InDelta(t, 0.6+0.4*0.5, sim, 1e-9)
}

func TestSimilarity_UsesFocusWeightingWhenBothSet(t *testing.T) {
	a := persistence.Fingerprint{NucleusEntity: "Bitcoin", NarrativeFocus: "etf", KeyEntities: []string{"SEC"}}
	b := persistence.Fingerprint{NucleusEntity: "Bitcoin", NarrativeFocus: "etf", KeyEntities: []string{"SEC"}}

	require.Equal(t, 1.0, Similarity(a, b))
}

func TestSimilarity_NoOverlapIsZero(t *testing.T) {
	a := persistence.Fingerprint{NucleusEntity: "Bitcoin", KeyEntities: []string{"SEC"}}
	b := persistence.Fingerprint{NucleusEntity: "Ethereum", KeyEntities: []string{"Vitalik"}}
	require.Equal(t, 0.0, Similarity(a, b))
}
