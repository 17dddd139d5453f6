package narrative

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterBySalience_GroupsBySharedNucleus(t *testing.T) {
	articles := []ClusterArticle{
		{ArticleID: "a1", NucleusEntity: "Bitcoin", ActorSalience: map[string]float64{"SEC": 5, "Gensler": 5}},
		{ArticleID: "a2", NucleusEntity: "Bitcoin", ActorSalience: map[string]float64{"SEC": 5, "Gensler": 5}},
		{ArticleID: "a3", NucleusEntity: "Bitcoin", ActorSalience: map[string]float64{"SEC": 5, "Gensler": 5}},
	}

	clusters := ClusterBySalience(articles, 2)
	require.Len(t, clusters, 1)
	require.ElementsMatch(t, []string{"a1", "a2", "a3"}, clusters[0].ArticleIDs)
}

func TestClusterBySalience_DropsBelowMinSize(t *testing.T) {
	articles := []ClusterArticle{
		{ArticleID: "a1", NucleusEntity: "Dogecoin"},
	}
	clusters := ClusterBySalience(articles, 2)
	require.Empty(t, clusters)
}

func TestClusterBySalience_SeparatesUnrelatedNuclei(t *testing.T) {
	articles := []ClusterArticle{
		{ArticleID: "a1", NucleusEntity: "Bitcoin", ActorSalience: map[string]float64{"SEC": 5}},
		{ArticleID: "a2", NucleusEntity: "Bitcoin", ActorSalience: map[string]float64{"SEC": 5}},
		{ArticleID: "b1", NucleusEntity: "Ethereum", ActorSalience: map[string]float64{"Vitalik": 5}},
		{ArticleID: "b2", NucleusEntity: "Ethereum", ActorSalience: map[string]float64{"Vitalik": 5}},
	}
	clusters := ClusterBySalience(articles, 2)
	require.Len(t, clusters, 2)
}

func TestLinkStrength_CoreActorOverlapOnly(t *testing.T) {
	c := newCluster(ClusterArticle{ArticleID: "a1", NucleusEntity: "", ActorSalience: map[string]float64{"SEC": 5, "Gensler": 5}})
	a := ClusterArticle{ArticleID: "a2", NucleusEntity: "different", ActorSalience: map[string]float64{"SEC": 5, "Gensler": 5}}
	require.InDelta(t, 0.7, linkStrength(a, c), 1e-9)
}
