package narrative

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsShallow_SingleArticleFewActors(t *testing.T) {
	c := newCluster(ClusterArticle{ArticleID: "a1", NucleusEntity: "Chainlink", ActorSalience: map[string]float64{"x": 1}})
	require.True(t, IsShallow(c))
}

func TestIsShallow_UbiquitousNucleusNeedsMoreArticles(t *testing.T) {
	c := newCluster(ClusterArticle{ArticleID: "a1", NucleusEntity: "Bitcoin"})
	c.absorb(ClusterArticle{ArticleID: "a2", NucleusEntity: "Bitcoin"})
	c.ArticleIDs = append(c.ArticleIDs, "a2")
	require.True(t, IsShallow(c))
}

func TestIsShallow_SubstantialClusterIsNotShallow(t *testing.T) {
	c := newCluster(ClusterArticle{ArticleID: "a1", NucleusEntity: "Chainlink", ActorSalience: map[string]float64{"x": 1, "y": 1, "z": 1}})
	require.False(t, IsShallow(c))
}

func TestMergeShallow_FoldsIntoBestJaccardMatch(t *testing.T) {
	substantial := &Cluster{
		ArticleIDs: []string{"s1", "s2", "s3"},
		Nucleus:    "Bitcoin",
		Actors:     map[string]struct{}{"SEC": {}, "Gensler": {}},
		CoreActors: map[string]struct{}{},
		Tensions:   map[string]struct{}{},
	}
	shallow := &Cluster{
		ArticleIDs: []string{"sh1"},
		Nucleus:    "Bitcoin",
		Actors:     map[string]struct{}{"SEC": {}, "Gensler": {}},
		CoreActors: map[string]struct{}{},
		Tensions:   map[string]struct{}{},
	}

	merged := MergeShallow([]*Cluster{substantial, shallow})
	require.Len(t, merged, 1)
	require.ElementsMatch(t, []string{"s1", "s2", "s3", "sh1"}, merged[0].ArticleIDs)
}

func TestMergeShallow_LeavesUnmatchedShallowStandalone(t *testing.T) {
	substantial := &Cluster{
		ArticleIDs: []string{"s1", "s2", "s3"},
		Nucleus:    "Bitcoin",
		Actors:     map[string]struct{}{"SEC": {}, "Gensler": {}, "Powell": {}},
		CoreActors: map[string]struct{}{},
		Tensions:   map[string]struct{}{},
	}
	shallow := &Cluster{
		ArticleIDs: []string{"sh1"},
		Nucleus:    "Dogecoin",
		Actors:     map[string]struct{}{"Musk": {}},
		CoreActors: map[string]struct{}{},
		Tensions:   map[string]struct{}{},
	}

	merged := MergeShallow([]*Cluster{substantial, shallow})
	require.Len(t, merged, 2)
}
