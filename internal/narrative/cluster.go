// Cluster implements the salience-weighted clustering algorithm (§4.J),
// grounded on original_source/services/narrative_themes.py's
// cluster_by_narrative_salience, with the core-actor salience threshold
// raised from the source's literal 4 to the specification's authoritative
// 4.5 (see SPEC_FULL.md Part VI item 1).
package narrative

// CoreActorSalience is the minimum salience (1-5) for an actor to count as
// "core" rather than tangential when computing cluster link strength.
const CoreActorSalience = 4.5

// DefaultMinClusterSize drops any cluster smaller than this after assignment.
const DefaultMinClusterSize = 3

// ClusterArticle is the subset of article fields the clusterer consumes.
type ClusterArticle struct {
	ArticleID      string
	NucleusEntity  string
	ActorSalience  map[string]float64
	Tensions       []string
}

// Cluster accumulates the union of actors, core actors, and tensions across
// its member articles for subsequent link-strength comparisons.
type Cluster struct {
	ArticleIDs []string
	Nucleus    string
	Actors     map[string]struct{}
	CoreActors map[string]struct{}
	Tensions   map[string]struct{}
}

func newCluster(a ClusterArticle) *Cluster {
	c := &Cluster{
		ArticleIDs: []string{a.ArticleID},
		Nucleus:    a.NucleusEntity,
		Actors:     make(map[string]struct{}),
		CoreActors: make(map[string]struct{}),
		Tensions:   make(map[string]struct{}),
	}
	c.absorb(a)
	return c
}

func (c *Cluster) absorb(a ClusterArticle) {
	for actor, salience := range a.ActorSalience {
		c.Actors[actor] = struct{}{}
		if salience >= CoreActorSalience {
			c.CoreActors[actor] = struct{}{}
		}
	}
	for _, t := range a.Tensions {
		c.Tensions[t] = struct{}{}
	}
}

func coreActorsOf(a ClusterArticle) map[string]struct{} {
	core := make(map[string]struct{})
	for actor, salience := range a.ActorSalience {
		if salience >= CoreActorSalience {
			core[actor] = struct{}{}
		}
	}
	return core
}

// linkStrength scores how strongly article a belongs to cluster c.
func linkStrength(a ClusterArticle, c *Cluster) float64 {
	var strength float64

	if a.NucleusEntity != "" && a.NucleusEntity == c.Nucleus {
		strength += 1.0
	}

	sharedCore := 0
	for actor := range coreActorsOf(a) {
		if _, ok := c.CoreActors[actor]; ok {
			sharedCore++
		}
	}
	switch {
	case sharedCore >= 2:
		strength += 0.7
	case sharedCore >= 1:
		strength += 0.4
	}

	sharedTensions := 0
	for _, t := range a.Tensions {
		if _, ok := c.Tensions[t]; ok {
			sharedTensions++
		}
	}
	if sharedTensions >= 1 {
		strength += 0.3
	}

	return strength
}

const linkStrengthThreshold = 0.8

// ClusterBySalience assigns articles, in arrival order, to the best existing
// cluster whose link strength is >= 0.8, opening a new singleton cluster
// otherwise. Clusters smaller than minClusterSize are dropped at the end.
func ClusterBySalience(articles []ClusterArticle, minClusterSize int) []*Cluster {
	if minClusterSize <= 0 {
		minClusterSize = DefaultMinClusterSize
	}

	var clusters []*Cluster

	for _, a := range articles {
		var best *Cluster
		bestStrength := 0.0

		for _, c := range clusters {
			s := linkStrength(a, c)
			if s >= linkStrengthThreshold && s > bestStrength {
				best = c
				bestStrength = s
			}
		}

		if best != nil {
			best.ArticleIDs = append(best.ArticleIDs, a.ArticleID)
			best.absorb(a)
		} else {
			clusters = append(clusters, newCluster(a))
		}
	}

	var kept []*Cluster
	for _, c := range clusters {
		if len(c.ArticleIDs) >= minClusterSize {
			kept = append(kept, c)
		}
	}
	return kept
}

// ActorsSlice returns a cluster's actor set as a slice (unordered).
func (c *Cluster) ActorsSlice() []string {
	out := make([]string, 0, len(c.Actors))
	for a := range c.Actors {
		out = append(out, a)
	}
	return out
}
