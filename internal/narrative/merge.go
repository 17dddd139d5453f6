// Merge implements the shallow-cluster merger (§4.K): single-article,
// low-actor-count clusters (or ubiquitous-entity clusters with too few
// articles) get folded into the best matching substantial cluster rather
// than surviving as their own narrative. Grounded on
// original_source/services/narrative_themes.py's ubiquitous-entity handling,
// with the ubiquitous set expanded per SPEC_FULL.md Part VI item 2.
package narrative

// UbiquitousEntities are nucleus entities common enough that a cluster built
// around them needs more than the usual bar of evidence to stand alone.
var UbiquitousEntities = map[string]struct{}{
	"Bitcoin":        {},
	"Ethereum":       {},
	"crypto":         {},
	"blockchain":     {},
	"cryptocurrency": {},
}

// IsShallow reports whether a cluster is shallow: either a single article
// with fewer than 3 actors, or a cluster on a ubiquitous nucleus with fewer
// than 3 articles.
func IsShallow(c *Cluster) bool {
	if len(c.ArticleIDs) == 1 && len(c.Actors) < 3 {
		return true
	}
	if _, ubiquitous := UbiquitousEntities[c.Nucleus]; ubiquitous && len(c.ArticleIDs) < 3 {
		return true
	}
	return false
}

const shallowMergeJaccardThreshold = 0.5

// MergeShallow folds every shallow cluster into the best-matching
// substantial cluster whose actor-set Jaccard similarity is strictly
// greater than 0.5. Shallow clusters with no qualifying target remain
// standalone. Returns the surviving cluster list.
func MergeShallow(clusters []*Cluster) []*Cluster {
	var shallow, substantial []*Cluster
	for _, c := range clusters {
		if IsShallow(c) {
			shallow = append(shallow, c)
		} else {
			substantial = append(substantial, c)
		}
	}

	var unmerged []*Cluster
	for _, s := range shallow {
		var best *Cluster
		bestScore := shallowMergeJaccardThreshold
		for _, sub := range substantial {
			score := JaccardStrings(s.ActorsSlice(), sub.ActorsSlice())
			if score > bestScore {
				best = sub
				bestScore = score
			}
		}
		if best != nil {
			mergeInto(best, s)
		} else {
			unmerged = append(unmerged, s)
		}
	}

	return append(substantial, unmerged...)
}

func mergeInto(target, source *Cluster) {
	seen := make(map[string]struct{}, len(target.ArticleIDs))
	for _, id := range target.ArticleIDs {
		seen[id] = struct{}{}
	}
	for _, id := range source.ArticleIDs {
		if _, ok := seen[id]; !ok {
			target.ArticleIDs = append(target.ArticleIDs, id)
			seen[id] = struct{}{}
		}
	}
	for a := range source.Actors {
		target.Actors[a] = struct{}{}
	}
	for a := range source.CoreActors {
		target.CoreActors[a] = struct{}{}
	}
	for t := range source.Tensions {
		target.Tensions[t] = struct{}{}
	}
}
