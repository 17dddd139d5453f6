// Package narrative clusters enriched articles into coherent, trackable
// stories and carries each one through a lifecycle from first emergence to
// eventual dormancy or reactivation.
//
// This file has no grounding source in the retrieved Python pack — the
// upstream functions it would port from (compute_narrative_fingerprint,
// calculate_fingerprint_similarity) are referenced by narrative_service.py's
// imports but are absent from the retrieved corpus — so it is built
// directly from the fingerprint/similarity formulas in the specification.
package narrative

import (
	"sort"
	"strings"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// ActorSalience pairs an actor name with its 1-5 salience score.
type ActorSalience struct {
	Actor    string
	Salience float64
}

// ComputeFingerprint builds a deterministic fingerprint from a cluster's
// aggregated article fields: the most frequent nucleus entity, the top-N
// salience-weighted actors, and deduplicated top-K actions.
func ComputeFingerprint(nucleusCounts map[string]int, actors []ActorSalience, actions []string, topActors, topActions int) persistence.Fingerprint {
	nucleus := mostFrequent(nucleusCounts)

	sortedActors := make([]ActorSalience, len(actors))
	copy(sortedActors, actors)
	sort.SliceStable(sortedActors, func(i, j int) bool {
		return sortedActors[i].Salience > sortedActors[j].Salience
	})

	seenActors := make(map[string]struct{})
	var top []string
	for _, a := range sortedActors {
		if _, ok := seenActors[a.Actor]; ok {
			continue
		}
		seenActors[a.Actor] = struct{}{}
		top = append(top, a.Actor)
		if len(top) >= topActors {
			break
		}
	}

	seenActions := make(map[string]struct{})
	var dedupedActions []string
	for _, act := range actions {
		if _, ok := seenActions[act]; ok {
			continue
		}
		seenActions[act] = struct{}{}
		dedupedActions = append(dedupedActions, act)
		if len(dedupedActions) >= topActions {
			break
		}
	}

	return persistence.Fingerprint{
		NucleusEntity: nucleus,
		TopActors:     top,
		KeyActions:    dedupedActions,
		KeyEntities:   top,
	}
}

func mostFrequent(counts map[string]int) string {
	best := ""
	bestCount := -1
	for k, c := range counts {
		if c > bestCount || (c == bestCount && k < best) {
			best = k
			bestCount = c
		}
	}
	return best
}

// Similarity computes the weighted similarity between two fingerprints,
// in [0,1]. When either fingerprint has no narrative_focus, the focus
// weight redistributes onto nucleus (0.6) and Jaccard (0.4).
func Similarity(a, b persistence.Fingerprint) float64 {
	nucleusMatch := 0.0
	if a.NucleusEntity != "" && strings.EqualFold(a.NucleusEntity, b.NucleusEntity) {
		nucleusMatch = 1.0
	}

	jaccard := jaccardSimilarity(entitySet(a), entitySet(b))

	if a.NarrativeFocus == "" || b.NarrativeFocus == "" {
		return 0.6*nucleusMatch + 0.4*jaccard
	}

	focusMatch := 0.0
	if strings.EqualFold(a.NarrativeFocus, b.NarrativeFocus) {
		focusMatch = 1.0
	}

	return 0.5*focusMatch + 0.3*nucleusMatch + 0.2*jaccard
}

func entitySet(f persistence.Fingerprint) []string {
	if len(f.KeyEntities) > 0 {
		return f.KeyEntities
	}
	return f.TopActors
}

func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

// JaccardStrings exposes the Jaccard coefficient for use outside fingerprint
// comparison (e.g. the shallow-cluster merger's actor-set comparison).
func JaccardStrings(a, b []string) float64 {
	return jaccardSimilarity(a, b)
}
