// Matcher implements adaptive-threshold narrative matching, the dedicated
// dormant-reactivation decision, and the periodic consolidation pass (§4.M),
// grounded verbatim on original_source/services/narrative_service.py's
// find_matching_narrative and on db/operations/narratives.py's upsert_narrative
// timestamp-repair rules.
package narrative

import (
	"sort"
	"strings"
	"time"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// activeOrDormantStates are eligible matching candidates per §4.M step 4.
var activeOrDormantStates = map[persistence.LifecycleState]struct{}{
	persistence.LifecycleEmerging:    {},
	persistence.LifecycleRising:      {},
	persistence.LifecycleHot:         {},
	persistence.LifecycleCooling:     {},
	persistence.LifecycleDormant:     {},
	persistence.LifecycleEcho:        {},
	persistence.LifecycleReactivated: {},
}

// Match is the outcome of attempting to find an existing narrative for a
// freshly formed cluster fingerprint.
type Match struct {
	Narrative  persistence.Narrative
	Similarity float64
}

// FindMatch implements the adaptive-threshold search of §4.M: among
// candidates whose last_updated falls within the velocity-derived grace
// period and whose lifecycle state is active-or-dormant, return the
// highest-similarity candidate meeting its own threshold (0.5 if updated
// within the last 48h, else 0.6).
func FindMatch(fingerprint persistence.Fingerprint, candidates []persistence.Narrative, clusterVelocity float64, now time.Time) (Match, bool) {
	graceDays := GraceDays(clusterVelocity)
	cutoff := now.AddDate(0, 0, -graceDays)
	recentCutoff := now.Add(-48 * time.Hour)

	var best Match
	found := false

	for _, c := range candidates {
		if c.LastUpdated.Before(cutoff) {
			continue
		}
		if _, ok := activeOrDormantStates[c.LifecycleState]; !ok {
			continue
		}

		similarity := Similarity(fingerprint, c.Fingerprint)

		threshold := 0.6
		if c.LastUpdated.After(recentCutoff) {
			threshold = 0.5
		}

		if similarity >= threshold && similarity > best.Similarity {
			best = Match{Narrative: c, Similarity: similarity}
			found = true
		}
	}

	return best, found
}

const reactivationSimilarityThreshold = 0.80
const reactivationWindowDays = 30

// FindReactivationCandidate implements the dedicated dormant-reactivation
// path of §4.M: among dormant narratives for the same nucleus_entity whose
// dormant_since falls within the last 30 days, pick the highest-similarity
// candidate meeting the 0.80 threshold.
func FindReactivationCandidate(fingerprint persistence.Fingerprint, dormantCandidates []persistence.Narrative, now time.Time) (Match, bool) {
	cutoff := now.AddDate(0, 0, -reactivationWindowDays)

	var best Match
	found := false

	for _, c := range dormantCandidates {
		if c.NucleusEntity != fingerprint.NucleusEntity {
			continue
		}
		if c.DormantSince == nil || !c.DormantSince.After(cutoff) {
			continue
		}

		similarity := Similarity(fingerprint, c.Fingerprint)
		if similarity >= reactivationSimilarityThreshold && similarity > best.Similarity {
			best = Match{Narrative: c, Similarity: similarity}
			found = true
		}
	}

	return best, found
}

// IsBlacklistedNucleus reports whether nucleus (matched case-insensitively)
// is in the configured nucleus-entity blacklist (§4.M step 2, e.g.
// promotional source names masquerading as a nucleus entity). A blacklisted
// cluster is silently skipped rather than matched or used to seed a new
// narrative (§7).
func IsBlacklistedNucleus(nucleus string, blacklist map[string]struct{}) bool {
	_, blocked := blacklist[strings.ToLower(nucleus)]
	return blocked
}

// RepairTimestamps enforces first_seen <= last_updated with the two repair
// rules from §4.M: a last_updated earlier than first_seen is pulled forward
// to first_seen, and a first_seen in the future (clock corruption) resets
// to now.
func RepairTimestamps(firstSeen, lastUpdated, now time.Time) (repairedFirstSeen, repairedLastUpdated time.Time) {
	if firstSeen.After(now) {
		firstSeen = now
	}
	if lastUpdated.Before(firstSeen) {
		lastUpdated = firstSeen
	}
	return firstSeen, lastUpdated
}

// Reactivate applies the write-set specified for a reactivation match:
// union article ids, recompute article count, flip lifecycle state, append
// history, clear dormancy, and set resurrection bookkeeping. No sentiment is
// recomputed: Narrative carries no sentiment field.
func Reactivate(existing persistence.Narrative, newArticleIDs []string, mentionVelocity float64, now time.Time) persistence.Narrative {
	existing.ArticleIDs = unionDedup(existing.ArticleIDs, newArticleIDs)
	existing.ArticleCount = len(existing.ArticleIDs)
	existing.LifecycleState = persistence.LifecycleReactivated
	existing.MentionVelocity = mentionVelocity

	history, resurrection := UpdateHistory(existing.LifecycleHistory, persistence.LifecycleReactivated, existing.ArticleCount, mentionVelocity, existing.ReawakeningCount, now)
	existing.LifecycleHistory = history
	if resurrection != nil {
		existing.ReawakeningCount = resurrection.ReawakeningCount
		existing.ReawakenedFrom = resurrection.ReawakenedFrom
		existing.ResurrectionVelocity = resurrection.ResurrectionVelocity
	}
	existing.ReactivatedCount++
	existing.DormantSince = nil

	_, lastUpdated := RepairTimestamps(existing.FirstSeen, now, now)
	existing.LastUpdated = lastUpdated

	return existing
}

// MergeNonReactivation applies the write-set for merging a cluster into an
// existing non-dormant match: union article ids, recompute article count,
// velocity and lifecycle, mark the summary stale, and repair timestamps.
func MergeNonReactivation(existing persistence.Narrative, newArticleIDs []string, mentionVelocity float64, now time.Time) persistence.Narrative {
	before := len(existing.ArticleIDs)
	existing.ArticleIDs = unionDedup(existing.ArticleIDs, newArticleIDs)
	existing.ArticleCount = len(existing.ArticleIDs)
	if len(existing.ArticleIDs) > before {
		existing.NeedsSummaryUpdate = true
	}
	existing.MentionVelocity = mentionVelocity

	newState := DetermineState(existing.ArticleCount, mentionVelocity, existing.LastUpdated, existing.LifecycleState, now)
	existing.LifecycleState = newState

	history, _ := UpdateHistory(existing.LifecycleHistory, newState, existing.ArticleCount, mentionVelocity, existing.ReawakeningCount, now)
	existing.LifecycleHistory = history

	firstSeen, lastUpdated := RepairTimestamps(existing.FirstSeen, now, now)
	existing.FirstSeen = firstSeen
	existing.LastUpdated = lastUpdated

	return existing
}

func unionDedup(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

const consolidationSimilarityThreshold = 0.9

// ConsolidationPair describes a merge decision found during consolidation.
type ConsolidationPair struct {
	Survivor persistence.Narrative
	Merged   persistence.Narrative
}

// FindConsolidationPairs compares every pair of active narratives sharing a
// nucleus_entity and returns (survivor, merged) pairs for those whose
// similarity is >= 0.9 and which both carry a narrative_focus. Narratives
// already chosen as a "merged" party in an earlier pair are excluded from
// further pairing in the same pass.
func FindConsolidationPairs(narratives []persistence.Narrative) []ConsolidationPair {
	byNucleus := make(map[string][]persistence.Narrative)
	for _, n := range narratives {
		byNucleus[n.NucleusEntity] = append(byNucleus[n.NucleusEntity], n)
	}

	merged := make(map[string]struct{})
	var pairs []ConsolidationPair

	for _, group := range byNucleus {
		sort.SliceStable(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		for i := 0; i < len(group); i++ {
			a := group[i]
			if _, done := merged[a.ID]; done {
				continue
			}
			if a.Fingerprint.NarrativeFocus == "" {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				b := group[j]
				if _, done := merged[b.ID]; done {
					continue
				}
				if b.Fingerprint.NarrativeFocus == "" {
					continue
				}
				if Similarity(a.Fingerprint, b.Fingerprint) < consolidationSimilarityThreshold {
					continue
				}

				survivor, loser := a, b
				if loser.ArticleCount > survivor.ArticleCount ||
					(loser.ArticleCount == survivor.ArticleCount && MoreAdvanced(loser.LifecycleState, survivor.LifecycleState)) {
					survivor, loser = loser, survivor
				}

				pairs = append(pairs, ConsolidationPair{Survivor: survivor, Merged: loser})
				merged[loser.ID] = struct{}{}
			}
		}
	}

	return pairs
}

// ApplyConsolidation merges loser into survivor per §4.M: union article ids,
// per-UTC-date timeline merge, and survivor keeps the most advanced
// lifecycle state. No sentiment is merged: Narrative carries no sentiment
// field. Returns the updated
// survivor and the loser marked as merged (lifecycle_state=merged,
// merged_into=survivor.ID).
func ApplyConsolidation(survivor, loser persistence.Narrative) (persistence.Narrative, persistence.Narrative) {
	survivor.ArticleIDs = unionDedup(survivor.ArticleIDs, loser.ArticleIDs)
	survivor.ArticleCount = len(survivor.ArticleIDs)

	if MoreAdvanced(loser.LifecycleState, survivor.LifecycleState) {
		survivor.LifecycleState = loser.LifecycleState
	}

	survivor.TimelineData = mergeTimelines(survivor.TimelineData, loser.TimelineData)

	loser.LifecycleState = persistence.LifecycleMerged
	loser.MergedInto = survivor.ID

	return survivor, loser
}

func mergeTimelines(a, b []persistence.TimelineSnapshot) []persistence.TimelineSnapshot {
	byDate := make(map[string]persistence.TimelineSnapshot)
	order := make([]string, 0, len(a)+len(b))

	merge := func(snapshots []persistence.TimelineSnapshot) {
		for _, s := range snapshots {
			existing, ok := byDate[s.Date]
			if !ok {
				byDate[s.Date] = s
				order = append(order, s.Date)
				continue
			}
			existing.ArticleCount += s.ArticleCount
			existing.Velocity += s.Velocity
			existing.TopEntities = unionDedup(existing.TopEntities, s.TopEntities)
			byDate[s.Date] = existing
		}
	}
	merge(a)
	merge(b)

	sort.Strings(order)
	out := make([]persistence.TimelineSnapshot, 0, len(order))
	for _, d := range order {
		out = append(out, byDate[d])
	}
	return out
}
