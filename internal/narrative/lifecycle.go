// Lifecycle implements the state ladder, grace period, momentum, recency,
// and resurrection bookkeeping of §4.L, grounded verbatim on
// original_source/services/narrative_service.py's determine_lifecycle_state,
// calculate_grace_period, calculate_momentum, and update_lifecycle_history.
package narrative

import (
	"math"
	"sort"
	"time"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// lifecycleRank orders states for "most advanced" tiebreaks during merges
// and consolidation. Dormant, echo and merged are not part of the
// advancement ladder; MoreAdvanced gives them the same rank as emerging.
var lifecycleRank = map[persistence.LifecycleState]int{
	persistence.LifecycleEmerging:    0,
	persistence.LifecycleRising:      1,
	persistence.LifecycleHot:         2,
	persistence.LifecycleCooling:     3,
	persistence.LifecycleReactivated: 4,
}

// MoreAdvanced reports whether a ranks strictly higher than b on the
// emerging<rising<hot<cooling<reactivated ladder.
func MoreAdvanced(a, b persistence.LifecycleState) bool {
	return lifecycleRank[a] > lifecycleRank[b]
}

// DetermineState classifies a narrative's lifecycle state from its activity
// pattern, evaluated in the deterministic rule order specified in §4.L.
func DetermineState(articleCount int, mentionVelocity float64, lastUpdated time.Time, previousState persistence.LifecycleState, now time.Time) persistence.LifecycleState {
	daysSinceUpdate := now.Sub(lastUpdated).Hours() / 24

	articlesLast24h := mentionVelocity * 1.0
	articlesLast48h := mentionVelocity * 2.0

	if (previousState == persistence.LifecycleEcho || previousState == persistence.LifecycleDormant) && articlesLast48h >= 4 {
		return persistence.LifecycleReactivated
	}

	if previousState == persistence.LifecycleDormant && articlesLast24h >= 1 && articlesLast24h <= 3 && articlesLast48h < 4 {
		return persistence.LifecycleEcho
	}

	if daysSinceUpdate >= 7 {
		return persistence.LifecycleDormant
	}
	if daysSinceUpdate >= 3 {
		return persistence.LifecycleCooling
	}

	if articleCount >= 7 || mentionVelocity >= 3.0 {
		return persistence.LifecycleHot
	}

	if mentionVelocity >= 1.5 && articleCount < 7 {
		return persistence.LifecycleRising
	}

	return persistence.LifecycleEmerging
}

// GraceDays computes the adaptive matching window: fast-burning narratives
// get a short grace period, slow-burn narratives a long one.
func GraceDays(mentionVelocity float64) int {
	v := mentionVelocity
	if v < 0.5 {
		v = 0.5
	}
	days := int(14 / v)
	if days < 7 {
		days = 7
	}
	if days > 30 {
		days = 30
	}
	return days
}

// Momentum classifies the short-term trend from sorted article publication
// timestamps, splitting at the midpoint and comparing per-half velocities.
func ComputeMomentum(sortedDates []time.Time) persistence.Momentum {
	if len(sortedDates) < 3 {
		return persistence.MomentumUnknown
	}

	midpoint := len(sortedDates) / 2
	older := sortedDates[:midpoint]
	recent := sortedDates[midpoint:]

	recentSpan := recent[len(recent)-1].Sub(recent[0]).Hours()
	olderSpan := older[len(older)-1].Sub(older[0]).Hours()
	if recentSpan < 1.0 {
		recentSpan = 1.0
	}
	if olderSpan < 1.0 {
		olderSpan = 1.0
	}

	recentVelocity := float64(len(recent)) / recentSpan
	olderVelocity := float64(len(older)) / olderSpan

	velocityChange := 1.0
	if olderVelocity > 0 {
		velocityChange = recentVelocity / olderVelocity
	}

	switch {
	case velocityChange >= 1.3:
		return persistence.MomentumGrowing
	case velocityChange <= 0.7:
		return persistence.MomentumDeclining
	default:
		return persistence.MomentumStable
	}
}

// RecencyScore computes exp(-hoursSinceNewest/24) from the newest member
// article's publication timestamp.
func RecencyScore(newest, now time.Time) float64 {
	hoursSince := now.Sub(newest).Hours()
	if hoursSince < 0 {
		hoursSince = 0
	}
	return math.Exp(-hoursSince / 24)
}

// SortTimestamps returns a sorted copy, ascending.
func SortTimestamps(ts []time.Time) []time.Time {
	sorted := make([]time.Time, len(ts))
	copy(sorted, ts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted
}

// ResurrectionFields are the bookkeeping fields set when a narrative
// transitions into the reactivated state.
type ResurrectionFields struct {
	ReawakeningCount     int
	ReawakenedFrom       *time.Time
	ResurrectionVelocity float64
}

// UpdateHistory appends a new lifecycle_history entry when the state has
// changed (or history is empty), and computes resurrection bookkeeping when
// the transition is into reactivated. Returns the updated history and, when
// applicable, resurrection fields to merge onto the narrative.
func UpdateHistory(history []persistence.LifecycleEvent, state persistence.LifecycleState, articleCount int, mentionVelocity float64, previousReawakeningCount int, now time.Time) ([]persistence.LifecycleEvent, *ResurrectionFields) {
	shouldAdd := len(history) == 0 || history[len(history)-1].State != state

	var resurrection *ResurrectionFields
	if shouldAdd && state == persistence.LifecycleReactivated {
		var dormantTimestamp *time.Time
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].State == persistence.LifecycleDormant || history[i].State == persistence.LifecycleEcho {
				ts := history[i].Timestamp
				dormantTimestamp = &ts
				break
			}
		}
		resurrection = &ResurrectionFields{
			ReawakeningCount:     previousReawakeningCount + 1,
			ReawakenedFrom:       dormantTimestamp,
			ResurrectionVelocity: mentionVelocity * 2.0,
		}
	}

	if shouldAdd {
		history = append(history, persistence.LifecycleEvent{
			State:           state,
			Timestamp:       now,
			ArticleCount:    articleCount,
			MentionVelocity: mentionVelocity,
		})
	}

	return history, resurrection
}
