// Detector drives one end-to-end narrative-detection cycle (§4.N),
// grounded on original_source/services/narrative_service.py's
// detect_narratives control flow: backfill narrative elements, cluster,
// merge shallow clusters, match-or-create, recompute lifecycle fields,
// upsert, and snapshot the timeline.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/entities"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/events"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/gateway"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// Config tunes one Detector's thresholds, mirroring config.NarrativeConfig.
type Config struct {
	LookbackHours    int
	MinClusterSize   int
	BackfillLimit    int
	NucleusBlacklist []string
}

// Detector owns the stores and gateway a cycle needs.
type Detector struct {
	articles         persistence.ArticleStore
	narratives       persistence.NarrativeStore
	gw               *gateway.Gateway
	cfg              Config
	events           *events.Publisher
	nucleusBlacklist map[string]struct{}
}

// WithEventPublisher attaches a lifecycle-transition publisher, returning
// the same Detector for chaining at construction time. Nil-safe: a nil
// publisher (the default) simply skips publishing.
func (d *Detector) WithEventPublisher(p *events.Publisher) *Detector {
	d.events = p
	return d
}

// New builds a Detector. Zero-valued Config fields fall back to the
// specification's defaults (48h lookback, 3-article minimum cluster).
func New(articles persistence.ArticleStore, narratives persistence.NarrativeStore, gw *gateway.Gateway, cfg Config) *Detector {
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = 48
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = DefaultMinClusterSize
	}
	if cfg.BackfillLimit <= 0 {
		cfg.BackfillLimit = 100
	}
	bl := make(map[string]struct{}, len(cfg.NucleusBlacklist))
	for _, n := range cfg.NucleusBlacklist {
		bl[strings.ToLower(n)] = struct{}{}
	}
	return &Detector{articles: articles, narratives: narratives, gw: gw, cfg: cfg, nucleusBlacklist: bl}
}

// Result summarizes one detection cycle.
type Result struct {
	Backfilled int
	Clusters   int
	Matched    int
	Created    int
	Failed     int
}

// Run executes one full cycle per §4.N. A single cluster's failure (a store
// read or upsert error) is counted in Failed and never aborts the rest of the
// cycle. A capable-tier summarization error is not a failure: the new
// narrative takes its nucleus entity as its title.
func (d *Detector) Run(ctx context.Context) (Result, error) {
	var result Result

	backfilled, err := d.backfill(ctx)
	if err != nil {
		return result, err
	}
	result.Backfilled = backfilled

	since := time.Now().UTC().Add(-time.Duration(d.cfg.LookbackHours) * time.Hour)
	eligible, err := d.articles.ListSince(ctx, since, 0)
	if err != nil {
		return result, err
	}

	byID := make(map[string]persistence.Article, len(eligible))
	clusterInputs := make([]ClusterArticle, 0, len(eligible))
	for _, a := range eligible {
		if a.NarrativeSummary == nil {
			continue
		}
		byID[a.ID] = a
		clusterInputs = append(clusterInputs, ClusterArticle{
			ArticleID:     a.ID,
			NucleusEntity: a.NarrativeSummary.NucleusEntity,
			ActorSalience: a.NarrativeSummary.ActorSalience,
			Tensions:      a.NarrativeSummary.Tensions,
		})
	}

	// Cluster with no internal size pruning so a shallow singleton survives
	// to be folded by MergeShallow (§4.K) before the configured minimum
	// cluster size is enforced; pruning first would delete it unmerged.
	clusters := ClusterBySalience(clusterInputs, 1)
	clusters = MergeShallow(clusters)
	clusters = dropBelowMinSize(clusters, d.cfg.MinClusterSize)
	result.Clusters = len(clusters)

	now := time.Now().UTC()
	for _, c := range clusters {
		matched, err := d.processCluster(ctx, c, byID, now)
		if err != nil {
			if errors.Is(err, errBlacklistedNucleus) {
				continue
			}
			result.Failed++
			continue
		}
		if matched {
			result.Matched++
		} else {
			result.Created++
		}
	}

	return result, nil
}

// backfill runs §4.I: annotate every article missing narrative_summary.
func (d *Detector) backfill(ctx context.Context) (int, error) {
	candidates, err := d.articles.ListMissingNarrativeSummary(ctx, d.cfg.BackfillLimit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range candidates {
		summary, err := d.gw.DiscoverNarrative(ctx, a.ID, a.Title, a.Body)
		if err != nil {
			continue
		}
		if summary.NucleusEntity == "" {
			continue
		}
		summary.NucleusEntity = entities.Normalize(summary.NucleusEntity)
		a.NarrativeSummary = &summary
		a.NucleusEntity = summary.NucleusEntity
		if err := d.articles.Upsert(ctx, a); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// clusterVelocity estimates articles/day from cluster size over the
// detection window, used to derive the adaptive grace period (§4.M item 3).
func (d *Detector) clusterVelocity(c *Cluster) float64 {
	days := float64(d.cfg.LookbackHours) / 24.0
	if days < 1 {
		days = 1
	}
	return float64(len(c.ArticleIDs)) / days
}

// errBlacklistedNucleus marks a cluster silently skipped because its nucleus
// entity is on the configured blacklist (§4.M step 2, §7): neither a match
// nor a new narrative, so Run() must not count it as Matched/Created/Failed.
var errBlacklistedNucleus = errors.New("nucleus entity is blacklisted")

// processCluster matches c against existing narratives or creates a new one,
// then recomputes lifecycle/momentum/recency/entity_relationships and
// upserts with a timeline snapshot for today.
func (d *Detector) processCluster(ctx context.Context, c *Cluster, byID map[string]persistence.Article, now time.Time) (matched bool, err error) {
	if IsBlacklistedNucleus(c.Nucleus, d.nucleusBlacklist) {
		return false, errBlacklistedNucleus
	}

	members := clusterMembers(c, byID)

	nucleusCounts := map[string]int{c.Nucleus: len(c.ArticleIDs)}
	actorSalience := aggregateActorSalience(members)
	actions := aggregateActions(members)
	fingerprint := ComputeFingerprint(nucleusCounts, actorSalience, actions, 10, 10)

	velocity := d.clusterVelocity(c)

	active, err := d.narratives.ListActive(ctx, persistence.NarrativeFilter{})
	if err != nil {
		return false, err
	}

	var target persistence.Narrative
	isMatch := false

	if m, ok := FindMatch(fingerprint, active, velocity, now); ok {
		target = m.Narrative
		isMatch = true
	} else {
		dormant, err := d.narratives.ListDormantSince(ctx, now.AddDate(0, 0, -reactivationWindowDays))
		if err != nil {
			return false, err
		}
		if m, ok := FindReactivationCandidate(fingerprint, dormant, now); ok {
			prevState := m.Narrative.LifecycleState
			target = Reactivate(m.Narrative, c.ArticleIDs, velocity, now)
			target = d.recompute(target, members, now)
			if err := d.narratives.Upsert(ctx, target); err != nil {
				return false, err
			}
			d.publishTransition(ctx, target, prevState, now)
			return true, nil
		}
	}

	if isMatch {
		prevState := target.LifecycleState
		target = MergeNonReactivation(target, c.ArticleIDs, velocity, now)
		target = d.recompute(target, members, now)
		if err := d.narratives.Upsert(ctx, target); err != nil {
			return false, err
		}
		d.publishTransition(ctx, target, prevState, now)
		return true, nil
	}

	created, err := d.createNarrative(ctx, c, fingerprint, members, velocity, now)
	if err != nil {
		return false, err
	}
	if err := d.narratives.Upsert(ctx, created); err != nil {
		return false, err
	}
	d.publishTransition(ctx, created, "", now)
	return false, nil
}

// publishTransition emits a lifecycle event when a write changed a
// narrative's state, or when it was just created (prevState == "").
func (d *Detector) publishTransition(ctx context.Context, n persistence.Narrative, prevState persistence.LifecycleState, now time.Time) {
	if d.events == nil || prevState == n.LifecycleState {
		return
	}
	d.events.Publish(ctx, events.LifecycleEvent{
		NarrativeID:   n.ID,
		NucleusEntity: n.NucleusEntity,
		PreviousState: prevState,
		NewState:      n.LifecycleState,
		ArticleCount:  n.ArticleCount,
		Timestamp:     now,
	})
}

// createNarrative builds a brand-new narrative for an unmatched cluster,
// naming it via the capable LLM tier's summarize_cluster operation.
func (d *Detector) createNarrative(ctx context.Context, c *Cluster, fingerprint persistence.Fingerprint, members []persistence.Article, velocity float64, now time.Time) (persistence.Narrative, error) {
	titles := make([]string, 0, len(members))
	for _, a := range members {
		titles = append(titles, a.Title)
	}

	title, summary, err := d.gw.SummarizeCluster(ctx, titles)
	if err != nil {
		title = c.Nucleus
	}

	state := DetermineState(len(c.ArticleIDs), velocity, now, "", now)
	history, _ := UpdateHistory(nil, state, len(c.ArticleIDs), velocity, 0, now)

	n := persistence.Narrative{
		ID:               fmt.Sprintf("narrative:%s:%d", c.Nucleus, now.UnixNano()),
		Title:            title,
		Summary:          summary,
		NucleusEntity:    c.Nucleus,
		ArticleIDs:       append([]string(nil), c.ArticleIDs...),
		ArticleCount:     len(c.ArticleIDs),
		MentionVelocity:  velocity,
		LifecycleState:   state,
		LifecycleHistory: history,
		Fingerprint:      fingerprint,
		FirstSeen:        now,
		LastUpdated:      now,
	}

	return d.recompute(n, members, now), nil
}

// recompute fills in the fields §4.N step 4 requires on every write:
// momentum, recency_score, entity_relationships, peak_activity,
// days_active, and today's timeline snapshot.
func (d *Detector) recompute(n persistence.Narrative, members []persistence.Article, now time.Time) persistence.Narrative {
	timestamps := make([]time.Time, 0, len(members))
	for _, a := range members {
		timestamps = append(timestamps, a.PublishedAt)
	}
	sorted := SortTimestamps(timestamps)

	n.Momentum = ComputeMomentum(sorted)
	if len(sorted) > 0 {
		n.RecencyScore = RecencyScore(sorted[len(sorted)-1], now)
	}
	n.EntityRelationships = topCoOccurrences(members, 5)

	firstSeen, lastUpdated := RepairTimestamps(n.FirstSeen, n.LastUpdated, now)
	n.FirstSeen = firstSeen
	n.LastUpdated = lastUpdated
	n.DaysActive = int(now.Sub(n.FirstSeen).Hours()/24) + 1

	snapshot := persistence.TimelineSnapshot{
		Date:         now.Format("2006-01-02"),
		ArticleCount: len(n.ArticleIDs),
		TopEntities:  n.Fingerprint.TopActors,
		Velocity:     n.MentionVelocity,
	}
	n.TimelineData = upsertTimelineDay(n.TimelineData, snapshot)

	if snapshot.ArticleCount > n.PeakActivity.Count {
		n.PeakActivity = persistence.PeakActivity{
			Date:     snapshot.Date,
			Count:    snapshot.ArticleCount,
			Velocity: snapshot.Velocity,
		}
	}

	return n
}

func upsertTimelineDay(existing []persistence.TimelineSnapshot, day persistence.TimelineSnapshot) []persistence.TimelineSnapshot {
	for i, s := range existing {
		if s.Date == day.Date {
			existing[i] = day
			return existing
		}
	}
	out := append(existing, day)
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// dropBelowMinSize removes clusters still smaller than minSize after shallow
// merging has had a chance to absorb them into a substantial cluster.
func dropBelowMinSize(clusters []*Cluster, minSize int) []*Cluster {
	if minSize <= 0 {
		minSize = DefaultMinClusterSize
	}
	kept := make([]*Cluster, 0, len(clusters))
	for _, c := range clusters {
		if len(c.ArticleIDs) >= minSize {
			kept = append(kept, c)
		}
	}
	return kept
}

func clusterMembers(c *Cluster, byID map[string]persistence.Article) []persistence.Article {
	out := make([]persistence.Article, 0, len(c.ArticleIDs))
	for _, id := range c.ArticleIDs {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func aggregateActorSalience(members []persistence.Article) []ActorSalience {
	best := make(map[string]float64)
	for _, a := range members {
		if a.NarrativeSummary == nil {
			continue
		}
		for actor, salience := range a.NarrativeSummary.ActorSalience {
			if salience > best[actor] {
				best[actor] = salience
			}
		}
	}
	out := make([]ActorSalience, 0, len(best))
	for actor, salience := range best {
		out = append(out, ActorSalience{Actor: actor, Salience: salience})
	}
	return out
}

func aggregateActions(members []persistence.Article) []string {
	var out []string
	for _, a := range members {
		if a.NarrativeSummary == nil {
			continue
		}
		out = append(out, a.NarrativeSummary.Actions...)
	}
	return out
}

// topCoOccurrences returns the top-N entity-pair co-occurrences among
// member articles' entities, weighted by occurrence count across articles.
func topCoOccurrences(members []persistence.Article, topN int) []persistence.EntityRelationship {
	weights := make(map[[2]string]float64)

	for _, a := range members {
		names := make([]string, 0, len(a.Entities))
		seen := make(map[string]struct{})
		for _, e := range a.Entities {
			if _, ok := seen[e.Name]; ok {
				continue
			}
			seen[e.Name] = struct{}{}
			names = append(names, e.Name)
		}
		sort.Strings(names)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				key := [2]string{names[i], names[j]}
				weights[key]++
			}
		}
	}

	pairs := make([]persistence.EntityRelationship, 0, len(weights))
	for k, w := range weights {
		pairs = append(pairs, persistence.EntityRelationship{EntityA: k[0], EntityB: k[1], Weight: w})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Weight != pairs[j].Weight {
			return pairs[i].Weight > pairs[j].Weight
		}
		if pairs[i].EntityA != pairs[j].EntityA {
			return pairs[i].EntityA < pairs[j].EntityA
		}
		return pairs[i].EntityB < pairs[j].EntityB
	})
	if len(pairs) > topN {
		pairs = pairs[:topN]
	}
	return pairs
}

// Consolidate runs the periodic consolidation pass (§4.M), intended to run
// at a lower frequency than Run (e.g. hourly rather than every cycle).
func (d *Detector) Consolidate(ctx context.Context) (int, error) {
	active, err := d.narratives.ListActive(ctx, persistence.NarrativeFilter{})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	pairs := FindConsolidationPairs(active)
	for _, p := range pairs {
		mergedPrevState := p.Merged.LifecycleState
		survivor, merged := ApplyConsolidation(p.Survivor, p.Merged)
		if err := d.narratives.Upsert(ctx, survivor); err != nil {
			return 0, err
		}
		if err := d.narratives.Upsert(ctx, merged); err != nil {
			return 0, err
		}
		d.publishTransition(ctx, merged, mergedPrevState, now)
	}
	return len(pairs), nil
}
