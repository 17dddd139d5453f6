// Package signals computes trending scores for entities from their recent
// mention history: mention velocity, source diversity, and sentiment
// strength (the magnitude of the average sentiment) combine into a single
// 0-10 score per tracked time window.
package signals

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// Windows maps a window label to its duration in hours, matching the
// "24h"/"7d"/"30d" keys persisted on persistence.SignalScore.
var Windows = map[string]float64{
	"24h": 24,
	"7d":  24 * 7,
	"30d": 24 * 30,
}

const calibrationCeiling = 40.0

var sentimentValue = map[string]float64{
	"positive": 1.0,
	"neutral":  0.0,
	"negative": -1.0,
}

// Scorer computes and persists signal scores from entity mention history.
type Scorer struct {
	Mentions persistence.EntityMentionStore
	Scores   persistence.SignalScoreStore
}

func NewScorer(mentions persistence.EntityMentionStore, scores persistence.SignalScoreStore) *Scorer {
	return &Scorer{Mentions: mentions, Scores: scores}
}

// ComputeVelocity returns mentions-in-the-last-hour relative to the average
// hourly rate over windowHours. Falls back to the raw 1h count when the
// window has no history to compare against (new or quiet entities).
func ComputeVelocity(mentionsLastHour, mentionsInWindow int, windowHours float64) float64 {
	if mentionsInWindow == 0 {
		return float64(mentionsLastHour)
	}
	expectedPerHour := float64(mentionsInWindow) / windowHours
	if expectedPerHour == 0 {
		return float64(mentionsLastHour)
	}
	return float64(mentionsLastHour) / expectedPerHour
}

// SourceCount returns the number of distinct sources among primary mentions.
// Windowless by design: diversity is judged across all history, not per window.
func SourceCount(mentions []persistence.EntityMention) int {
	sources := make(map[string]struct{})
	for _, m := range mentions {
		if !m.IsPrimary {
			continue
		}
		sources[m.Source] = struct{}{}
	}
	return len(sources)
}

// SentimentStatsFor computes avg/min/max/divergence (population standard
// deviation) over primary mentions' sentiment labels.
func SentimentStatsFor(mentions []persistence.EntityMention) persistence.SentimentStats {
	var scores []float64
	for _, m := range mentions {
		if !m.IsPrimary {
			continue
		}
		v, ok := sentimentValue[m.SentimentLabel]
		if !ok {
			v = 0.0
		}
		scores = append(scores, v)
	}
	if len(scores) == 0 {
		return persistence.SentimentStats{}
	}

	var sum float64
	min, max := scores[0], scores[0]
	for _, s := range scores {
		sum += s
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	avg := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := s - avg
		variance += d * d
	}
	variance /= float64(len(scores))

	return persistence.SentimentStats{
		Avg:        avg,
		Min:        min,
		Max:        max,
		Divergence: math.Sqrt(variance),
	}
}

// ScoreFromComponents normalizes velocity/diversity/sentiment into [0,10]
// using the calibration ceiling (velocity=10, diversity=20, sentiment=1
// produces a raw score of 40, which maps to the scale's maximum).
func ScoreFromComponents(velocity float64, sourceCount int, sentimentAvg float64) float64 {
	raw := (velocity * 0.4) + (float64(sourceCount) * 0.3) + (math.Abs(sentimentAvg) * 30)
	normalized := (raw / calibrationCeiling) * 10.0
	if normalized > 10.0 {
		normalized = 10.0
	}
	if normalized < 0 {
		normalized = 0
	}
	return normalized
}

// ScoreEntity computes per-window velocity stats for one entity, fetching
// each window's mention history concurrently, but derives source diversity
// and sentiment from a single all-time fetch (matching
// calculate_source_diversity/calculate_sentiment_metrics in the reference
// signal service, neither of which takes a time window) and reuses that one
// result for the top-level fields and every window's score.
func (s *Scorer) ScoreEntity(ctx context.Context, entity, entityType string) (persistence.SignalScore, error) {
	now := time.Now().UTC()

	allTime, err := s.Mentions.ListByEntity(ctx, entity, time.Time{})
	if err != nil {
		return persistence.SignalScore{}, err
	}
	sourceCount := SourceCount(allTime)
	sentiment := SentimentStatsFor(allTime)

	windowStats := make(map[string]persistence.WindowStats, len(Windows))

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for label, hours := range Windows {
		label, hours := label, hours
		g.Go(func() error {
			since := now.Add(-time.Duration(hours * float64(time.Hour)))
			mentions, err := s.Mentions.ListByEntity(gctx, entity, since)
			if err != nil {
				return err
			}

			hourAgo := now.Add(-time.Hour)
			mentionsLastHour := 0
			primaryCount := 0
			for _, m := range mentions {
				if !m.IsPrimary {
					continue
				}
				primaryCount++
				if !m.Timestamp.Before(hourAgo) {
					mentionsLastHour++
				}
			}

			velocity := ComputeVelocity(mentionsLastHour, primaryCount, hours)
			recency := recencyScore(mentions, now)

			ws := persistence.WindowStats{
				Velocity: velocity,
				Mentions: primaryCount,
				Recency:  recency,
			}
			ws.Score = ScoreFromComponents(velocity, sourceCount, sentiment.Avg)

			mu.Lock()
			windowStats[label] = ws
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return persistence.SignalScore{}, err
	}

	return persistence.SignalScore{
		Entity:      entity,
		EntityType:  entityType,
		Windows:     windowStats,
		SourceCount: sourceCount,
		Sentiment:   sentiment,
		LastUpdated: now,
	}, nil
}

func recencyScore(mentions []persistence.EntityMention, now time.Time) float64 {
	if len(mentions) == 0 {
		return 0
	}
	newest := mentions[0].Timestamp
	for _, m := range mentions {
		if m.Timestamp.After(newest) {
			newest = m.Timestamp
		}
	}
	hoursSince := now.Sub(newest).Hours()
	if hoursSince < 0 {
		hoursSince = 0
	}
	return math.Exp(-hoursSince / 24)
}

// RunCycle scores every entity with mentions since the widest tracked
// window and upserts the results.
func (s *Scorer) RunCycle(ctx context.Context, entityType string) error {
	widest := 0.0
	for _, h := range Windows {
		if h > widest {
			widest = h
		}
	}
	since := time.Now().UTC().Add(-time.Duration(widest * float64(time.Hour)))

	entities, err := s.Mentions.DistinctEntitiesSince(ctx, since)
	if err != nil {
		return err
	}

	for _, entity := range entities {
		score, err := s.ScoreEntity(ctx, entity, entityType)
		if err != nil {
			continue
		}
		if err := s.Scores.Upsert(ctx, score); err != nil {
			continue
		}
	}
	return nil
}

// DeleteStaleBefore removes signal scores whose entity has no mentions left
// at all and which haven't been updated since cutoff.
func (s *Scorer) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.Scores.DeleteStale(ctx, cutoff)
}

// Trending returns the top topN entities for window with score >= threshold.
// Candidates are oversampled by 2x from the store and each is verified
// against EntityMentions before being counted: a SignalScore can outlive its
// mentions (e.g. after a maintenance sweep elsewhere deletes old mentions but
// races ahead of this cycle's own DeleteStaleBefore pass), and such stale
// rows must never surface in a trending list.
func (s *Scorer) Trending(ctx context.Context, window string, topN int, threshold float64) ([]persistence.SignalScore, error) {
	if topN <= 0 {
		return nil, nil
	}

	candidates, err := s.Scores.Trending(ctx, window, topN*2, 0)
	if err != nil {
		return nil, err
	}

	out := make([]persistence.SignalScore, 0, topN)
	for _, c := range candidates {
		ws, ok := c.Windows[window]
		if !ok || ws.Score < threshold {
			continue
		}

		mentions, err := s.Mentions.ListByEntity(ctx, c.Entity, time.Time{})
		if err != nil || len(mentions) == 0 {
			continue
		}

		out = append(out, c)
		if len(out) >= topN {
			break
		}
	}
	return out, nil
}
