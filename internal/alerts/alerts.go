// Package alerts watches entity signal scores for threshold crossings
// worth surfacing outside the narrative pipeline (§6: "Entity alerts
// (recent, filterable by severity and resolved flag)"). It is a
// supplemented feature: the spec names the query boundary but not the
// detection rule, so the thresholds here are derived directly from the
// signal score fields §4.H already computes.
package alerts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

const (
	velocityWarningThreshold  = 3.0
	velocityCriticalThreshold = 6.0
	sentimentExtremeThreshold = 0.6
	sentimentConsensusSpread  = 0.2

	// recentWindow bounds how far back DistinctEntitiesSince looks for
	// candidate entities; entities with no mentions in this window are
	// skipped rather than re-evaluated every cycle.
	recentWindow = 24 * time.Hour

	// reopenCooldown is how long an unresolved alert for the same entity
	// and reason suppresses a duplicate before a fresh one is allowed.
	reopenCooldown = 6 * time.Hour
)

// Watcher scans recently-active entities' signal scores and raises
// EntityAlerts when velocity or sentiment crosses a threshold.
type Watcher struct {
	mentions persistence.EntityMentionStore
	scores   persistence.SignalScoreStore
	alerts   persistence.EntityAlertStore
	log      zerolog.Logger
}

// New builds a Watcher.
func New(mentions persistence.EntityMentionStore, scores persistence.SignalScoreStore, alertStore persistence.EntityAlertStore, log zerolog.Logger) *Watcher {
	return &Watcher{mentions: mentions, scores: scores, alerts: alertStore, log: log}
}

// Result summarizes one alert-scan cycle.
type Result struct {
	Scanned int
	Raised  int
}

// Run scans every entity with a mention in the last 24h and raises an
// alert for each threshold crossing not already covered by a recent
// unresolved alert of the same entity+reason. A single entity's failure
// (store error) is logged and skipped; it never aborts the cycle.
func (w *Watcher) Run(ctx context.Context) (Result, error) {
	now := time.Now().UTC()
	entities, err := w.mentions.DistinctEntitiesSince(ctx, now.Add(-recentWindow))
	if err != nil {
		return Result{}, fmt.Errorf("list recent entities: %w", err)
	}

	open, err := w.alerts.List(ctx, persistence.EntityAlertFilter{})
	if err != nil {
		w.log.Warn().Err(err).Msg("list_open_alerts_failed")
	}
	recentByKey := indexRecentOpen(open, now)

	result := Result{Scanned: len(entities)}
	for _, entity := range entities {
		score, ok, err := w.scores.Get(ctx, entity)
		if err != nil {
			w.log.Warn().Err(err).Str("entity", entity).Msg("signal_score_lookup_failed")
			continue
		}
		if !ok {
			continue
		}
		for _, candidate := range evaluate(score, now) {
			key := candidate.Entity + "|" + candidate.Reason
			if recentByKey[key] {
				continue
			}
			if err := w.alerts.Insert(ctx, candidate); err != nil {
				w.log.Warn().Err(err).Str("entity", entity).Msg("alert_insert_failed")
				continue
			}
			result.Raised++
		}
	}
	return result, nil
}

// evaluate returns the alerts a single SignalScore snapshot should raise.
func evaluate(score persistence.SignalScore, now time.Time) []persistence.EntityAlert {
	var out []persistence.EntityAlert
	window := score.Windows["24h"]

	switch {
	case window.Velocity >= velocityCriticalThreshold:
		out = append(out, newAlert(score.Entity, "critical", "velocity_spike", now))
	case window.Velocity >= velocityWarningThreshold:
		out = append(out, newAlert(score.Entity, "warning", "velocity_spike", now))
	}

	if math.Abs(score.Sentiment.Avg) >= sentimentExtremeThreshold &&
		(score.Sentiment.Max-score.Sentiment.Min) <= sentimentConsensusSpread {
		severity := "warning"
		if math.Abs(score.Sentiment.Avg) >= 0.85 {
			severity = "critical"
		}
		out = append(out, newAlert(score.Entity, severity, "sentiment_extreme", now))
	}
	return out
}

func newAlert(entity, severity, reason string, now time.Time) persistence.EntityAlert {
	return persistence.EntityAlert{
		ID:        uuid.NewString(),
		Entity:    entity,
		Severity:  severity,
		Reason:    reason,
		CreatedAt: now,
	}
}

func indexRecentOpen(alerts []persistence.EntityAlert, now time.Time) map[string]bool {
	out := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		if a.Resolved {
			continue
		}
		if now.Sub(a.CreatedAt) > reopenCooldown {
			continue
		}
		out[a.Entity+"|"+a.Reason] = true
	}
	return out
}
