// Package analytics optionally mirrors every computed SignalScore into
// ClickHouse as an append-only history table, giving operators
// trend-over-time queries the document store's "upsert by entity" shape
// can't answer on its own. Disabled by default.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

const createTableDDL = `
CREATE TABLE IF NOT EXISTS signal_score_history (
	recorded_at   DateTime,
	entity        String,
	entity_type   String,
	window        String,
	score         Float64,
	velocity      Float64,
	mentions      UInt32,
	source_count  UInt32,
	sentiment_avg Float64
) ENGINE = MergeTree()
ORDER BY (entity, recorded_at)`

// Sink appends signal score snapshots to ClickHouse for historical trend
// queries.
type Sink struct {
	conn    clickhouse.Conn
	timeout time.Duration
	log     zerolog.Logger
}

// New opens the ClickHouse connection and ensures the history table exists
// when cfg.Enabled; returns (nil, nil) otherwise.
func New(ctx context.Context, cfg config.AnalyticsConfig, log zerolog.Logger) (*Sink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Exec(ctxTimeout, createTableDDL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure signal_score_history table: %w", err)
	}

	return &Sink{conn: conn, timeout: 5 * time.Second, log: log}, nil
}

// RecordSnapshot appends one row per window of a SignalScore. Failures are
// logged, not returned: analytics writes are best-effort and must never
// block the signal-scoring cycle.
func (s *Sink) RecordSnapshot(ctx context.Context, score persistence.SignalScore, recordedAt time.Time) {
	if s == nil || s.conn == nil {
		return
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctxTimeout, "INSERT INTO signal_score_history")
	if err != nil {
		s.log.Warn().Err(err).Str("entity", score.Entity).Msg("clickhouse_prepare_batch_failed")
		return
	}
	for window, stats := range score.Windows {
		if err := batch.Append(
			recordedAt,
			score.Entity,
			score.EntityType,
			window,
			stats.Score,
			stats.Velocity,
			uint32(stats.Mentions),
			uint32(score.SourceCount),
			score.Sentiment.Avg,
		); err != nil {
			s.log.Warn().Err(err).Str("entity", score.Entity).Msg("clickhouse_batch_append_failed")
			return
		}
	}
	if err := batch.Send(); err != nil {
		s.log.Warn().Err(err).Str("entity", score.Entity).Msg("clickhouse_batch_send_failed")
	}
}

// Close releases the ClickHouse connection.
func (s *Sink) Close() {
	if s == nil || s.conn == nil {
		return
	}
	_ = s.conn.Close()
}
