package databases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// schemaStatements bootstraps the tables and indexes documented in
// postgres_doc.go. Idempotent: every statement is IF NOT EXISTS.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		url TEXT UNIQUE NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		relevance_tier INT NOT NULL DEFAULT 0,
		sentiment_label TEXT NOT NULL DEFAULT '',
		has_narrative_summary BOOLEAN NOT NULL DEFAULT FALSE,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_unenriched ON articles (relevance_tier, sentiment_label)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_missing_summary ON articles (relevance_tier, has_narrative_summary)`,

	`CREATE TABLE IF NOT EXISTS entity_mentions (
		id TEXT PRIMARY KEY,
		entity TEXT NOT NULL,
		article_id TEXT NOT NULL,
		is_primary BOOLEAN NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_mentions_entity ON entity_mentions (entity, is_primary, ts)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_mentions_article ON entity_mentions (article_id)`,

	`CREATE TABLE IF NOT EXISTS signal_scores (
		entity TEXT PRIMARY KEY,
		entity_type TEXT,
		last_updated TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_scores_last_updated ON signal_scores (last_updated)`,

	`CREATE TABLE IF NOT EXISTS narratives (
		id TEXT PRIMARY KEY,
		theme TEXT,
		lifecycle TEXT,
		lifecycle_state TEXT,
		last_updated TIMESTAMPTZ NOT NULL,
		reawakened_from TIMESTAMPTZ,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_narratives_last_updated ON narratives (last_updated)`,
	`CREATE INDEX IF NOT EXISTS idx_narratives_theme ON narratives (theme)`,
	`CREATE INDEX IF NOT EXISTS idx_narratives_lifecycle ON narratives (lifecycle)`,
	`CREATE INDEX IF NOT EXISTS idx_narratives_lifecycle_state ON narratives (lifecycle_state, last_updated)`,
	`CREATE INDEX IF NOT EXISTS idx_narratives_reawakened_from ON narratives (reawakened_from)`,

	`CREATE TABLE IF NOT EXISTS llm_cache (
		cache_key TEXT PRIMARY KEY,
		expires_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_cache_expires_at ON llm_cache (expires_at)`,

	`CREATE TABLE IF NOT EXISTS api_costs (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		operation TEXT,
		model TEXT,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_costs_ts ON api_costs (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_api_costs_operation ON api_costs (operation)`,
	`CREATE INDEX IF NOT EXISTS idx_api_costs_model ON api_costs (model)`,

	`CREATE TABLE IF NOT EXISTS entity_alerts (
		id TEXT PRIMARY KEY,
		entity TEXT,
		severity TEXT,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_alerts_filter ON entity_alerts (severity, resolved, created_at)`,
}

// NewPostgresManager bootstraps the schema (best-effort CREATE IF NOT EXISTS)
// and wires a Manager backed by JSONB-per-collection Postgres stores.
func NewPostgresManager(ctx context.Context, pool *pgxpool.Pool) (*persistence.Manager, error) {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("schema bootstrap: %w", err)
		}
	}

	return &persistence.Manager{
		Articles:       &pgArticleStore{pool: pool},
		EntityMentions: &pgEntityMentionStore{pool: pool},
		SignalScores:   &pgSignalScoreStore{pool: pool},
		Narratives:     &pgNarrativeStore{pool: pool},
		LLMCache:       &pgLLMCacheStore{pool: pool},
		APICosts:       &pgAPICostStore{pool: pool},
		EntityAlerts:   &pgEntityAlertStore{pool: pool},
	}, nil
}

type pgArticleStore struct{ pool *pgxpool.Pool }

func (s *pgArticleStore) Upsert(ctx context.Context, a persistence.Article) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO articles (id, source, url, published_at, relevance_tier, sentiment_label, has_narrative_summary, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source, url = EXCLUDED.url, published_at = EXCLUDED.published_at,
			relevance_tier = EXCLUDED.relevance_tier, sentiment_label = EXCLUDED.sentiment_label,
			has_narrative_summary = EXCLUDED.has_narrative_summary, doc = EXCLUDED.doc
	`, a.ID, a.Source, a.URL, a.PublishedAt, a.RelevanceTier, a.SentimentLabel, a.NarrativeSummary != nil, doc)
	return err
}

func (s *pgArticleStore) scanArticle(row pgx.Row) (persistence.Article, bool, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if err == pgx.ErrNoRows {
			return persistence.Article{}, false, nil
		}
		return persistence.Article{}, false, err
	}
	var a persistence.Article
	if err := json.Unmarshal(doc, &a); err != nil {
		return persistence.Article{}, false, err
	}
	return a, true, nil
}

func (s *pgArticleStore) GetByURL(ctx context.Context, url string) (persistence.Article, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM articles WHERE url = $1`, url)
	return s.scanArticle(row)
}

func (s *pgArticleStore) GetByID(ctx context.Context, id string) (persistence.Article, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc FROM articles WHERE id = $1`, id)
	return s.scanArticle(row)
}

func (s *pgArticleStore) queryArticles(ctx context.Context, query string, args ...any) ([]persistence.Article, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.Article
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var a persistence.Article
		if err := json.Unmarshal(doc, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pgArticleStore) ListSince(ctx context.Context, since time.Time, limit int) ([]persistence.Article, error) {
	if limit > 0 {
		return s.queryArticles(ctx, `SELECT doc FROM articles WHERE published_at >= $1 ORDER BY published_at DESC LIMIT $2`, since, limit)
	}
	return s.queryArticles(ctx, `SELECT doc FROM articles WHERE published_at >= $1 ORDER BY published_at DESC`, since)
}

func (s *pgArticleStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM articles`).Scan(&n)
	return n, err
}

func (s *pgArticleStore) ListUnenriched(ctx context.Context, limit int) ([]persistence.Article, error) {
	return s.queryArticles(ctx, `
		SELECT doc FROM articles
		WHERE relevance_tier = 0 OR doc->>'relevance_score' IS NULL OR sentiment_label = ''
		ORDER BY published_at ASC LIMIT $1
	`, limit)
}

func (s *pgArticleStore) ListMissingNarrativeSummary(ctx context.Context, limit int) ([]persistence.Article, error) {
	return s.queryArticles(ctx, `
		SELECT doc FROM articles
		WHERE relevance_tier > 0 AND relevance_tier <= 2 AND has_narrative_summary = FALSE
		ORDER BY published_at ASC LIMIT $1
	`, limit)
}

type pgEntityMentionStore struct{ pool *pgxpool.Pool }

func (s *pgEntityMentionStore) InsertBatch(ctx context.Context, mentions []persistence.EntityMention) error {
	if len(mentions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range mentions {
		doc, err := json.Marshal(m)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO entity_mentions (id, entity, article_id, is_primary, ts, doc)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
		`, m.ID, m.Entity, m.ArticleID, m.IsPrimary, m.Timestamp, doc)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range mentions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgEntityMentionStore) queryMentions(ctx context.Context, query string, args ...any) ([]persistence.EntityMention, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.EntityMention
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var m persistence.EntityMention
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *pgEntityMentionStore) ListByEntity(ctx context.Context, entity string, since time.Time) ([]persistence.EntityMention, error) {
	return s.queryMentions(ctx, `SELECT doc FROM entity_mentions WHERE entity = $1 AND ts >= $2 ORDER BY ts DESC`, entity, since)
}

func (s *pgEntityMentionStore) ListByArticle(ctx context.Context, articleID string) ([]persistence.EntityMention, error) {
	return s.queryMentions(ctx, `SELECT doc FROM entity_mentions WHERE article_id = $1`, articleID)
}

func (s *pgEntityMentionStore) DeleteByArticle(ctx context.Context, articleID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM entity_mentions WHERE article_id = $1`, articleID)
	return err
}

func (s *pgEntityMentionStore) DistinctEntitiesSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT entity FROM entity_mentions WHERE ts >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type pgSignalScoreStore struct{ pool *pgxpool.Pool }

func (s *pgSignalScoreStore) Upsert(ctx context.Context, sc persistence.SignalScore) error {
	doc, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO signal_scores (entity, entity_type, last_updated, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity) DO UPDATE SET entity_type = EXCLUDED.entity_type,
			last_updated = EXCLUDED.last_updated, doc = EXCLUDED.doc
	`, sc.Entity, sc.EntityType, sc.LastUpdated, doc)
	return err
}

func (s *pgSignalScoreStore) Get(ctx context.Context, entity string) (persistence.SignalScore, bool, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM signal_scores WHERE entity = $1`, entity).Scan(&doc)
	if err == pgx.ErrNoRows {
		return persistence.SignalScore{}, false, nil
	}
	if err != nil {
		return persistence.SignalScore{}, false, err
	}
	var sc persistence.SignalScore
	if err := json.Unmarshal(doc, &sc); err != nil {
		return persistence.SignalScore{}, false, err
	}
	return sc, true, nil
}

func (s *pgSignalScoreStore) Trending(ctx context.Context, window string, limit, offset int) ([]persistence.SignalScore, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM signal_scores
		WHERE doc #> ARRAY['windows', $1, 'score'] IS NOT NULL
		ORDER BY (doc #>> ARRAY['windows', $1, 'score'])::float8 DESC
		LIMIT $2 OFFSET $3
	`, window, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.SignalScore
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var sc persistence.SignalScore
		if err := json.Unmarshal(doc, &sc); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *pgSignalScoreStore) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM signal_scores s
		WHERE s.last_updated < $1
		AND NOT EXISTS (SELECT 1 FROM entity_mentions m WHERE m.entity = s.entity)
	`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

type pgNarrativeStore struct{ pool *pgxpool.Pool }

func (s *pgNarrativeStore) Upsert(ctx context.Context, n persistence.Narrative) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return err
	}
	var reawakenedFrom *time.Time
	if n.ReawakenedFrom != nil {
		reawakenedFrom = n.ReawakenedFrom
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO narratives (id, theme, lifecycle, lifecycle_state, last_updated, reawakened_from, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET theme = EXCLUDED.theme, lifecycle = EXCLUDED.lifecycle,
			lifecycle_state = EXCLUDED.lifecycle_state, last_updated = EXCLUDED.last_updated,
			reawakened_from = EXCLUDED.reawakened_from, doc = EXCLUDED.doc
	`, n.ID, n.Theme, n.Lifecycle, string(n.LifecycleState), n.LastUpdated, reawakenedFrom, doc)
	return err
}

func (s *pgNarrativeStore) scanOne(ctx context.Context, query string, args ...any) (persistence.Narrative, bool, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&doc)
	if err == pgx.ErrNoRows {
		return persistence.Narrative{}, false, nil
	}
	if err != nil {
		return persistence.Narrative{}, false, err
	}
	var n persistence.Narrative
	if err := json.Unmarshal(doc, &n); err != nil {
		return persistence.Narrative{}, false, err
	}
	return n, true, nil
}

func (s *pgNarrativeStore) Get(ctx context.Context, id string) (persistence.Narrative, bool, error) {
	return s.scanOne(ctx, `SELECT doc FROM narratives WHERE id = $1`, id)
}

func (s *pgNarrativeStore) queryNarratives(ctx context.Context, query string, args ...any) ([]persistence.Narrative, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.Narrative
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var n persistence.Narrative
		if err := json.Unmarshal(doc, &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *pgNarrativeStore) ListActive(ctx context.Context, f persistence.NarrativeFilter) ([]persistence.Narrative, error) {
	query := `SELECT doc FROM narratives WHERE lifecycle_state != $1`
	args := []any{string(persistence.LifecycleMerged)}
	if f.LifecycleState != "" {
		query += ` AND lifecycle_state = $2`
		args = append(args, string(f.LifecycleState))
	}
	query += ` ORDER BY last_updated DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, f.Offset)
	}
	return s.queryNarratives(ctx, query, args...)
}

func (s *pgNarrativeStore) ListDormantSince(ctx context.Context, since time.Time) ([]persistence.Narrative, error) {
	return s.queryNarratives(ctx, `
		SELECT doc FROM narratives WHERE lifecycle_state = $1 AND (doc->>'dormant_since')::timestamptz >= $2
	`, string(persistence.LifecycleDormant), since)
}

func (s *pgNarrativeStore) ListAll(ctx context.Context) ([]persistence.Narrative, error) {
	return s.queryNarratives(ctx, `SELECT doc FROM narratives`)
}

func (s *pgNarrativeStore) Timeline(ctx context.Context, id string) ([]persistence.TimelineSnapshot, error) {
	n, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return n.TimelineData, nil
}

type pgLLMCacheStore struct{ pool *pgxpool.Pool }

func (s *pgLLMCacheStore) Get(ctx context.Context, cacheKey string) (persistence.LLMCacheEntry, bool, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM llm_cache WHERE cache_key = $1 AND expires_at > now()`, cacheKey).Scan(&doc)
	if err == pgx.ErrNoRows {
		return persistence.LLMCacheEntry{}, false, nil
	}
	if err != nil {
		return persistence.LLMCacheEntry{}, false, err
	}
	var e persistence.LLMCacheEntry
	if err := json.Unmarshal(doc, &e); err != nil {
		return persistence.LLMCacheEntry{}, false, err
	}
	return e, true, nil
}

func (s *pgLLMCacheStore) Set(ctx context.Context, entry persistence.LLMCacheEntry) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO llm_cache (cache_key, expires_at, doc) VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET expires_at = EXCLUDED.expires_at, doc = EXCLUDED.doc
	`, entry.CacheKey, entry.ExpiresAt, doc)
	return err
}

func (s *pgLLMCacheStore) Purge(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM llm_cache WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

type pgAPICostStore struct{ pool *pgxpool.Pool }

func (s *pgAPICostStore) Insert(ctx context.Context, rec persistence.APICostRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO api_costs (ts, operation, model, doc) VALUES ($1, $2, $3, $4)`,
		rec.Timestamp, rec.Operation, rec.Model, doc)
	return err
}

func (s *pgAPICostStore) Summary(ctx context.Context, since time.Time) (persistence.CostSummary, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM api_costs WHERE ts >= $1`, since)
	if err != nil {
		return persistence.CostSummary{}, err
	}
	defer rows.Close()

	summary := persistence.CostSummary{ByModel: map[string]float64{}, ByOperation: map[string]float64{}}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return persistence.CostSummary{}, err
		}
		var rec persistence.APICostRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return persistence.CostSummary{}, err
		}
		summary.TotalCostUSD += rec.CostUSD
		summary.TotalCalls++
		if rec.Cached {
			summary.CacheHits++
		}
		summary.ByModel[rec.Model] += rec.CostUSD
		summary.ByOperation[rec.Operation] += rec.CostUSD
	}
	return summary, rows.Err()
}

type pgEntityAlertStore struct{ pool *pgxpool.Pool }

func (s *pgEntityAlertStore) Insert(ctx context.Context, a persistence.EntityAlert) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO entity_alerts (id, entity, severity, resolved, created_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET resolved = EXCLUDED.resolved, doc = EXCLUDED.doc
	`, a.ID, a.Entity, a.Severity, a.Resolved, a.CreatedAt, doc)
	return err
}

func (s *pgEntityAlertStore) List(ctx context.Context, f persistence.EntityAlertFilter) ([]persistence.EntityAlert, error) {
	query := `SELECT doc FROM entity_alerts WHERE 1=1`
	var args []any
	if f.Severity != "" {
		args = append(args, f.Severity)
		query += fmt.Sprintf(` AND severity = $%d`, len(args))
	}
	if f.Resolved != nil {
		args = append(args, *f.Resolved)
		query += fmt.Sprintf(` AND resolved = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistence.EntityAlert
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var a persistence.EntityAlert
		if err := json.Unmarshal(doc, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pgEntityAlertStore) Resolve(ctx context.Context, id string, resolvedAt time.Time) error {
	a, ok, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("entity alert %s not found", id)
	}
	a.Resolved = true
	a.ResolvedAt = &resolvedAt
	return s.Insert(ctx, a)
}

func (s *pgEntityAlertStore) get(ctx context.Context, id string) (persistence.EntityAlert, bool, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM entity_alerts WHERE id = $1`, id).Scan(&doc)
	if err == pgx.ErrNoRows {
		return persistence.EntityAlert{}, false, nil
	}
	if err != nil {
		return persistence.EntityAlert{}, false, err
	}
	var a persistence.EntityAlert
	if err := json.Unmarshal(doc, &a); err != nil {
		return persistence.EntityAlert{}, false, err
	}
	return a, true, nil
}
