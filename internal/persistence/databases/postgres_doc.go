package databases

// This file documents the Postgres-backed document store's schema. It exists
// to keep SQL bootstrap centralized and easy to find. Production deployments
// should manage migrations with an external tool; NewPostgresManager performs
// best-effort CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS calls
// so a fresh database is usable without a separate migration step.

/*
Tables (one JSONB document column per collection plus the columns needed for
the indexes named in the external-interfaces boundary):

- articles(id TEXT PRIMARY KEY, source TEXT NOT NULL, url TEXT UNIQUE NOT NULL,
  published_at TIMESTAMPTZ NOT NULL, relevance_tier INT, sentiment_label TEXT,
  has_narrative_summary BOOLEAN, doc JSONB NOT NULL)
  index on published_at; compound indexes on (relevance_tier, sentiment_label) for the
  enrichment backfill query and (relevance_tier, has_narrative_summary) for the narrative
  element backfill query.

- entity_mentions(id TEXT PRIMARY KEY, entity TEXT NOT NULL, article_id TEXT NOT NULL,
  is_primary BOOLEAN NOT NULL, ts TIMESTAMPTZ NOT NULL, doc JSONB NOT NULL)
  compound index on (entity, is_primary, ts), whose leading column also serves
  lookups by entity alone; index on article_id.

- signal_scores(entity TEXT PRIMARY KEY, entity_type TEXT, last_updated TIMESTAMPTZ NOT NULL,
  doc JSONB NOT NULL)
  compound indexes on (last_updated) per trending query.

- narratives(id TEXT PRIMARY KEY, theme TEXT, lifecycle TEXT, lifecycle_state TEXT,
  last_updated TIMESTAMPTZ NOT NULL, reawakened_from TIMESTAMPTZ, doc JSONB NOT NULL)
  indexes on last_updated, theme, lifecycle, (lifecycle_state, last_updated)
  (which also serves lookups by lifecycle_state alone), reawakened_from.

- llm_cache(cache_key TEXT PRIMARY KEY, expires_at TIMESTAMPTZ NOT NULL, doc JSONB NOT NULL)
  TTL sweep on expires_at performed by the cache's own cleanup loop, not a DB-native TTL.

- api_costs(id BIGSERIAL PRIMARY KEY, ts TIMESTAMPTZ NOT NULL, operation TEXT, model TEXT,
  doc JSONB NOT NULL)
  indexes on ts, operation, model.

- entity_alerts(id TEXT PRIMARY KEY, entity TEXT, severity TEXT, resolved BOOLEAN,
  created_at TIMESTAMPTZ NOT NULL, doc JSONB NOT NULL)
  index on (severity, resolved, created_at).
*/
