// Package persistence declares the document-store contract the rest of the
// aggregator depends on. Two backends implement it: an in-memory store for
// tests and small deployments, and a Postgres/JSONB store for production
// (see internal/persistence/databases).
package persistence

import (
	"context"
	"time"
)

// Article is immutable once ingested except for its enrichment fields.
type Article struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`

	RelevanceTier    int               `json:"relevance_tier,omitempty"`
	RelevanceScore   float64           `json:"relevance_score,omitempty"`
	SentimentScore   float64           `json:"sentiment_score,omitempty"`
	SentimentLabel   string            `json:"sentiment_label,omitempty"`
	Themes           []string          `json:"themes,omitempty"`
	Keywords         []string          `json:"keywords,omitempty"`
	Entities         []ArticleEntity   `json:"entities,omitempty"`
	NarrativeSummary *NarrativeSummary `json:"narrative_summary,omitempty"`
	NucleusEntity    string            `json:"nucleus_entity,omitempty"`
}

// ArticleEntity is one structured entity emitted during enrichment.
type ArticleEntity struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Ticker     string  `json:"ticker,omitempty"`
	Confidence float64 `json:"confidence"`
	Primary    bool    `json:"primary"`
}

// NarrativeSummary is the LLM-produced structured interpretation of an article.
type NarrativeSummary struct {
	NucleusEntity string             `json:"nucleus_entity"`
	Actors        []string           `json:"actors"`
	ActorSalience map[string]float64 `json:"actor_salience"`
	Actions       []string           `json:"actions"`
	Tensions      []string           `json:"tensions"`
	Implications  []string           `json:"implications"`
	Summary       string             `json:"summary"`
}

// PrimaryEntityTypes lists the types an entity must have to count as primary
// rather than context. Everything else is a context entity.
var PrimaryEntityTypes = map[string]bool{
	"cryptocurrency": true,
	"blockchain":     true,
	"protocol":       true,
	"company":        true,
	"organization":   true,
}

// EntityMention is one row per (article, entity) emission.
type EntityMention struct {
	ID             string            `json:"id"`
	Entity         string            `json:"entity"`
	EntityType     string            `json:"entity_type"`
	ArticleID      string            `json:"article_id"`
	SentimentLabel string            `json:"sentiment_label"`
	Confidence     float64           `json:"confidence"`
	IsPrimary      bool              `json:"is_primary"`
	Source         string            `json:"source"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// WindowStats holds the per-window figures tracked for a SignalScore.
type WindowStats struct {
	Score    float64 `json:"score"`
	Velocity float64 `json:"velocity"`
	Mentions int     `json:"mentions"`
	Recency  float64 `json:"recency"`
}

// SentimentStats summarizes sentiment across an entity's mentions.
type SentimentStats struct {
	Avg        float64 `json:"avg"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Divergence float64 `json:"divergence"`
}

// SignalScore is one row per entity.
type SignalScore struct {
	Entity     string `json:"entity"`
	EntityType string `json:"entity_type"`

	Windows map[string]WindowStats `json:"windows"` // keys: "24h", "7d", "30d"

	LegacyScore    float64 `json:"legacy_score"`
	LegacyVelocity float64 `json:"legacy_velocity"`

	SourceCount int            `json:"source_count"`
	Sentiment   SentimentStats `json:"sentiment"`

	NarrativeIDs []string `json:"narrative_ids"`
	IsEmerging   bool     `json:"is_emerging"`

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// LifecycleState is the authoritative lifecycle label for a Narrative.
type LifecycleState string

const (
	LifecycleEmerging    LifecycleState = "emerging"
	LifecycleRising      LifecycleState = "rising"
	LifecycleHot         LifecycleState = "hot"
	LifecycleCooling     LifecycleState = "cooling"
	LifecycleDormant     LifecycleState = "dormant"
	LifecycleEcho        LifecycleState = "echo"
	LifecycleReactivated LifecycleState = "reactivated"
	LifecycleMerged      LifecycleState = "merged"
)

// Momentum classifies the short-term trend of a narrative's member articles.
type Momentum string

const (
	MomentumGrowing   Momentum = "growing"
	MomentumDeclining Momentum = "declining"
	MomentumStable    Momentum = "stable"
	MomentumUnknown   Momentum = "unknown"
)

// Fingerprint is the deterministic structural summary of a narrative cluster.
type Fingerprint struct {
	NucleusEntity  string   `json:"nucleus_entity"`
	NarrativeFocus string   `json:"narrative_focus,omitempty"`
	TopActors      []string `json:"top_actors"`
	KeyActions     []string `json:"key_actions"`
	KeyEntities    []string `json:"key_entities"`
}

// LifecycleEvent is one append-only entry in a narrative's history.
type LifecycleEvent struct {
	State           LifecycleState `json:"state"`
	Timestamp       time.Time      `json:"timestamp"`
	ArticleCount    int            `json:"article_count"`
	MentionVelocity float64        `json:"mention_velocity"`
}

// TimelineSnapshot is one UTC-day entry in a narrative's timeline_data.
type TimelineSnapshot struct {
	Date         string   `json:"date"` // YYYY-MM-DD
	ArticleCount int      `json:"article_count"`
	TopEntities  []string `json:"top_entities"`
	Velocity     float64  `json:"velocity"`
}

// PeakActivity records the single highest-activity day observed.
type PeakActivity struct {
	Date     string  `json:"date"`
	Count    int     `json:"count"`
	Velocity float64 `json:"velocity"`
}

// EntityRelationship is a co-occurrence pair with its accumulated weight.
type EntityRelationship struct {
	EntityA string  `json:"entity_a"`
	EntityB string  `json:"entity_b"`
	Weight  float64 `json:"weight"`
}

// Narrative is the central entity of the system.
type Narrative struct {
	ID    string `json:"id"`
	Theme string `json:"theme"`

	Title   string `json:"title"`
	Summary string `json:"summary"`

	NucleusEntity string   `json:"nucleus_entity"`
	Entities      []string `json:"entities"`

	ArticleIDs   []string `json:"article_ids"`
	ArticleCount int      `json:"article_count"`

	MentionVelocity float64  `json:"mention_velocity"`
	Momentum        Momentum `json:"momentum"`
	RecencyScore    float64  `json:"recency_score"`

	EntityRelationships []EntityRelationship `json:"entity_relationships"`

	Lifecycle        string           `json:"lifecycle"`
	LifecycleState   LifecycleState   `json:"lifecycle_state"`
	LifecycleHistory []LifecycleEvent `json:"lifecycle_history"`

	Fingerprint Fingerprint `json:"fingerprint"`

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`

	TimelineData []TimelineSnapshot `json:"timeline_data"`
	PeakActivity PeakActivity       `json:"peak_activity"`
	DaysActive   int                `json:"days_active"`

	ReawakeningCount     int        `json:"reawakening_count"`
	ReawakenedFrom       *time.Time `json:"reawakened_from,omitempty"`
	ResurrectionVelocity float64    `json:"resurrection_velocity"`

	DormantSince     *time.Time `json:"dormant_since,omitempty"`
	ReactivatedCount int        `json:"reactivated_count"`

	MergedInto string `json:"merged_into,omitempty"`

	NeedsSummaryUpdate bool   `json:"needs_summary_update"`
	Status             string `json:"status"`
}

// LLMCacheEntry is a cached structured LLM response keyed by model+prompt hash.
type LLMCacheEntry struct {
	CacheKey  string    `json:"cache_key"`
	Model     string    `json:"model"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APICostRecord is one LLM invocation's cost accounting entry.
type APICostRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Operation    string    `json:"operation"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Cached       bool      `json:"cached"`
	CacheKey     string    `json:"cache_key,omitempty"`
}

// EntityAlert is a supplemented feature: a signal-driven notification that an
// entity crossed a velocity/sentiment threshold worth surfacing outside the
// narrative pipeline.
type EntityAlert struct {
	ID         string     `json:"id"`
	Entity     string     `json:"entity"`
	Severity   string     `json:"severity"` // info, warning, critical
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ArticleStore persists ingested articles, deduplicated by canonical URL.
type ArticleStore interface {
	Upsert(ctx context.Context, a Article) error
	GetByURL(ctx context.Context, url string) (Article, bool, error)
	GetByID(ctx context.Context, id string) (Article, bool, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]Article, error)
	Count(ctx context.Context) (int, error)

	// ListUnenriched returns articles missing any of {relevance_score,
	// relevance_tier, sentiment_label} (a zero value counts as missing),
	// oldest first, for the enrichment pipeline (§4.G). sentiment_score is
	// not tested.
	ListUnenriched(ctx context.Context, limit int) ([]Article, error)

	// ListMissingNarrativeSummary returns articles with RelevanceTier 1 or 2
	// and a nil NarrativeSummary, for the narrative element backfill (§4.I).
	ListMissingNarrativeSummary(ctx context.Context, limit int) ([]Article, error)
}

// EntityMentionStore persists per-article entity emissions.
type EntityMentionStore interface {
	InsertBatch(ctx context.Context, mentions []EntityMention) error
	ListByEntity(ctx context.Context, entity string, since time.Time) ([]EntityMention, error)
	ListByArticle(ctx context.Context, articleID string) ([]EntityMention, error)
	DeleteByArticle(ctx context.Context, articleID string) error
	DistinctEntitiesSince(ctx context.Context, since time.Time) ([]string, error)
}

// SignalScoreStore persists the rolled-up per-entity signal scores.
type SignalScoreStore interface {
	Upsert(ctx context.Context, s SignalScore) error
	Get(ctx context.Context, entity string) (SignalScore, bool, error)
	Trending(ctx context.Context, window string, limit, offset int) ([]SignalScore, error)
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// NarrativeFilter narrows an active-narrative listing.
type NarrativeFilter struct {
	LifecycleState LifecycleState
	Limit          int
	Offset         int
}

// NarrativeStore persists narratives and their timelines.
type NarrativeStore interface {
	Upsert(ctx context.Context, n Narrative) error
	Get(ctx context.Context, id string) (Narrative, bool, error)
	ListActive(ctx context.Context, f NarrativeFilter) ([]Narrative, error)
	ListDormantSince(ctx context.Context, since time.Time) ([]Narrative, error)
	ListAll(ctx context.Context) ([]Narrative, error)
	Timeline(ctx context.Context, id string) ([]TimelineSnapshot, error)
}

// LLMCacheStore persists cached LLM responses keyed by cache_key.
type LLMCacheStore interface {
	Get(ctx context.Context, cacheKey string) (LLMCacheEntry, bool, error)
	Set(ctx context.Context, entry LLMCacheEntry) error
	Purge(ctx context.Context, before time.Time) (int, error)
}

// CostSummary is an aggregate rollup over a window of APICostRecords.
type CostSummary struct {
	TotalCostUSD float64            `json:"total_cost_usd"`
	TotalCalls   int                `json:"total_calls"`
	CacheHits    int                `json:"cache_hits"`
	ByModel      map[string]float64 `json:"by_model"`
	ByOperation  map[string]float64 `json:"by_operation"`
}

// APICostStore persists LLM cost records.
type APICostStore interface {
	Insert(ctx context.Context, rec APICostRecord) error
	Summary(ctx context.Context, since time.Time) (CostSummary, error)
}

// EntityAlertFilter narrows an alert listing.
type EntityAlertFilter struct {
	Severity string
	Resolved *bool
	Limit    int
}

// EntityAlertStore persists entity alerts.
type EntityAlertStore interface {
	Insert(ctx context.Context, a EntityAlert) error
	List(ctx context.Context, f EntityAlertFilter) ([]EntityAlert, error)
	Resolve(ctx context.Context, id string, resolvedAt time.Time) error
}

// Manager aggregates every collection's store behind one handle, resolved
// from configuration by databases.NewManager.
type Manager struct {
	Articles       ArticleStore
	EntityMentions EntityMentionStore
	SignalScores   SignalScoreStore
	Narratives     NarrativeStore
	LLMCache       LLMCacheStore
	APICosts       APICostStore
	EntityAlerts   EntityAlertStore

	closeFn func()
}

// SetCloser registers a cleanup function invoked by Close. Backends that hold
// no resources (the memory backend) can leave this unset.
func (m *Manager) SetCloser(fn func()) { m.closeFn = fn }

// Close releases any pooled resources held by the active backend.
func (m *Manager) Close() {
	if m.closeFn != nil {
		m.closeFn()
	}
}
