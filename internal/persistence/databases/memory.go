package databases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// NewMemoryManager builds an in-process document store backed by plain maps.
// It is the default backend: suitable for tests and single-process
// deployments, not for multi-instance fan-out.
func NewMemoryManager() *persistence.Manager {
	mentions := newMemoryEntityMentionStore()
	return &persistence.Manager{
		Articles:       newMemoryArticleStore(),
		EntityMentions: mentions,
		SignalScores:   newMemorySignalScoreStore(mentions),
		Narratives:     newMemoryNarrativeStore(),
		LLMCache:       newMemoryLLMCacheStore(),
		APICosts:       newMemoryAPICostStore(),
		EntityAlerts:   newMemoryEntityAlertStore(),
	}
}

type memoryArticleStore struct {
	mu      sync.RWMutex
	byID    map[string]persistence.Article
	byURL   map[string]string // url -> id
}

func newMemoryArticleStore() *memoryArticleStore {
	return &memoryArticleStore{
		byID:  make(map[string]persistence.Article),
		byURL: make(map[string]string),
	}
}

func (s *memoryArticleStore) Upsert(_ context.Context, a persistence.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = a
	s.byURL[a.URL] = a.ID
	return nil
}

func (s *memoryArticleStore) GetByURL(_ context.Context, url string) (persistence.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	if !ok {
		return persistence.Article{}, false, nil
	}
	a, ok := s.byID[id]
	return a, ok, nil
}

func (s *memoryArticleStore) GetByID(_ context.Context, id string) (persistence.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	return a, ok, nil
}

func (s *memoryArticleStore) ListSince(_ context.Context, since time.Time, limit int) ([]persistence.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]persistence.Article, 0, len(s.byID))
	for _, a := range s.byID {
		if a.PublishedAt.After(since) || a.PublishedAt.Equal(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryArticleStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *memoryArticleStore) ListUnenriched(_ context.Context, limit int) ([]persistence.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]persistence.Article, 0)
	for _, a := range s.byID {
		if a.RelevanceTier == 0 || a.RelevanceScore == 0 || a.SentimentLabel == "" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryArticleStore) ListMissingNarrativeSummary(_ context.Context, limit int) ([]persistence.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]persistence.Article, 0)
	for _, a := range s.byID {
		if a.NarrativeSummary == nil && a.RelevanceTier > 0 && a.RelevanceTier <= 2 {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryEntityMentionStore struct {
	mu        sync.RWMutex
	byArticle map[string][]persistence.EntityMention
	byEntity  map[string][]persistence.EntityMention
}

func newMemoryEntityMentionStore() *memoryEntityMentionStore {
	return &memoryEntityMentionStore{
		byArticle: make(map[string][]persistence.EntityMention),
		byEntity:  make(map[string][]persistence.EntityMention),
	}
}

func (s *memoryEntityMentionStore) InsertBatch(_ context.Context, mentions []persistence.EntityMention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mentions {
		s.byArticle[m.ArticleID] = append(s.byArticle[m.ArticleID], m)
		s.byEntity[m.Entity] = append(s.byEntity[m.Entity], m)
	}
	return nil
}

func (s *memoryEntityMentionStore) ListByEntity(_ context.Context, entity string, since time.Time) ([]persistence.EntityMention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []persistence.EntityMention
	for _, m := range s.byEntity[entity] {
		if m.Timestamp.After(since) || m.Timestamp.Equal(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memoryEntityMentionStore) ListByArticle(_ context.Context, articleID string) ([]persistence.EntityMention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]persistence.EntityMention(nil), s.byArticle[articleID]...), nil
}

func (s *memoryEntityMentionStore) DeleteByArticle(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.byArticle[articleID]
	delete(s.byArticle, articleID)
	for _, m := range removed {
		filtered := s.byEntity[m.Entity][:0]
		for _, candidate := range s.byEntity[m.Entity] {
			if candidate.ArticleID != articleID {
				filtered = append(filtered, candidate)
			}
		}
		s.byEntity[m.Entity] = filtered
	}
	return nil
}

func (s *memoryEntityMentionStore) DistinctEntitiesSince(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for entity, mentions := range s.byEntity {
		for _, m := range mentions {
			if m.Timestamp.After(since) || m.Timestamp.Equal(since) {
				seen[entity] = true
				break
			}
		}
	}
	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out, nil
}

type memorySignalScoreStore struct {
	mu       sync.RWMutex
	scores   map[string]persistence.SignalScore
	mentions *memoryEntityMentionStore
}

func newMemorySignalScoreStore(mentions *memoryEntityMentionStore) *memorySignalScoreStore {
	return &memorySignalScoreStore{scores: make(map[string]persistence.SignalScore), mentions: mentions}
}

func (s *memorySignalScoreStore) Upsert(_ context.Context, sc persistence.SignalScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[sc.Entity] = sc
	return nil
}

func (s *memorySignalScoreStore) Get(_ context.Context, entity string) (persistence.SignalScore, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scores[entity]
	return sc, ok, nil
}

func (s *memorySignalScoreStore) Trending(_ context.Context, window string, limit, offset int) ([]persistence.SignalScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]persistence.SignalScore, 0, len(s.scores))
	for _, sc := range s.scores {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Windows[window].Score > out[j].Windows[window].Score
	})
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memorySignalScoreStore) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for entity, sc := range s.scores {
		if !sc.LastUpdated.Before(before) {
			continue
		}
		mentions, err := s.mentions.ListByEntity(ctx, entity, time.Time{})
		if err != nil {
			continue
		}
		if len(mentions) == 0 {
			delete(s.scores, entity)
			n++
		}
	}
	return n, nil
}

type memoryNarrativeStore struct {
	mu         sync.RWMutex
	narratives map[string]persistence.Narrative
}

func newMemoryNarrativeStore() *memoryNarrativeStore {
	return &memoryNarrativeStore{narratives: make(map[string]persistence.Narrative)}
}

func (s *memoryNarrativeStore) Upsert(_ context.Context, n persistence.Narrative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narratives[n.ID] = n
	return nil
}

func (s *memoryNarrativeStore) Get(_ context.Context, id string) (persistence.Narrative, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.narratives[id]
	return n, ok, nil
}

func (s *memoryNarrativeStore) ListActive(_ context.Context, f persistence.NarrativeFilter) ([]persistence.Narrative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []persistence.Narrative
	for _, n := range s.narratives {
		if n.LifecycleState == persistence.LifecycleMerged {
			continue
		}
		if f.LifecycleState != "" && n.LifecycleState != f.LifecycleState {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	if f.Offset > len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memoryNarrativeStore) ListDormantSince(_ context.Context, since time.Time) ([]persistence.Narrative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []persistence.Narrative
	for _, n := range s.narratives {
		if n.LifecycleState != persistence.LifecycleDormant {
			continue
		}
		if n.DormantSince == nil || n.DormantSince.Before(since) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *memoryNarrativeStore) ListAll(_ context.Context) ([]persistence.Narrative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]persistence.Narrative, 0, len(s.narratives))
	for _, n := range s.narratives {
		out = append(out, n)
	}
	return out, nil
}

func (s *memoryNarrativeStore) Timeline(_ context.Context, id string) ([]persistence.TimelineSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.narratives[id]
	if !ok {
		return nil, nil
	}
	return append([]persistence.TimelineSnapshot(nil), n.TimelineData...), nil
}

type memoryLLMCacheStore struct {
	mu      sync.RWMutex
	entries map[string]persistence.LLMCacheEntry
}

func newMemoryLLMCacheStore() *memoryLLMCacheStore {
	return &memoryLLMCacheStore{entries: make(map[string]persistence.LLMCacheEntry)}
}

func (s *memoryLLMCacheStore) Get(_ context.Context, cacheKey string) (persistence.LLMCacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[cacheKey]
	if !ok || time.Now().After(e.ExpiresAt) {
		return persistence.LLMCacheEntry{}, false, nil
	}
	return e, true, nil
}

func (s *memoryLLMCacheStore) Set(_ context.Context, entry persistence.LLMCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.CacheKey] = entry
	return nil
}

func (s *memoryLLMCacheStore) Purge(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.ExpiresAt.Before(before) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

type memoryAPICostStore struct {
	mu      sync.RWMutex
	records []persistence.APICostRecord
}

func newMemoryAPICostStore() *memoryAPICostStore {
	return &memoryAPICostStore{}
}

func (s *memoryAPICostStore) Insert(_ context.Context, rec persistence.APICostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryAPICostStore) Summary(_ context.Context, since time.Time) (persistence.CostSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := persistence.CostSummary{
		ByModel:     make(map[string]float64),
		ByOperation: make(map[string]float64),
	}
	for _, r := range s.records {
		if r.Timestamp.Before(since) {
			continue
		}
		sum.TotalCostUSD += r.CostUSD
		sum.TotalCalls++
		if r.Cached {
			sum.CacheHits++
		}
		sum.ByModel[r.Model] += r.CostUSD
		sum.ByOperation[r.Operation] += r.CostUSD
	}
	return sum, nil
}

type memoryEntityAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]persistence.EntityAlert
}

func newMemoryEntityAlertStore() *memoryEntityAlertStore {
	return &memoryEntityAlertStore{alerts: make(map[string]persistence.EntityAlert)}
}

func (s *memoryEntityAlertStore) Insert(_ context.Context, a persistence.EntityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	return nil
}

func (s *memoryEntityAlertStore) List(_ context.Context, f persistence.EntityAlertFilter) ([]persistence.EntityAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []persistence.EntityAlert
	for _, a := range s.alerts {
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Resolved != nil && a.Resolved != *f.Resolved {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memoryEntityAlertStore) Resolve(_ context.Context, id string, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil
	}
	a.Resolved = true
	a.ResolvedAt = &resolvedAt
	s.alerts[id] = a
	return nil
}
