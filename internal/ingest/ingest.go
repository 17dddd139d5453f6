// Package ingest pulls articles from the 13 named RSS sources (§6), dedupes
// them by canonical URL, filters blacklisted sources, and optionally
// resolves full article text for feeds that only publish a summary.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// Fetcher syncs every configured RSS source into the article store.
type Fetcher struct {
	articles    persistence.ArticleStore
	parser      *gofeed.Parser
	sources     []config.SourceConfig
	blacklist   map[string]struct{}
	timeout     time.Duration
	textFetch   FullTextFetcher
	snapshotter Snapshotter
	log         zerolog.Logger
}

// FullTextFetcher resolves an article's full body from its URL, used when
// a feed item's description is too short to enrich meaningfully. On an
// error or an empty result the feed description is kept as the body; a
// missing body degrades enrichment quality but never aborts ingestion.
type FullTextFetcher interface {
	FetchText(ctx context.Context, articleURL string, headless bool) (string, error)
}

// Snapshotter archives an article's raw title+body out of band from the
// document store (internal/archive.Archiver implements this).
type Snapshotter interface {
	Snapshot(ctx context.Context, articleID, title, body string)
}

// New builds a Fetcher. textFetch and snapshotter may both be nil.
func New(articles persistence.ArticleStore, cfg config.IngestConfig, textFetch FullTextFetcher, log zerolog.Logger) *Fetcher {
	bl := make(map[string]struct{}, len(cfg.SourceBlacklist))
	for _, s := range cfg.SourceBlacklist {
		bl[strings.ToLower(s)] = struct{}{}
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		articles:  articles,
		parser:    gofeed.NewParser(),
		sources:   cfg.Sources,
		blacklist: bl,
		timeout:   timeout,
		textFetch: textFetch,
		log:       log,
	}
}

// WithSnapshotter attaches an archival snapshotter, returning the same
// Fetcher for chaining at construction time.
func (f *Fetcher) WithSnapshotter(s Snapshotter) *Fetcher {
	f.snapshotter = s
	return f
}

// Result summarizes one ingestion sync across all configured sources.
type Result struct {
	SourcesSynced int
	ItemsSeen     int
	Inserted      int
	Duplicates    int
	Failed        int
}

// SyncAll fetches every non-blacklisted source once. A single source's
// parse failure is logged and skipped; it never aborts the remaining
// sources, matching the per-item failure isolation the rest of the
// pipeline uses.
func (f *Fetcher) SyncAll(ctx context.Context) Result {
	var result Result
	for _, src := range f.sources {
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if name == "" || src.URL == "" {
			continue
		}
		if _, blocked := f.blacklist[name]; blocked {
			continue
		}
		n, inserted, dup, err := f.syncSource(ctx, src)
		result.SourcesSynced++
		result.ItemsSeen += n
		result.Inserted += inserted
		result.Duplicates += dup
		if err != nil {
			result.Failed++
			f.log.Warn().Err(err).Str("source", name).Msg("rss_sync_failed")
		}
	}
	return result
}

func (f *Fetcher) syncSource(ctx context.Context, src config.SourceConfig) (seen, inserted, duplicates int, err error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(src.URL, fetchCtx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	name := strings.ToLower(strings.TrimSpace(src.Name))
	for _, item := range feed.Items {
		seen++
		canon := CanonicalURL(item.Link)
		if canon == "" {
			continue
		}
		if _, exists, gerr := f.articles.GetByURL(ctx, canon); gerr == nil && exists {
			duplicates++
			continue
		}

		published := itemPublishedAt(item)
		body := strings.TrimSpace(item.Description)
		if f.textFetch != nil && (len(body) < 500 || src.RequiresHeadless) {
			if text, terr := f.textFetch.FetchText(ctx, canon, src.RequiresHeadless); terr == nil && text != "" {
				body = text
			}
		}

		article := persistence.Article{
			ID:          uuid.NewString(),
			Source:      name,
			URL:         canon,
			Title:       strings.TrimSpace(item.Title),
			Body:        body,
			PublishedAt: published,
		}
		if uerr := f.articles.Upsert(ctx, article); uerr != nil {
			f.log.Warn().Err(uerr).Str("url", canon).Msg("article_upsert_failed")
			continue
		}
		if f.snapshotter != nil {
			f.snapshotter.Snapshot(ctx, article.ID, article.Title, article.Body)
		}
		inserted++
	}
	return seen, inserted, duplicates, nil
}

func itemPublishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Now().UTC()
}

// CanonicalURL normalizes a feed item's link into the stable dedup key:
// lowercase scheme/host, stripped tracking query params, no fragment, no
// trailing slash.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			lower := strings.ToLower(key)
			if strings.HasPrefix(lower, "utm_") || lower == "ref" || lower == "fbclid" || lower == "gclid" {
				q.Del(key)
			}
		}
		u.RawQuery = encodeSortedQuery(q)
	}
	return u.String()
}

func encodeSortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		for j, v := range q[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
