// Package enrichment runs the per-article pipeline (§4.G): relevance
// classification, sentiment/theme analysis, keyword extraction, and
// selective entity extraction, persisted in one batch per cycle.
package enrichment

import (
	"context"
	"sort"
	"strings"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/entities"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/gateway"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/relevance"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/selective"
)

const maxComposedTextLen = 2000

// tierRelevanceScore maps a rule-classifier tier onto the numeric
// relevance_score field articles carry; the classifier itself only ever
// produces a tier (§4.C is pure rule-based), so this is the "equivalent"
// operation §4.G allows in place of an LLM relevance call.
var tierRelevanceScore = map[int]float64{
	1: 0.9,
	2: 0.6,
	3: 0.2,
}

// Pipeline runs one enrichment cycle over unenriched articles.
type Pipeline struct {
	articles  persistence.ArticleStore
	mentions  persistence.EntityMentionStore
	gw        *gateway.Gateway
	batchSize int
	blacklist map[string]struct{}
}

// New builds a Pipeline. blacklistSources names sources to skip entirely.
func New(articles persistence.ArticleStore, mentions persistence.EntityMentionStore, gw *gateway.Gateway, batchSize int, blacklistSources []string) *Pipeline {
	if batchSize <= 0 {
		batchSize = 50
	}
	bl := make(map[string]struct{}, len(blacklistSources))
	for _, s := range blacklistSources {
		bl[strings.ToLower(s)] = struct{}{}
	}
	return &Pipeline{articles: articles, mentions: mentions, gw: gw, batchSize: batchSize, blacklist: bl}
}

// Result summarizes one enrichment cycle.
type Result struct {
	Candidates int
	Enriched   int
	Skipped    int
	Failed     int
}

// Run queries unenriched articles and processes up to one batch of them.
// A single article's failure is logged by the caller (via the returned
// count) and never aborts the rest of the cycle, per §4.G.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	candidates, err := p.articles.ListUnenriched(ctx, p.batchSize)
	if err != nil {
		return Result{}, err
	}

	result := Result{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	var kept []persistence.Article
	for _, a := range candidates {
		if _, blocked := p.blacklist[strings.ToLower(a.Source)]; blocked {
			result.Skipped++
			continue
		}
		kept = append(kept, a)
	}

	llmArticles, ruleArticles := partitionByRoute(kept)

	var analyzed map[string]gateway.ArticleAnalysis
	if len(llmArticles) > 0 {
		analyzed, err = p.gw.AnalyzeArticlesBatch(ctx, toSelectiveArticles(llmArticles))
		if err != nil {
			// The whole batch call failed (not just a parse error, which
			// AnalyzeArticlesBatch already absorbs) — fall back every
			// LLM-routed article to the rule-based path this cycle.
			ruleArticles = append(ruleArticles, llmArticles...)
			llmArticles = nil
			analyzed = nil
		}
	}

	var mentions []persistence.EntityMention
	for _, a := range llmArticles {
		analysis := analyzed[a.ID]
		enriched, articleMentions := enrichArticle(a, analysis.Entities, analysis.Sentiment, true)
		if err := p.articles.Upsert(ctx, enriched); err != nil {
			result.Failed++
			continue
		}
		mentions = append(mentions, articleMentions...)
		result.Enriched++
	}

	for _, a := range ruleArticles {
		simpleEntities := selective.ExtractEntitiesSimple(selective.Article{
			ID: a.ID, Source: a.Source, Title: a.Title, Text: a.Body,
		})
		enriched, articleMentions := enrichArticle(a, simpleEntities, 0, false)
		if err := p.articles.Upsert(ctx, enriched); err != nil {
			result.Failed++
			continue
		}
		mentions = append(mentions, articleMentions...)
		result.Enriched++
	}

	if len(mentions) > 0 {
		if err := p.mentions.InsertBatch(ctx, mentions); err != nil {
			return result, err
		}
	}

	return result, nil
}

func partitionByRoute(articles []persistence.Article) (llmArticles, ruleArticles []persistence.Article) {
	for _, a := range articles {
		if selective.ShouldUseLLM(a.Source, a.Title) {
			llmArticles = append(llmArticles, a)
		} else {
			ruleArticles = append(ruleArticles, a)
		}
	}
	return llmArticles, ruleArticles
}

func toSelectiveArticles(articles []persistence.Article) []selective.Article {
	out := make([]selective.Article, len(articles))
	for i, a := range articles {
		out[i] = selective.Article{ID: a.ID, Source: a.Source, Title: a.Title, Text: composeText(a)}
	}
	return out
}

func composeText(a persistence.Article) string {
	text := a.Title + " " + a.Body
	if len(text) > maxComposedTextLen {
		text = text[:maxComposedTextLen]
	}
	return text
}

// enrichArticle computes the article's relevance/sentiment fields, themes,
// and keyword list, and builds the EntityMention batch for it. hasSentiment
// is false for rule-routed articles, which have no LLM sentiment score and
// fall closed to neutral (0), per §4.G item 3's fail-closed requirement.
func enrichArticle(a persistence.Article, articleEntities []persistence.ArticleEntity, sentimentScore float64, hasSentiment bool) (persistence.Article, []persistence.EntityMention) {
	text := composeText(a)

	classification := relevance.Classify(a.Title, a.Body, a.Source)
	a.RelevanceTier = classification.Tier
	a.RelevanceScore = tierRelevanceScore[classification.Tier]

	if !hasSentiment {
		sentimentScore = 0
	}
	a.SentimentScore = sentimentScore
	a.SentimentLabel = sentimentLabel(sentimentScore)

	themes := themesFromEntities(articleEntities)
	a.Themes = themes
	a.Keywords = extractKeywords(text, themes)

	for i := range articleEntities {
		articleEntities[i].Name = entities.Normalize(articleEntities[i].Name)
	}
	a.Entities = articleEntities

	mentions := make([]persistence.EntityMention, 0, len(articleEntities))
	for _, e := range articleEntities {
		mentions = append(mentions, persistence.EntityMention{
			ID:             a.ID + ":" + e.Name,
			Entity:         e.Name,
			EntityType:     e.Type,
			ArticleID:      a.ID,
			SentimentLabel: a.SentimentLabel,
			Confidence:     e.Confidence,
			IsPrimary:      e.Primary,
			Source:         a.Source,
			Timestamp:      a.PublishedAt,
		})
	}

	return a, mentions
}

func sentimentLabel(score float64) string {
	switch {
	case score >= 0.4:
		return "positive"
	case score <= -0.4:
		return "negative"
	default:
		return "neutral"
	}
}

func themesFromEntities(articleEntities []persistence.ArticleEntity) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range articleEntities {
		if !e.Primary {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}
