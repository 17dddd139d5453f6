// Package gateway is the single point of contact between the rest of this
// module and the three vendor LLM SDKs. It implements the three logical
// operations the enrichment and narrative pipelines need — batch entity
// extraction, single-article narrative-element discovery, and cluster
// summarization — on top of the shared response cache and cost tracker, with
// a fixed model fallback list on a 403.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/entities"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/selective"
)

// Gateway routes structured-JSON completion requests across the cheap and
// capable model tiers, with fallback to alternate vendors on access denial.
type Gateway struct {
	providers      map[string]llm.Provider // model id -> vendor client
	cache          *llm.ResponseCache
	cost           *llm.CostTracker
	cheapModel     string
	capableModel   string
	fallbackModels []string
}

// New builds a Gateway. providers maps every model id this process may call
// (cheapModel, capableModel, and every entry in fallbackModels) to the
// vendor client responsible for it.
func New(providers map[string]llm.Provider, cache *llm.ResponseCache, cost *llm.CostTracker, cheapModel, capableModel string, fallbackModels []string) *Gateway {
	return &Gateway{
		providers:      providers,
		cache:          cache,
		cost:           cost,
		cheapModel:     cheapModel,
		capableModel:   capableModel,
		fallbackModels: fallbackModels,
	}
}

var errNoProvider = errors.New("gateway: no provider configured for any candidate model")

// call tries preferredModel first, then each entry in fallbackModels in
// order, advancing past any model that returns ErrAccessDenied. It reports
// which model actually answered so the caller can cost-track correctly.
func (g *Gateway) call(ctx context.Context, preferredModel string, msgs []llm.Message) (text string, modelUsed string, err error) {
	candidates := make([]string, 0, len(g.fallbackModels)+1)
	candidates = append(candidates, preferredModel)
	candidates = append(candidates, g.fallbackModels...)

	var lastErr error
	for _, model := range candidates {
		p, ok := g.providers[model]
		if !ok {
			continue
		}
		out, cerr := p.Generate(ctx, model, msgs)
		if cerr == nil {
			return out, model, nil
		}
		var denied *llm.ErrAccessDenied
		if errors.As(cerr, &denied) {
			lastErr = cerr
			continue
		}
		return "", "", cerr
	}
	if lastErr != nil {
		return "", "", lastErr
	}
	return "", "", errNoProvider
}

// run executes one cached, cost-tracked operation: it checks the response
// cache keyed on (tierModel, prompt), and on a miss calls the model chain and
// records the actual model/token usage. The model component of the cache key
// is always the requested tier, not whichever fallback answered, so a later
// identical request hits cache regardless of which vendor served it.
func (g *Gateway) run(ctx context.Context, operation, tierModel string, msgs []llm.Message) (string, error) {
	prompt := renderPrompt(msgs)

	var usedModel string
	raw, cached, err := g.cache.Compute(ctx, tierModel, prompt, func(ctx context.Context) (string, error) {
		out, model, cerr := g.call(ctx, tierModel, msgs)
		if cerr != nil {
			return "", cerr
		}
		usedModel = model
		return out, nil
	})
	if err != nil {
		return "", fmt.Errorf("gateway: %s: %w", operation, err)
	}

	if usedModel == "" {
		usedModel = tierModel
	}
	inputTokens := llm.EstimateTokensForMessages(msgs)
	outputTokens := llm.EstimateTokens(raw)
	g.cost.Record(ctx, operation, usedModel, inputTokens, outputTokens, cached, llm.Key(tierModel, prompt))

	return raw, nil
}

func renderPrompt(msgs []llm.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// cleanJSON strips the markdown code fences and stray control characters
// vendors occasionally wrap structured responses in, so json.Unmarshal sees
// a clean document. Control characters other than tab, newline and carriage
// return are dropped
// rather than escaped, since they never carry meaning in these responses.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const entityExtractionSystemPrompt = `You are a crypto news entity extraction system. For each article given, identify the primary entities (the subject of the article), context entities (mentioned but not central), and overall sentiment. Respond with JSON only, no prose, in the shape:
{"results": {"<article_id>": {"primary_entities": [{"type":"cryptocurrency","name":"Bitcoin","ticker":"BTC","confidence":0.95}], "context_entities": [...], "sentiment": 0.6}}}
Valid types: cryptocurrency, company, person, protocol, regulator, exchange. sentiment ranges from -1 (very negative) to 1 (very positive).`

type articleAnalysisResponse struct {
	PrimaryEntities []persistence.ArticleEntity `json:"primary_entities"`
	ContextEntities []persistence.ArticleEntity `json:"context_entities"`
	Sentiment       float64                     `json:"sentiment"`
}

type extractionResponse struct {
	Results map[string]articleAnalysisResponse `json:"results"`
}

// ArticleAnalysis is one article's entity extraction + sentiment, the
// richer shape the enrichment pipeline needs beyond what
// selective.Extractor's interface carries.
type ArticleAnalysis struct {
	Entities  []persistence.ArticleEntity
	Sentiment float64
}

// AnalyzeArticlesBatch runs the batched extract_entities_batch operation and
// returns the full per-article result (entities + sentiment). A JSON parse
// failure fails closed to an empty result per article rather than
// propagating an error, so one malformed response never aborts the
// enclosing enrichment cycle.
func (g *Gateway) AnalyzeArticlesBatch(ctx context.Context, articles []selective.Article) (map[string]ArticleAnalysis, error) {
	if len(articles) == 0 {
		return map[string]ArticleAnalysis{}, nil
	}

	var body strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&body, "Article %s:\nTitle: %s\n%s\n\n", a.ID, a.Title, a.Text)
	}

	msgs := []llm.Message{
		{Role: "system", Content: entityExtractionSystemPrompt},
		{Role: "user", Content: body.String()},
	}

	raw, err := g.run(ctx, "extract_entities_batch", g.cheapModel, msgs)
	if err != nil {
		return nil, err
	}

	var parsed extractionResponse
	if jsonErr := json.Unmarshal([]byte(cleanJSON(raw)), &parsed); jsonErr != nil {
		return map[string]ArticleAnalysis{}, nil
	}

	out := make(map[string]ArticleAnalysis, len(parsed.Results))
	for articleID, r := range parsed.Results {
		merged := make([]persistence.ArticleEntity, 0, len(r.PrimaryEntities)+len(r.ContextEntities))
		for _, e := range r.PrimaryEntities {
			e.Name = entities.Normalize(e.Name)
			e.Primary = true
			merged = append(merged, e)
		}
		for _, e := range r.ContextEntities {
			e.Name = entities.Normalize(e.Name)
			e.Primary = false
			merged = append(merged, e)
		}
		out[articleID] = ArticleAnalysis{Entities: merged, Sentiment: r.Sentiment}
	}
	return out, nil
}

// ExtractEntitiesBatch implements selective.Extractor by projecting
// AnalyzeArticlesBatch's result down to entities only.
func (g *Gateway) ExtractEntitiesBatch(ctx context.Context, articles []selective.Article) (map[string][]persistence.ArticleEntity, error) {
	analyzed, err := g.AnalyzeArticlesBatch(ctx, articles)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]persistence.ArticleEntity, len(analyzed))
	for id, a := range analyzed {
		out[id] = a.Entities
	}
	return out, nil
}

const narrativeDiscoverySystemPrompt = `You analyze a single crypto news article and extract its narrative structure. Respond with JSON only, no prose, in the shape:
{"nucleus_entity":"Bitcoin","actors":["..."],"actor_salience":{"actor":5},"actions":["..."],"tensions":["..."],"implications":["..."],"summary":"one paragraph"}
actor_salience scores each actor from 1 (tangential mention) to 5 (central to the story).`

// DiscoverNarrative runs the single-article narrative-element extraction
// used by the detector's backfill step, on the cheap model tier.
func (g *Gateway) DiscoverNarrative(ctx context.Context, articleID, title, text string) (persistence.NarrativeSummary, error) {
	msgs := []llm.Message{
		{Role: "system", Content: narrativeDiscoverySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Title: %s\n\n%s", title, text)},
	}

	raw, err := g.run(ctx, "discover_narrative", g.cheapModel, msgs)
	if err != nil {
		return persistence.NarrativeSummary{}, err
	}

	var summary persistence.NarrativeSummary
	if jsonErr := json.Unmarshal([]byte(cleanJSON(raw)), &summary); jsonErr != nil {
		return persistence.NarrativeSummary{}, nil
	}
	summary.NucleusEntity = entities.Normalize(summary.NucleusEntity)
	normalizedSalience := make(map[string]float64, len(summary.ActorSalience))
	for actor, score := range summary.ActorSalience {
		normalizedSalience[entities.Normalize(actor)] = score
	}
	summary.ActorSalience = normalizedSalience
	return summary, nil
}

const clusterSummarySystemPrompt = `You write a concise title and a two-to-three sentence summary for a cluster of crypto news articles that all belong to the same developing narrative. Respond with JSON only, no prose, in the shape:
{"title":"...","summary":"..."}`

type clusterSummaryResponse struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// SummarizeCluster produces the headline and prose summary for a narrative
// cluster on the capable model tier — this runs far less often than
// extraction/discovery, so the heavier model is affordable.
func (g *Gateway) SummarizeCluster(ctx context.Context, articleTitles []string) (title, summary string, err error) {
	if len(articleTitles) == 0 {
		return "", "", errors.New("gateway: summarize_cluster: no articles")
	}

	var body strings.Builder
	for i, t := range articleTitles {
		fmt.Fprintf(&body, "%d. %s\n", i+1, t)
	}

	msgs := []llm.Message{
		{Role: "system", Content: clusterSummarySystemPrompt},
		{Role: "user", Content: body.String()},
	}

	raw, err := g.run(ctx, "summarize_cluster", g.capableModel, msgs)
	if err != nil {
		return "", "", err
	}

	var parsed clusterSummaryResponse
	if jsonErr := json.Unmarshal([]byte(cleanJSON(raw)), &parsed); jsonErr != nil {
		return "", "", nil
	}
	return parsed.Title, parsed.Summary, nil
}
