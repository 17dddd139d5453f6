// Package relevance implements a rule-based article relevance classifier.
//
// Articles are sorted into three tiers: 1 (high signal — regulatory,
// security, market-moving), 2 (standard crypto news), 3 (low signal —
// speculation, price predictions, off-topic content). The classifier never
// weights by source authority and defaults to tier 2 when no pattern fires.
package relevance

import (
	"regexp"
	"strings"
)

// Result is the outcome of classifying a single article.
type Result struct {
	Tier           int
	Reason         string
	MatchedPattern string
}

var nonCryptoPatterns = compile([]string{
	`\bgames?\s+releasing\b`,
	`\bgames?\s+of\s+\d{4}\b`,
	`\bmost\s+anticipated\s+games\b`,
	`\bnintendo\s+switch\b`,
	`\bplaystation\b`,
	`\bxbox\b`,
	`\bsteam\s+deck\b`,
})

var speculationPatterns = compile([]string{
	`\bcrystal\s+ball\b`,
	`\bwill\s+\w+\s+finally\b`,
	`\bcould\s+.{0,40}(launch|spark|trigger|send|push)\b.*\brally\b`,
	`\bis\s+it\s+entering\s+a\s+recovery\b`,
	`\bunstoppable\?\s*$`,
	`\bgo(ing)?\s+parabolic\b`,
	`\bto\s+the\s+moon\b`,
	`\bwhat'?s?\s+a\s+\$?\d+\s+investment\b`,
	`\bhow\s+many\s+coins?\s+need\s+to\s+be\s+burned\b`,
	`\bai\s+chatbots?\s+(offer|predict|say)\b`,
	`\bcould\s+.{0,30}\d+%\s+rally\b`,
})

var pricePredictionPatterns = compile([]string{
	`^price\s+predictions?\s+\d+/\d+`,
	`\bprice\s+prediction\s+\d{4}\b`,
	`\b(btc|eth|xrp|sol|doge)\s+to\s+hit\s+\$[\d,]+\b`,
	`\bcould\s+reach\s+\$[\d,]+\b`,
	`\btarget\s+of\s+\$[\d,]+\b`,
	`\bprice\s+levels?\s+to\s+watch\b`,
})

var retrospectivePatterns = compile([]string{
	`\bwtf\s+moments?\s+of\s+(the\s+)?year\b`,
	`\bstories\s+that\s+shook\b`,
	`\bbest\s+of\s+\d{4}\b`,
	`\btop\s+\d+\s+moments?\s+of\b`,
	`\byear\s+in\s+review\b`,
})

var regulatoryKeywords = compile([]string{
	`\bsec\b`,
	`\bcftc\b`,
	`\bdoj\b`,
	`\bfbi\b`,
	`\bcommissioner\b`,
	`\bregulat(or|ory|ion)\b`,
	`\blegaliz(e|es|ed|ation)\b`,
	`\bban(s|ned|ning)?\b.*\bcrypto\b`,
	`\bcrypto\b.*\bban(s|ned|ning)?\b`,
	`\blegislat(ion|ive)\b`,
	`\bbill\s+(pass|propos|approv)\b`,
	`\bexecutive\s+order\b`,
	`\btax\s+(framework|ruling|guidance)\b`,
})

var securityKeywords = compile([]string{
	`\bhack(ed|ing|s)?\b`,
	`\bexploit(ed|s)?\b`,
	`\bdrain(ed|ing|s)?\b`,
	`\bstolen\b`,
	`\bbreach(ed|es)?\b`,
	`\bvulnerability\b`,
	`\battack(ed|er|s)?\b`,
	`\brug\s*pull\b`,
	`\bscam\b.*\b(million|billion)\b`,
})

var historicalSecurityPatterns = compile([]string{
	`\bhacker\b.{0,30}\b(released|sentenced|arrested|prison|jail|plea|guilty|charged)\b`,
	`\b(released|sentenced|arrested)\b.{0,30}\bhacker\b`,
	`\bhack(er)?\b.{0,20}\bcredits?\b`,
})

var marketDataKeywords = compile([]string{
	`\bliquidat(ed|ion|ions)\b.*\$\d+`,
	`\$\d+\s*(million|billion|m|b)\s+(in\s+)?(liquidat|outflow|inflow)`,
	`\betf\s+(in|out)flow`,
	`\b(in|out)flow(s)?\b.*\betf\b`,
	`\betf[s]?\s+(lose|lost|gain)\b.*\b(billion|million)\b`,
	`\b(billion|million)\b.*\betf\b`,
	`\ball[- ]time\s+high\b`,
	`\bath\b`,
	`\brecord\s+(high|low|volume|outflow|inflow)\b`,
	`\bmarket\s+cap\b.*\b(trillion|billion)\b`,
	`\$\d+\s*(billion|trillion)\b.{0,30}\b(left|exit|fled|flow|move)\b`,
	`\b(billion|trillion)\b.{0,20}\b(left|exit|fled)\b`,
})

var institutionalKeywords = compile([]string{
	`\b(bought|buys?|purchase[ds]?|acquir)\b.*\b(bitcoin|btc|eth)\b`,
	`\b(bitcoin|btc|eth)\b.*\b(bought|buys?|purchase[ds]?|acquir)\b`,
	`\bipo\b`,
	`\bacquisition\b`,
	`\bpartnership\b.*\b(announc|sign|form)\b`,
	`\b(blackrock|fidelity|vanguard|jpmorgan|goldman)\b`,
	`\btreasury\b.*\b(bitcoin|btc|strategy)\b`,
})

var adoptionKeywords = compile([]string{
	`\b(country|nation|government)\b.*\b(adopt|accept|legalize)\b`,
	`\b(adopt|accept|legalize)\b.*\b(country|nation|government)\b`,
	`\blegal\s+tender\b`,
	`\bcentral\s+bank\s+digital\b`,
	`\bcbdc\b`,
	`\bde-?dollarization\b`,
})

// cryptoContextWords gates the RE2-incompatible negative-lookahead patterns
// the Python source expresses as `(?!...)`. Go's RE2 engine has no lookahead,
// so each such pattern is split into a positive match plus a separate check
// that the surrounding text does NOT also contain one of these words.
var cryptoContextWords = regexp.MustCompile(`(?i)\b(bitcoin|btc|crypto|blockchain|token|coin|mining|coinbase)\b`)

var stockTickerPattern = regexp.MustCompile(`(?i)\b(aapl|googl|tsla|nvda)\b`)
var stockPredictionPattern = regexp.MustCompile(`(?i)\bstock\s+prediction\b`)
var earningsMissPattern = regexp.MustCompile(`(?i)\bearnings\s+miss\b`)
var soldStockPattern = regexp.MustCompile(`(?i)\bsold\s+(nvda|tsla|aapl|googl)\b`)

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

func matchesAny(text string, patterns []*regexp.Regexp) (bool, string) {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true, p.String()
		}
	}
	return false, ""
}

// isNonCryptoStockArticle reports whether text mentions a bare stock ticker
// or stock-specific phrase with no surrounding crypto context — the
// RE2-safe equivalent of the Python negative-lookahead NON_CRYPTO_PATTERNS.
func isNonCryptoStockArticle(text string) (bool, string) {
	hasCryptoContext := cryptoContextWords.MatchString(text)
	if !hasCryptoContext && stockTickerPattern.MatchString(text) {
		return true, stockTickerPattern.String()
	}
	if !hasCryptoContext && soldStockPattern.MatchString(text) {
		return true, soldStockPattern.String()
	}
	if stockPredictionPattern.MatchString(text) && !hasCryptoContext {
		return true, stockPredictionPattern.String()
	}
	if earningsMissPattern.MatchString(text) && !hasCryptoContext {
		return true, earningsMissPattern.String()
	}
	return false, ""
}

var tier3Patterns = joinAll(nonCryptoPatterns, speculationPatterns, pricePredictionPatterns, retrospectivePatterns)
var tier1Patterns = joinAll(regulatoryKeywords, securityKeywords, marketDataKeywords, institutionalKeywords, adoptionKeywords)
var tier1Exceptions = historicalSecurityPatterns

func joinAll(groups ...[]*regexp.Regexp) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Classify determines the relevance tier of an article. text and source are
// optional secondary signals; title is the primary signal.
func Classify(title, text, source string) Result {
	titleLower := strings.ToLower(title)
	_ = source // accepted for parity with the upstream signature; not used in scoring

	if ok, pattern := isNonCryptoStockArticle(titleLower); ok {
		return Result{Tier: 3, Reason: "low_signal", MatchedPattern: pattern}
	}
	if ok, pattern := matchesAny(titleLower, tier3Patterns); ok {
		return Result{Tier: 3, Reason: "low_signal", MatchedPattern: pattern}
	}

	if ok, pattern := matchesAny(titleLower, tier1Patterns); ok {
		if isException, _ := matchesAny(titleLower, tier1Exceptions); isException {
			return Result{Tier: 2, Reason: "historical_security", MatchedPattern: pattern}
		}
		return Result{Tier: 1, Reason: "high_signal_title", MatchedPattern: pattern}
	}

	if text != "" {
		preview := text
		if len(preview) > 1000 {
			preview = preview[:1000]
		}
		preview = strings.ToLower(preview)
		if ok, pattern := matchesAny(preview, tier1Patterns); ok {
			return Result{Tier: 1, Reason: "high_signal_body", MatchedPattern: pattern}
		}
	}

	return Result{Tier: 2, Reason: "default"}
}

// Article is the minimal shape ClassifyBatch needs from a caller's article type.
type Article struct {
	Title  string
	Text   string
	Source string
}

// ClassifyBatch classifies multiple articles, preserving input order.
func ClassifyBatch(articles []Article) []Result {
	results := make([]Result, len(articles))
	for i, a := range articles {
		results[i] = Classify(a.Title, a.Text, a.Source)
	}
	return results
}
