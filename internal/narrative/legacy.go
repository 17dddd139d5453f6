// Legacy implements the theme-based narrative fallback that predates the
// fingerprint/clustering pipeline, grounded on
// original_source/services/narrative_themes.py's THEME_CATEGORIES and
// original_source/services/narrative_service.py's determine_lifecycle_stage
// (marked deprecated in its own docstring there). Off by default; enabled
// with config.NarrativeConfig.EnableLegacyThemePath for deployments that
// still want the coarser theme-tag view alongside the fingerprint one.
package narrative

import (
	"strings"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
)

// ThemeCategories are the fixed theme tags the legacy path classifies into.
var ThemeCategories = []string{
	"regulatory",
	"defi_adoption",
	"institutional_investment",
	"payments",
	"layer2_scaling",
	"security",
	"infrastructure",
	"nft_gaming",
	"stablecoin",
	"market_analysis",
	"technology",
	"partnerships",
}

// themeKeywords maps each category to the keywords that trigger it. This
// replaces the upstream LLM-based theme extraction with a deterministic
// rule match, consistent with the fallback path's deprecated status.
var themeKeywords = map[string][]string{
	"regulatory":               {"sec", "regulation", "regulatory", "compliance", "lawsuit", "legal"},
	"defi_adoption":            {"defi", "tvl", "yield", "liquidity pool", "lending protocol"},
	"institutional_investment": {"etf", "institutional", "corporate treasury", "fund inflow"},
	"payments":                 {"payment", "merchant", "remittance", "payment rail"},
	"layer2_scaling":           {"layer 2", "l2", "rollup", "scaling"},
	"security":                 {"hack", "exploit", "breach", "security audit", "vulnerability"},
	"infrastructure":           {"validator", "node operator", "network upgrade", "hard fork"},
	"nft_gaming":               {"nft", "gaming", "metaverse"},
	"stablecoin":               {"stablecoin", "depeg", "usdt", "usdc"},
	"market_analysis":          {"price action", "trading volume", "market sentiment", "rally", "selloff"},
	"technology":               {"protocol upgrade", "research", "whitepaper"},
	"partnerships":             {"partnership", "integration", "collaboration"},
}

// ClassifyThemes returns up to 3 matching theme categories for a title and
// summary, in THEME_CATEGORIES order, via deterministic keyword matching.
func ClassifyThemes(title, summary string) []string {
	haystack := strings.ToLower(title + " " + summary)

	var out []string
	for _, theme := range ThemeCategories {
		for _, kw := range themeKeywords[theme] {
			if strings.Contains(haystack, kw) {
				out = append(out, theme)
				break
			}
		}
		if len(out) >= 3 {
			break
		}
	}
	return out
}

// LegacyLifecycleStage reproduces the deprecated momentum-aware stage label,
// distinct from the Narrative.LifecycleState closed set: it additionally
// distinguishes "heating" and "mature" for callers that still read it.
func LegacyLifecycleStage(articleCount int, mentionVelocity float64, momentum persistence.Momentum) string {
	var stage string
	switch {
	case mentionVelocity >= 5:
		stage = "mature"
	case mentionVelocity >= 1.5:
		stage = "hot"
	case articleCount >= 5:
		stage = "hot"
	default:
		stage = "emerging"
	}

	switch {
	case stage == "mature" && momentum == persistence.MomentumDeclining:
		return "cooling"
	case stage == "hot" && momentum == persistence.MomentumGrowing:
		return "heating"
	case stage == "emerging" && momentum == persistence.MomentumGrowing:
		return "rising"
	}

	return stage
}
