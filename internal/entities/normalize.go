// Package entities maps cryptocurrency ticker variants and aliases to a
// single canonical display name so downstream signal and narrative logic
// never has to reconcile "BTC", "$BTC", and "Bitcoin" as distinct entities.
package entities

import "strings"

// canonicalVariants maps a canonical entity name to every variant that
// should resolve back to it. Matching is case-insensitive; the lookup table
// below is built once at init from this list.
var canonicalVariants = map[string][]string{
	"Bitcoin":           {"BTC", "$BTC", "bitcoin"},
	"Ethereum":          {"ETH", "$ETH", "ethereum"},
	"Solana":            {"SOL", "$SOL", "solana"},
	"Dogecoin":          {"DOGE", "$DOGE", "dogecoin"},
	"Litecoin":          {"LTC", "$LTC", "litecoin"},
	"Cardano":           {"ADA", "$ADA", "cardano"},
	"Polkadot":          {"DOT", "$DOT", "polkadot"},
	"Avalanche":         {"AVAX", "$AVAX", "avalanche"},
	"Chainlink":         {"LINK", "$LINK", "chainlink"},
	"Polygon":           {"MATIC", "$MATIC", "polygon"},
	"Ripple":            {"XRP", "$XRP", "ripple"},
	"Binance Coin":      {"BNB", "$BNB", "binance coin"},
	"Uniswap":           {"UNI", "$UNI", "uniswap"},
	"Shiba Inu":         {"SHIB", "$SHIB", "shiba inu"},
	"Tron":              {"TRX", "$TRX", "tron"},
	"Cosmos":            {"ATOM", "$ATOM", "cosmos"},
	"Stellar":           {"XLM", "$XLM", "stellar"},
	"Monero":            {"XMR", "$XMR", "monero"},
	"EOS":               {"EOS", "$EOS"},
	"Tezos":             {"XTZ", "$XTZ", "tezos"},
	"Aave":              {"AAVE", "$AAVE"},
	"Algorand":          {"ALGO", "$ALGO", "algorand"},
	"VeChain":           {"VET", "$VET", "vechain"},
	"Filecoin":          {"FIL", "$FIL", "filecoin"},
	"Internet Computer": {"ICP", "$ICP", "internet computer"},
	"The Graph":         {"GRT", "$GRT", "the graph"},
	"Hedera":            {"HBAR", "$HBAR", "hedera"},
	"Elrond":            {"EGLD", "$EGLD", "elrond"},
	"Theta":             {"THETA", "$THETA"},
	"ApeCoin":           {"APE", "$APE", "apecoin"},
	"Decentraland":      {"MANA", "$MANA", "decentraland"},
	"The Sandbox":       {"SAND", "$SAND", "the sandbox"},
	"Axie Infinity":     {"AXS", "$AXS", "axie infinity"},
	"Fantom":            {"FTM", "$FTM", "fantom"},
	"Near Protocol":     {"NEAR", "$NEAR", "near protocol"},
	"Arbitrum":          {"ARB", "$ARB", "arbitrum"},
	"Optimism":          {"OP", "$OP", "optimism"},
	"Aptos":             {"APT", "$APT", "aptos"},
	"Sui":               {"SUI", "$SUI"},
	"Pepe":              {"PEPE", "$PEPE"},
	"Injective":         {"INJ", "$INJ", "injective"},
	"Stacks":            {"STX", "$STX", "stacks"},
	"Render":            {"RNDR", "$RNDR", "render"},
	"Immutable":         {"IMX", "$IMX", "immutable"},
	"Kaspa":             {"KAS", "$KAS", "kaspa"},
	"Celestia":          {"TIA", "$TIA", "celestia"},
	"Sei":               {"SEI", "$SEI"},
	"Lido DAO":          {"LDO", "$LDO", "lido dao", "Lido"},
	"Maker":             {"MKR", "$MKR", "maker", "MakerDAO"},
	"Compound":          {"COMP", "$COMP", "compound"},
}

var variantToCanonical map[string]string

func init() {
	variantToCanonical = make(map[string]string, len(canonicalVariants)*4)
	for canonical, variants := range canonicalVariants {
		variantToCanonical[strings.ToLower(canonical)] = canonical
		for _, v := range variants {
			variantToCanonical[strings.ToLower(v)] = canonical
		}
	}
}

// Normalize returns the canonical display name for an entity name or ticker
// variant. Lookup is case-insensitive. Unknown names pass through unchanged.
// Normalize is pure and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(entityName string) string {
	if entityName == "" {
		return entityName
	}
	if canonical, ok := variantToCanonical[strings.ToLower(entityName)]; ok {
		return canonical
	}
	return entityName
}

// CanonicalNames returns every canonical entity name known to the mapping.
func CanonicalNames() []string {
	names := make([]string, 0, len(canonicalVariants))
	for name := range canonicalVariants {
		names = append(names, name)
	}
	return names
}

// Variants returns the known variant spellings for a canonical name, or nil
// if the name is not tracked.
func Variants(canonicalName string) []string {
	return canonicalVariants[canonicalName]
}

// IsCanonical reports whether entityName is already a tracked canonical name.
func IsCanonical(entityName string) bool {
	_, ok := canonicalVariants[entityName]
	return ok
}
