package enrichment

import (
	"sort"
	"strings"
)

const keywordCap = 10
const minKeywordLen = 3

// stopwords excludes common English function words from keyword counts.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "being": {}, "to": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "for": {}, "with": {}, "by": {}, "from": {}, "as": {}, "that": {},
	"this": {}, "it": {}, "its": {}, "has": {}, "have": {}, "had": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "can": {}, "may": {}, "might": {}, "not": {}, "no": {}, "do": {},
	"does": {}, "did": {}, "than": {}, "then": {}, "there": {}, "their": {}, "them": {}, "they": {},
	"what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {}, "all": {},
	"said": {}, "says": {}, "about": {}, "into": {}, "over": {}, "after": {}, "also": {}, "more": {},
	"most": {}, "some": {}, "such": {}, "other": {}, "new": {}, "one": {}, "two": {}, "his": {},
	"her": {}, "our": {}, "your": {}, "you": {},
}

type wordCount struct {
	word  string
	count int
}

// extractKeywords tokenizes text, drops stopwords/short tokens/all-digit
// tokens, ranks the rest by frequency, and returns the top keywordCap.
// All-caps tokens keep their casing; other tokens are returned capitalized.
// Themes already derived from primary entities are appended (deduplicated)
// to fill out the cap, per §4.G item 5.
func extractKeywords(text string, themes []string) []string {
	counts := make(map[string]int)
	display := make(map[string]string)

	for _, tok := range splitWords(text) {
		if len(tok) < minKeywordLen || isAllDigits(tok) {
			continue
		}
		lower := strings.ToLower(tok)
		if _, stop := stopwords[lower]; stop {
			continue
		}
		counts[lower]++
		if isAllUpper(tok) {
			display[lower] = tok
		} else if _, ok := display[lower]; !ok {
			display[lower] = strings.ToUpper(lower[:1]) + lower[1:]
		}
	}

	ranked := make([]wordCount, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, wordCount{word: w, count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	seen := make(map[string]struct{})
	out := make([]string, 0, keywordCap)
	for _, wc := range ranked {
		if len(out) >= keywordCap {
			break
		}
		out = append(out, display[wc.word])
		seen[wc.word] = struct{}{}
	}

	for _, t := range themes {
		if len(out) >= keywordCap {
			break
		}
		lower := strings.ToLower(t)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, t)
	}

	return out
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '$')
	})
}

func isAllDigits(s string) bool {
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

