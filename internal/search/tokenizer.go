package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// The corpus is authored in Portuguese, so the tokenizer folds accents
// (sincronização -> sincronizacao) before matching. Build-time and
// query-time tokenization share this single implementation; a mismatch
// between the two silently destroys recall.

// stopWords is a fixed short list of Portuguese function words, stored in
// folded form because folding happens before the stop-word check.
var stopWords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {},
	"de": {}, "do": {}, "da": {}, "dos": {}, "das": {},
	"e": {}, "em": {}, "no": {}, "na": {}, "nos": {}, "nas": {},
	"um": {}, "uma": {}, "uns": {}, "umas": {},
	"para": {}, "por": {}, "com": {}, "sem": {},
	"que": {}, "se": {}, "ao": {}, "aos": {},
	"meu": {}, "minha": {}, "seu": {}, "sua": {},
	"nao": {}, "sim": {}, "ja": {}, "mais": {}, "mas": {},
	"como": {}, "quando": {}, "onde": {}, "esta": {}, "estao": {},
}

// foldAccents strips combining marks after NFD decomposition.
func foldAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tokenize lowercases, folds accents, extracts [a-z0-9]+ runs and drops
// stop-words. It is used for article content, metadata fields and queries
// alike.
func tokenize(text string) []string {
	folded := foldAccents(strings.ToLower(text))

	var tokens []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := folded[start:end]
		start = -1
		if _, stop := stopWords[tok]; stop {
			return
		}
		tokens = append(tokens, tok)
	}
	for i, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(folded))
	return tokens
}
