package search

import (
	"errors"
	"math"
)

// Okapi BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// Metadata boosts folded into chunk term frequencies. Title terms weigh the
// most; tags and synonyms mainly help recall on alternate phrasings.
const (
	titleBoost   = 3
	tagBoost     = 2
	synonymBoost = 2
)

// ErrEmptyCorpus is returned by a build over zero active articles. The
// engine keeps serving the previous snapshot in that case.
var ErrEmptyCorpus = errors.New("search: no active articles to index")

// Document is the indexable projection of a knowledge article.
type Document struct {
	Slug     string
	Title    string
	Tags     []string
	Synonyms []string
	Content  string
}

// Chunk is the unit of retrieval scoring: one bounded span of an article.
type Chunk struct {
	Ordinal      int    // corpus insertion order, used for stable tie-breaks
	ArticleSlug  string
	ArticleTitle string
	Text         string

	tf     map[string]int
	length int
}

// Snapshot is one immutable, fully-built version of the index. Builders
// construct a fresh snapshot off to the side and publish it with a single
// atomic pointer swap; a snapshot is never mutated after construction.
type Snapshot struct {
	Chunks      []Chunk
	DocCount    int
	AvgChunkLen float64

	idf      map[string]float64
	synonyms map[string][]string // query-time expansion: token -> sibling tokens
}

// buildSnapshot tokenizes and chunks every document and computes the corpus
// statistics. Deterministic: the same documents in the same order always
// produce an identical snapshot.
func buildSnapshot(docs []Document) (*Snapshot, error) {
	snap := &Snapshot{
		idf:      make(map[string]float64),
		synonyms: make(map[string][]string),
	}

	for _, doc := range docs {
		titleTokens := tokenize(doc.Title)

		var tagTokens, synTokens []string
		for _, t := range doc.Tags {
			tagTokens = append(tagTokens, tokenize(t)...)
		}
		for _, s := range doc.Synonyms {
			synTokens = append(synTokens, tokenize(s)...)
		}

		// Every token of a tag or synonym entry expands to all tokens of
		// that entry, so a query matching one alternate phrasing also
		// reaches the others.
		for _, entry := range append(append([]string{}, doc.Tags...), doc.Synonyms...) {
			entryTokens := tokenize(entry)
			for _, tok := range entryTokens {
				snap.synonyms[tok] = mergeTokens(snap.synonyms[tok], entryTokens)
			}
		}

		chunks := splitChunks(doc.Content)
		if len(chunks) == 0 {
			continue
		}
		snap.DocCount++

		for _, text := range chunks {
			tf := make(map[string]int)
			for _, tok := range tokenize(text) {
				tf[tok]++
			}
			for _, tok := range titleTokens {
				tf[tok] += titleBoost
			}
			for _, tok := range tagTokens {
				tf[tok] += tagBoost
			}
			for _, tok := range synTokens {
				tf[tok] += synonymBoost
			}

			length := 0
			for _, n := range tf {
				length += n
			}
			if length == 0 {
				length = 1
			}

			snap.Chunks = append(snap.Chunks, Chunk{
				Ordinal:      len(snap.Chunks),
				ArticleSlug:  doc.Slug,
				ArticleTitle: doc.Title,
				Text:         text,
				tf:           tf,
				length:       length,
			})
		}
	}

	if len(snap.Chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	df := make(map[string]int)
	total := 0
	for _, ch := range snap.Chunks {
		total += ch.length
		for tok := range ch.tf {
			df[tok]++
		}
	}
	n := float64(len(snap.Chunks))
	for tok, d := range df {
		snap.idf[tok] = math.Log((n-float64(d)+0.5)/(float64(d)+0.5) + 1.0)
	}
	snap.AvgChunkLen = float64(total) / n

	return snap, nil
}

// expandQuery appends the synonym siblings of each query token, deduplicated
// while preserving order.
func (s *Snapshot) expandQuery(tokens []string) []string {
	var expanded []string
	for _, tok := range tokens {
		expanded = append(expanded, tok)
		expanded = append(expanded, s.synonyms[tok]...)
	}
	seen := make(map[string]struct{}, len(expanded))
	out := expanded[:0]
	for _, tok := range expanded {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// score computes the BM25 score of one chunk for the given query tokens.
func (s *Snapshot) score(queryTokens []string, ch *Chunk) float64 {
	var score float64
	dl := float64(ch.length)
	for _, tok := range queryTokens {
		tf := ch.tf[tok]
		if tf == 0 {
			continue
		}
		idf := s.idf[tok]
		f := float64(tf)
		denom := f + k1*(1-b+b*dl/s.AvgChunkLen)
		score += idf * (f * (k1 + 1)) / denom
	}
	return score
}

func mergeTokens(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range add {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		existing = append(existing, t)
	}
	return existing
}
