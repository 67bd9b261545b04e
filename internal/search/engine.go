package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Source supplies the active article corpus for a rebuild.
type Source func(ctx context.Context) ([]Document, error)

// Stats describes the published snapshot, for reindex responses and metrics.
type Stats struct {
	DocCount   int     `json:"doc_count"`
	ChunkCount int     `json:"chunk_count"`
	AvgDocLen  float64 `json:"avg_doc_length"`
}

// Hit is one scored chunk returned by Search.
type Hit struct {
	ArticleSlug  string  `json:"article_slug"`
	ArticleTitle string  `json:"article_title"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	BM25         float64 `json:"bm25"`
	Prior        float64 `json:"prior"`
}

// Engine holds the current index snapshot and rebuilds it on demand.
//
// Searches read the snapshot pointer once at entry and never block on a
// concurrent rebuild; rebuilds serialize on buildMu and publish with one
// atomic swap, so readers always observe a fully-built snapshot.
type Engine struct {
	source  Source
	buildMu sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewEngine creates an engine with an empty index. Call Reindex to build
// the first snapshot.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Reindex rebuilds the snapshot from the source's active articles and swaps
// it in atomically. A failed build (including an empty corpus) leaves the
// previous snapshot in place.
func (e *Engine) Reindex(ctx context.Context) (Stats, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	docs, err := e.source(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("loading corpus: %w", err)
	}

	snap, err := buildSnapshot(docs)
	if err != nil {
		return Stats{}, err
	}

	e.current.Store(snap)
	return snapStats(snap), nil
}

// Search scores every chunk of the current snapshot against the query and
// returns the top k by descending score. Ties keep corpus insertion order.
// priors maps article slug to a value in [-1, +1]; the final score is
// bm25 * (1 + alpha*prior).
func (e *Engine) Search(query string, k int, priors map[string]float64, alpha float64) []Hit {
	snap := e.current.Load()
	if snap == nil || k <= 0 {
		return nil
	}

	queryTokens := snap.expandQuery(tokenize(query))
	if len(queryTokens) == 0 {
		return nil
	}

	var hits []Hit
	for i := range snap.Chunks {
		ch := &snap.Chunks[i]
		bm25 := snap.score(queryTokens, ch)
		if bm25 <= 0 {
			continue
		}
		prior := priors[ch.ArticleSlug]
		hits = append(hits, Hit{
			ArticleSlug:  ch.ArticleSlug,
			ArticleTitle: ch.ArticleTitle,
			Text:         ch.Text,
			Score:        bm25 * (1 + alpha*prior),
			BM25:         bm25,
			Prior:        prior,
		})
	}

	// Chunks were scored in insertion order; a stable sort preserves that
	// order for equal scores.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Stats reports the currently published snapshot. Zero values mean no
// snapshot has been built yet.
func (e *Engine) Stats() Stats {
	snap := e.current.Load()
	if snap == nil {
		return Stats{}
	}
	return snapStats(snap)
}

func snapStats(s *Snapshot) Stats {
	return Stats{
		DocCount:   s.DocCount,
		ChunkCount: len(s.Chunks),
		AvgDocLen:  s.AvgChunkLen,
	}
}
