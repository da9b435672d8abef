package retrieval

import (
	"context"
	"sort"

	"github.com/finagent-ai/finagent"
)

const (
	vectorWeight  = 0.6
	keywordWeight = 0.4

	baseThreshold  = 0.7
	minThreshold   = 0.6
	maxThreshold   = 0.8
	relaxStep      = 0.1
	relaxFloor     = 0.5
	shortQueryLen  = 10
	longQueryLen   = 50
	fewResults     = 3
	manyResults    = 10
)

// HybridRetriever ranks knowledge-base chunks by a fusion of vector
// similarity and keyword matching, then applies an adaptive score
// threshold. It widens the candidate net to 2k and guarantees a non-empty
// result whenever any candidate existed.
type HybridRetriever struct {
	index  *Index
	hybrid bool
}

// RetrieverOption configures a HybridRetriever.
type RetrieverOption func(*HybridRetriever)

// WithHybridMode toggles keyword fusion. When disabled, retrieval returns
// plain vector results.
func WithHybridMode(enabled bool) RetrieverOption {
	return func(r *HybridRetriever) {
		r.hybrid = enabled
	}
}

// NewHybridRetriever wraps an index.
func NewHybridRetriever(index *Index, options ...RetrieverOption) *HybridRetriever {
	r := &HybridRetriever{index: index, hybrid: true}
	for _, option := range options {
		option(r)
	}
	return r
}

var _ finagent.Retriever = (*HybridRetriever)(nil)

// Ready reports whether the underlying index is built.
func (r *HybridRetriever) Ready() bool {
	return r.index.Ready()
}

// Retrieve returns up to topK ranked chunks for the query.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]finagent.RetrievedSource, error) {
	if !r.index.Ready() {
		return nil, finagent.NewIndexNotReadyError()
	}
	if topK <= 0 {
		topK = 3
	}

	if !r.hybrid {
		candidates, err := r.index.search(ctx, query, topK)
		if err != nil {
			return nil, err
		}
		return toSources(candidates), nil
	}

	// Widen the net: fetch 2k vector candidates for reranking.
	candidates, err := r.index.search(ctx, query, 2*topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	reranked := rerank(query, candidates, 2*topK)
	threshold := adaptiveThreshold(query, len(reranked))

	filtered := filterByScore(reranked, threshold)
	if len(filtered) < topK {
		relaxed := threshold - relaxStep
		if relaxed < relaxFloor {
			relaxed = relaxFloor
		}
		filtered = filterByScore(reranked, relaxed)
	}

	result := filtered
	if len(result) == 0 {
		result = reranked
	}
	if len(result) > topK {
		result = result[:topK]
	}
	return toSources(result), nil
}

// rerank fuses vector and keyword scores, keyed by chunk text.
func rerank(query string, candidates []scoredChunk, keep int) []scoredChunk {
	tokens := tokenize(query)

	combined := make(map[string]float64, len(candidates))
	chunks := make(map[string]Chunk, len(candidates))
	for _, c := range candidates {
		combined[c.chunk.Text] += vectorWeight * c.score
		chunks[c.chunk.Text] = c.chunk
	}
	for _, c := range candidates {
		kw := keywordScore(tokens, c.chunk.Text)
		if kw == 0 {
			continue
		}
		normalized := kw / 10
		if normalized > 1 {
			normalized = 1
		}
		combined[c.chunk.Text] += keywordWeight * normalized
	}

	reranked := make([]scoredChunk, 0, len(combined))
	for text, score := range combined {
		reranked = append(reranked, scoredChunk{chunk: chunks[text], score: score})
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].score > reranked[j].score
	})
	if len(reranked) > keep {
		reranked = reranked[:keep]
	}
	return reranked
}

// adaptiveThreshold picks the score cutoff from query length and result
// count, clamped to [0.6, 0.8].
func adaptiveThreshold(query string, resultCount int) float64 {
	threshold := baseThreshold
	queryLen := len([]rune(query))
	if queryLen < shortQueryLen {
		threshold = 0.75
	} else if queryLen > longQueryLen {
		threshold = 0.65
	}

	if resultCount < fewResults {
		threshold -= 0.05
	} else if resultCount > manyResults {
		threshold += 0.05
	}

	if threshold < minThreshold {
		threshold = minThreshold
	}
	if threshold > maxThreshold {
		threshold = maxThreshold
	}
	return threshold
}

func filterByScore(candidates []scoredChunk, threshold float64) []scoredChunk {
	filtered := make([]scoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.score >= threshold {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func toSources(candidates []scoredChunk) []finagent.RetrievedSource {
	sources := make([]finagent.RetrievedSource, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, finagent.RetrievedSource{
			Text:     c.chunk.Text,
			Score:    c.score,
			Metadata: c.chunk.Metadata,
		})
	}
	return sources
}
