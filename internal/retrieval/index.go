// Package retrieval implements the knowledge-base layer: a persistent
// vector index over policy documents and a hybrid retriever that fuses
// vector similarity with keyword matching.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Embedder turns text into a vector. Satisfied by the OpenAI-compatible
// embedding client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is one indexed piece of a document.
type Chunk struct {
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata"`
	Embedding []float32         `json:"embedding"`
}

// snapshot is an immutable built index. Searches read whichever snapshot
// is current; a rebuild produces a new one and swaps it in atomically.
type snapshot struct {
	Chunks  []Chunk   `json:"chunks"`
	BuiltAt time.Time `json:"built_at"`
}

// Index is the vector index over the document knowledge base.
type Index struct {
	embedder Embedder

	chunkSize    int
	chunkOverlap int
	workers      int

	mu   sync.RWMutex
	snap *snapshot
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithChunking sets the chunk size and overlap in runes.
func WithChunking(size, overlap int) IndexOption {
	return func(idx *Index) {
		idx.chunkSize = size
		idx.chunkOverlap = overlap
	}
}

// WithWorkers sets the embedding concurrency during a build.
func WithWorkers(n int) IndexOption {
	return func(idx *Index) {
		idx.workers = n
	}
}

// NewIndex creates an empty index. Call Build or LoadFile before searching.
func NewIndex(embedder Embedder, options ...IndexOption) *Index {
	idx := &Index{
		embedder:     embedder,
		chunkSize:    500,
		chunkOverlap: 50,
		workers:      4,
	}
	for _, option := range options {
		option(idx)
	}
	return idx
}

// Ready reports whether a built snapshot is available.
func (idx *Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snap != nil && len(idx.snap.Chunks) > 0
}

// Size returns the number of indexed chunks.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.snap == nil {
		return 0
	}
	return len(idx.snap.Chunks)
}

// Build reads all .md and .txt documents under docsDir, chunks and embeds
// them, then swaps the new snapshot in. Readers keep using the old
// snapshot until the swap.
func (idx *Index) Build(ctx context.Context, docsDir string) error {
	var chunks []Chunk
	err := filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		fileName := filepath.Base(path)
		for _, text := range splitText(string(data), idx.chunkSize, idx.chunkOverlap) {
			chunks = append(chunks, Chunk{
				Text:     text,
				Metadata: map[string]string{"file_name": fileName},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no documents found under %s", docsDir)
	}

	log.Printf("indexing %d chunks from %s", len(chunks), docsDir)

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(idx.workers)
	for i := range chunks {
		i := i
		p.Go(func(ctx context.Context) error {
			embedding, err := idx.embedder.Embed(ctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			chunks[i].Embedding = embedding
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.snap = &snapshot{Chunks: chunks, BuiltAt: time.Now()}
	idx.mu.Unlock()
	return nil
}

// SaveFile persists the current snapshot as JSON.
func (idx *Index) SaveFile(path string) error {
	idx.mu.RLock()
	snap := idx.snap
	idx.mu.RUnlock()
	if snap == nil {
		return fmt.Errorf("index not built")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFile restores a previously saved snapshot.
func (idx *Index) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse index file %s: %w", path, err)
	}
	if len(snap.Chunks) == 0 {
		return fmt.Errorf("index file %s is empty", path)
	}

	idx.mu.Lock()
	idx.snap = &snap
	idx.mu.Unlock()
	return nil
}

// scoredChunk pairs a chunk with a similarity score during search.
type scoredChunk struct {
	chunk Chunk
	score float64
}

// search returns the top-k chunks by cosine similarity to the query.
func (idx *Index) search(ctx context.Context, query string, k int) ([]scoredChunk, error) {
	idx.mu.RLock()
	snap := idx.snap
	idx.mu.RUnlock()
	if snap == nil {
		return nil, fmt.Errorf("index not built")
	}

	queryEmbedding, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]scoredChunk, 0, len(snap.Chunks))
	for _, chunk := range snap.Chunks {
		scored = append(scored, scoredChunk{
			chunk: chunk,
			score: cosineSimilarity(queryEmbedding, chunk.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// splitText cuts text into overlapping rune windows, preferring paragraph
// boundaries.
func splitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current []rune
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		runes := []rune(paragraph)
		if len(current) > 0 && len(current)+len(runes)+1 > size {
			chunks = append(chunks, string(current))
			if overlap > 0 && len(current) > overlap {
				current = append([]rune(nil), current[len(current)-overlap:]...)
			} else {
				current = nil
			}
		}
		// Paragraphs longer than a chunk get hard-wrapped. The advance is
		// at least one rune so an overlap >= size cannot stall the walk.
		advance := size - overlap
		if advance < 1 {
			advance = 1
		}
		for len(runes) > size {
			if len(current) > 0 {
				chunks = append(chunks, string(current))
				current = nil
			}
			chunks = append(chunks, string(runes[:size]))
			runes = runes[advance:]
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, runes...)
	}
	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}
	return chunks
}
