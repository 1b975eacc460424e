package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"pdf-rag-chatbot/models"
)

// Match is a chunk record with its cosine similarity to the query.
type Match struct {
	Record models.ChunkRecord
	Score  float32
}

// VectorIndex is an immutable brute-force cosine index over one corpus
// snapshot. Vectors are L2-normalized at build time, so similarity is a dot
// product.
type VectorIndex struct {
	records  []models.ChunkRecord
	vectors  [][]float32
	dim      int
	embedder Embedder
}

// BuildVectorIndex embeds every record. An empty corpus cannot be indexed
// and yields ErrEmptyCorpus.
func BuildVectorIndex(ctx context.Context, embedder Embedder, records []models.ChunkRecord) (*VectorIndex, error) {
	if len(records) == 0 {
		return nil, ErrEmptyCorpus
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Text
	}

	embeddings, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(records) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(records))
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedder returned empty vectors")
	}

	vectors := make([][]float32, len(embeddings))
	for i, vec := range embeddings {
		if len(vec) != dim {
			return nil, fmt.Errorf("chunk %d: embedding dimension %d, want %d", i, len(vec), dim)
		}
		vectors[i] = normalize(vec)
	}

	return &VectorIndex{
		records:  append([]models.ChunkRecord(nil), records...),
		vectors:  vectors,
		dim:      dim,
		embedder: embedder,
	}, nil
}

func (ix *VectorIndex) Len() int { return len(ix.records) }

func (ix *VectorIndex) Dim() int { return ix.dim }

// Query embeds text with the index's embedder and returns the k nearest chunks.
func (ix *VectorIndex) Query(ctx context.Context, text string, k int) ([]Match, error) {
	q, err := ix.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return ix.Search(q, k)
}

// Search returns up to k records ordered by descending similarity. Equal
// scores keep corpus order.
func (ix *VectorIndex) Search(query []float32, k int) ([]Match, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return []Match{}, nil
	}
	if k > len(ix.records) {
		k = len(ix.records)
	}

	q := normalize(query)
	matches := make([]Match, len(ix.vectors))
	for i, vec := range ix.vectors {
		matches[i] = Match{Record: ix.records[i], Score: dot(q, vec)}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	return matches[:k], nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// IndexHolder owns the process-wide index. Writers never mutate an index;
// they invalidate it, which bumps the generation so that a build started
// before the invalidation cannot be installed afterwards.
type IndexHolder struct {
	mu         sync.RWMutex
	current    *VectorIndex
	generation uint64
}

func NewIndexHolder() *IndexHolder {
	return &IndexHolder{}
}

// Current returns the installed index (nil if absent) and the generation it
// belongs to.
func (h *IndexHolder) Current() (*VectorIndex, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.generation
}

// Install sets ix as current if no invalidation happened since generation
// gen was observed.
func (h *IndexHolder) Install(ix *VectorIndex, gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.generation {
		return false
	}
	h.current = ix
	return true
}

// Invalidate marks the index absent and returns the new generation.
func (h *IndexHolder) Invalidate() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	h.generation++
	return h.generation
}
