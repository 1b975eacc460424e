package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"pdf-rag-chatbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu    sync.Mutex
	docs  []models.StoredDocument
	scans int
}

func (s *countingSource) List(context.Context) ([]models.StoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	return append([]models.StoredDocument(nil), s.docs...), nil
}

func (s *countingSource) add(doc models.StoredDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}

func (s *countingSource) scanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(src CorpusSource) (*CorpusCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCorpusCache(src, NewChunker(), 300*time.Second, nil)
	cache.now = clock.Now
	return cache, clock
}

func stored(name string, backend models.BackendTag, chunks ...string) models.StoredDocument {
	return models.StoredDocument{
		Document: models.Document{Filename: name, FullText: strings.Join(chunks, " "), Chunks: chunks},
		Backend:  backend,
	}
}

func TestCorpusCacheHitWithinTTL(t *testing.T) {
	src := &countingSource{docs: []models.StoredDocument{stored("a.pdf", models.BackendPrimary, "one", "two")}}
	cache, clock := newTestCache(src)
	ctx := context.Background()

	first, err := cache.Get(ctx, false)
	require.NoError(t, err)
	clock.Advance(299 * time.Second)
	second, err := cache.Get(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.scanCount())
}

func TestCorpusCacheExpiresAfterTTL(t *testing.T) {
	src := &countingSource{}
	cache, clock := newTestCache(src)
	ctx := context.Background()

	_, err := cache.Get(ctx, false)
	require.NoError(t, err)
	clock.Advance(301 * time.Second)
	_, err = cache.Get(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, src.scanCount())
}

func TestCorpusCacheInvalidateAndForceRefresh(t *testing.T) {
	src := &countingSource{}
	cache, _ := newTestCache(src)
	ctx := context.Background()

	records, err := cache.Get(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, records)

	src.add(stored("new.pdf", models.BackendFallback, "fresh chunk"))

	records, err = cache.Get(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, records, "stale snapshot is served until invalidated")

	cache.Invalidate()
	records, err = cache.Get(ctx, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new.pdf", records[0].Source)

	_, err = cache.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 3, src.scanCount())
}

func TestCorpusCacheFlatten(t *testing.T) {
	src := &countingSource{docs: []models.StoredDocument{
		stored("a.pdf", models.BackendPrimary, "first", "   ", "third"),
		{
			Document: models.Document{Filename: "legacy.pdf", FullText: "Only full text was stored for this one."},
			Backend:  models.BackendFallback,
		},
		{Document: models.Document{Filename: "blank.pdf", FullText: "  \n "}, Backend: models.BackendPrimary},
	}}
	cache, _ := newTestCache(src)

	records, err := cache.Get(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, models.ChunkRecord{Text: "first", Source: "a.pdf", ChunkIndex: 0, Backend: models.BackendPrimary}, records[0])
	assert.Equal(t, 2, records[1].ChunkIndex, "blank chunks are skipped but keep their position")
	assert.Equal(t, "legacy.pdf", records[2].Source)
	assert.Equal(t, "Only full text was stored for this one.", records[2].Text)
	assert.Equal(t, models.BackendFallback, records[2].Backend)
}
