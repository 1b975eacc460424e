package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/models"
)

// DefaultCorpusTTL is how long a corpus snapshot is served without rescanning.
const DefaultCorpusTTL = 300 * time.Second

// CorpusSource lists every stored document.
type CorpusSource interface {
	List(ctx context.Context) ([]models.StoredDocument, error)
}

// CorpusCache holds one snapshot of all retrievable chunks. There is a
// single corpus, so there is a single entry; Invalidate drops it entirely.
type CorpusCache struct {
	source  CorpusSource
	chunker *Chunker
	ttl     time.Duration
	now     func() time.Time
	metrics *telemetry.Metrics

	mu       sync.Mutex
	snapshot *models.CorpusSnapshot
}

func NewCorpusCache(source CorpusSource, chunker *Chunker, ttl time.Duration, metrics *telemetry.Metrics) *CorpusCache {
	if ttl <= 0 {
		ttl = DefaultCorpusTTL
	}
	return &CorpusCache{
		source:  source,
		chunker: chunker,
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
	}
}

// Get returns the chunk records of the whole corpus, rescanning the store
// when the snapshot is missing, older than the TTL, or forceRefresh is set.
// The returned slice is shared and must not be modified.
func (c *CorpusCache) Get(ctx context.Context, forceRefresh bool) ([]models.ChunkRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.snapshot != nil && c.now().Sub(c.snapshot.FetchedAt) < c.ttl {
		c.metrics.RecordCorpusCacheLookup(true)
		return c.snapshot.Records, nil
	}
	c.metrics.RecordCorpusCacheLookup(false)

	docs, err := c.source.List(ctx)
	if err != nil {
		return nil, err
	}

	records := c.flatten(docs)
	c.snapshot = &models.CorpusSnapshot{Records: records, FetchedAt: c.now()}

	logger.Debug("Corpus snapshot refreshed", "documents", len(docs), "chunks", len(records))
	return records, nil
}

// Invalidate drops the snapshot. It waits for an in-flight scan, so the
// next Get always rescans.
func (c *CorpusCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}

func (c *CorpusCache) flatten(docs []models.StoredDocument) []models.ChunkRecord {
	records := make([]models.ChunkRecord, 0)
	for _, doc := range docs {
		chunks := doc.Chunks
		if len(chunks) == 0 && strings.TrimSpace(doc.FullText) != "" {
			chunks = c.chunker.Split(doc.FullText)
		}

		for i, chunk := range chunks {
			if strings.TrimSpace(chunk) == "" {
				continue
			}
			records = append(records, models.ChunkRecord{
				Text:       chunk,
				Source:     doc.Filename,
				ChunkIndex: i,
				Backend:    doc.Backend,
			})
		}
	}
	return records
}
