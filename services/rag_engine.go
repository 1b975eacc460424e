package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/internal/workerpool"
	"pdf-rag-chatbot/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const (
	// NoDocumentsResponse answers queries against an empty corpus.
	NoDocumentsResponse = "No documents have been uploaded yet. Please upload a PDF document first."

	DefaultRetrievalK  = 5
	DefaultSimilarityK = 3

	excerptLength = 200
)

const qaPromptTemplate = `You are a helpful AI assistant that answers questions based on the provided context.
Use the following pieces of context to answer the question at the end.

If you don't know the answer based on the context, just say "I don't have enough information to answer this question based on the provided documents."

Context:
%s

Question: %s

Answer: Provide a detailed and accurate answer based strictly on the context above.`

// RAGEngineConfig tunes retrieval and generation.
type RAGEngineConfig struct {
	RetrievalK        int
	SimilarityK       int
	GenerationTimeout time.Duration
	// IndexBuildTimeout bounds a shared index build. The build outlives the
	// request that started it, since other queries may be waiting on it.
	IndexBuildTimeout time.Duration
}

// RAGEngine answers questions over the stored corpus. The vector index is
// built lazily on the first query after an invalidation; concurrent queries
// share one build.
type RAGEngine struct {
	corpus    *CorpusCache
	holder    *IndexHolder
	embedder  Embedder
	generator Generator
	pool      *workerpool.Pool
	metrics   *telemetry.Metrics

	builds singleflight.Group

	retrievalK        int
	similarityK       int
	generationTimeout time.Duration
	indexBuildTimeout time.Duration
}

func NewRAGEngine(corpus *CorpusCache, embedder Embedder, generator Generator, pool *workerpool.Pool, cfg RAGEngineConfig, metrics *telemetry.Metrics) *RAGEngine {
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = DefaultRetrievalK
	}
	if cfg.SimilarityK <= 0 {
		cfg.SimilarityK = DefaultSimilarityK
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 60 * time.Second
	}
	if cfg.IndexBuildTimeout <= 0 {
		cfg.IndexBuildTimeout = 5 * time.Minute
	}
	return &RAGEngine{
		corpus:            corpus,
		holder:            NewIndexHolder(),
		embedder:          embedder,
		generator:         generator,
		pool:              pool,
		metrics:           metrics,
		retrievalK:        cfg.RetrievalK,
		similarityK:       cfg.SimilarityK,
		generationTimeout: cfg.GenerationTimeout,
		indexBuildTimeout: cfg.IndexBuildTimeout,
	}
}

// Ready reports whether the embedding and generation components exist.
func (e *RAGEngine) Ready() bool {
	return e.embedder != nil && e.generator != nil
}

// Invalidate drops the corpus snapshot and the index. The corpus goes first
// so that a build observing the new generation also rescans the store.
func (e *RAGEngine) Invalidate() {
	e.corpus.Invalidate()
	gen := e.holder.Invalidate()
	logger.Debug("Retrieval state invalidated", "generation", gen)
}

// Answer retrieves the most relevant chunks for query and asks the model to
// answer from them. An empty corpus short-circuits to NoDocumentsResponse
// without calling the model.
func (e *RAGEngine) Answer(ctx context.Context, query string) (*models.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Message: "Query cannot be empty"}
	}

	tracer := otel.Tracer("rag-engine")
	ctx, span := tracer.Start(ctx, "rag.answer")
	defer span.End()

	ix, err := e.ensureIndex(ctx)
	if errors.Is(err, ErrEmptyCorpus) {
		span.SetAttributes(attribute.Bool("rag.empty_corpus", true))
		return &models.Answer{Response: NoDocumentsResponse, Sources: []models.SourceDocument{}}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	matches, err := e.retrieve(ctx, ix, query, e.retrievalK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.retrieved", len(matches)))

	prompt := BuildQAPrompt(matches, query)

	genCtx, cancel := context.WithTimeout(ctx, e.generationTimeout)
	defer cancel()

	text, err := workerpool.Run(genCtx, e.pool, func(ctx context.Context) (string, error) {
		return e.generator.Generate(ctx, prompt)
	})
	if err != nil {
		genErr := &GenerationError{Err: err}
		logger.Error("Generation failed", "error", err, "chunks", len(matches))
		span.RecordError(genErr)
		span.SetStatus(codes.Error, genErr.Error())
		return nil, genErr
	}

	sources := make([]models.SourceDocument, len(matches))
	for i, m := range matches {
		sources[i] = models.SourceDocument{
			Content:  Excerpt(m.Record.Text),
			Metadata: metadataFor(m.Record),
		}
	}

	logger.Info("Query processed successfully", "query", truncateRunes(query, 50), "sources", len(sources))
	return &models.Answer{Response: text, Sources: sources}, nil
}

// SimilaritySearch returns the k chunks nearest to query with full content
// and scores, without calling the model. k <= 0 selects the default.
func (e *RAGEngine) SimilaritySearch(ctx context.Context, query string, k int) ([]models.SourceDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Message: "Query cannot be empty"}
	}
	if k <= 0 {
		k = e.similarityK
	}

	tracer := otel.Tracer("rag-engine")
	ctx, span := tracer.Start(ctx, "rag.similarity_search")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.k", k))

	ix, err := e.ensureIndex(ctx)
	if err != nil {
		if !errors.Is(err, ErrEmptyCorpus) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	matches, err := e.retrieve(ctx, ix, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]models.SourceDocument, len(matches))
	for i, m := range matches {
		score := m.Score
		results[i] = models.SourceDocument{
			Content:  m.Record.Text,
			Metadata: metadataFor(m.Record),
			Score:    &score,
		}
	}
	return results, nil
}

// ensureIndex returns the current index, building it when absent. Builds are
// keyed by generation so a build started before an invalidation is never
// shared with callers that arrive after it. A caller whose ctx ends stops
// waiting; the build itself carries on for the others.
func (e *RAGEngine) ensureIndex(ctx context.Context) (*VectorIndex, error) {
	ix, gen := e.holder.Current()
	if ix != nil {
		return ix, nil
	}

	ch := e.builds.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		if ix, cur := e.holder.Current(); ix != nil && cur == gen {
			return ix, nil
		}
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.indexBuildTimeout)
		defer cancel()
		return e.build(buildCtx, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug("Joined in-flight index build", "generation", gen)
		}
		return res.Val.(*VectorIndex), nil
	}
}

func (e *RAGEngine) build(ctx context.Context, gen uint64) (*VectorIndex, error) {
	records, err := e.corpus.Get(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyCorpus
	}

	tracer := otel.Tracer("rag-engine")
	ctx, span := tracer.Start(ctx, "rag.build_index")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.chunks", len(records)))

	start := time.Now()
	ix, err := workerpool.Run(ctx, e.pool, func(ctx context.Context) (*VectorIndex, error) {
		return BuildVectorIndex(ctx, e.embedder, records)
	})
	e.metrics.RecordIndexBuild(time.Since(start).Seconds(), len(records), err == nil)
	if err != nil {
		buildErr := &IndexBuildError{Chunks: len(records), Err: err}
		logger.Error("Vector index build failed", "chunks", len(records), "error", err)
		span.RecordError(buildErr)
		span.SetStatus(codes.Error, buildErr.Error())
		return nil, buildErr
	}

	if e.holder.Install(ix, gen) {
		logger.Info("Vector index created", "chunks", ix.Len(), "generation", gen, "duration", time.Since(start))
	} else {
		logger.Debug("Discarded index built for stale generation", "generation", gen)
	}
	return ix, nil
}

func (e *RAGEngine) retrieve(ctx context.Context, ix *VectorIndex, query string, k int) ([]Match, error) {
	matches, err := workerpool.Run(ctx, e.pool, func(ctx context.Context) ([]Match, error) {
		return ix.Query(ctx, query, k)
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	return matches, nil
}

// BuildQAPrompt fills the question-answering template with the retrieved
// chunks, separated by blank lines, and the literal query.
func BuildQAPrompt(matches []Match, query string) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Record.Text
	}
	return fmt.Sprintf(qaPromptTemplate, strings.Join(parts, "\n\n"), query)
}

// Excerpt returns the first 200 characters of text followed by "...".
func Excerpt(text string) string {
	return truncateRunes(text, excerptLength) + "..."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func metadataFor(rec models.ChunkRecord) models.SourceMetadata {
	return models.SourceMetadata{
		Source:  rec.Source,
		ChunkID: rec.ChunkIndex,
		Storage: rec.Backend,
	}
}
