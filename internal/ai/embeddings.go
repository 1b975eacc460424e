package ai

import (
	"context"
	"errors"
	"fmt"

	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/telemetry"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// maxBatchEmbed is the per-request limit of BatchEmbedContents.
const maxBatchEmbed = 100

// GeminiEmbedder turns text into vectors with a Google embedding model
// (text-embedding-004 by default). Document and query texts use the matching
// retrieval task types.
type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	batchSize   int
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewGeminiEmbedder(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*GeminiEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}

	batch := cfg.EmbeddingBatchSize
	if batch <= 0 || batch > maxBatchEmbed {
		batch = maxBatchEmbed
	}

	return &GeminiEmbedder{
		client:    client,
		model:     cfg.EmbeddingsModel,
		batchSize: batch,
		breaker:   newBreaker("GeminiEmbeddings", metrics),
		// Embedding quotas are far higher than generation quotas.
		rateLimiter: rate.NewLimiter(rate.Limit(25), 50),
	}, nil
}

// EmbedDocuments embeds texts in order, batching requests.
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.embed_documents")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.embedding_model", e.model),
		attribute.Int("gemini.texts", len(texts)),
	)

	model := e.client.EmbeddingModel(e.model)
	model.TaskType = genai.TaskTypeRetrievalDocument

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		vectors, err := e.call(ctx, func() (interface{}, error) {
			resp, err := model.BatchEmbedContents(ctx, batch)
			if err != nil {
				return nil, err
			}
			vecs := make([][]float32, 0, len(resp.Embeddings))
			for _, emb := range resp.Embeddings {
				if emb == nil {
					return nil, errors.New("no embedding returned")
				}
				vecs = append(vecs, emb.Values)
			}
			return vecs, nil
		})
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}

		got := vectors.([][]float32)
		if len(got) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: expected %d vectors, got %d", start, end, end-start, len(got))
		}
		out = append(out, got...)
	}

	return out, nil
}

// EmbedQuery embeds a single search query.
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.embed_query")
	defer span.End()

	model := e.client.EmbeddingModel(e.model)
	model.TaskType = genai.TaskTypeRetrievalQuery

	v, err := e.call(ctx, func() (interface{}, error) {
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, errors.New("no embedding returned")
		}
		// genai SDK returns []float32 for Embedding.Values
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.([]float32), nil
}

func (e *GeminiEmbedder) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embeddings rate limiter: %w", err)
	}
	v, err := e.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return v, err
}

func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
