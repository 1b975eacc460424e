package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"pdf-rag-chatbot/internal/workerpool"
	"pdf-rag-chatbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	source    *countingSource
	embedder  *hashEmbedder
	generator *stubGenerator
	engine    *RAGEngine
}

func newEngineFixture(t *testing.T, cfg RAGEngineConfig) *engineFixture {
	t.Helper()

	pool, err := workerpool.New("test", &workerpool.Config{Capacity: 4, ExpiryDuration: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Release(time.Second) })

	f := &engineFixture{
		source:    &countingSource{},
		embedder:  &hashEmbedder{},
		generator: &stubGenerator{reply: "generated answer"},
	}
	cache := NewCorpusCache(f.source, NewChunker(), time.Minute, nil)
	f.engine = NewRAGEngine(cache, f.embedder, f.generator, pool, cfg, nil)
	return f
}

func TestAnswerEmptyCorpus(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})

	answer, err := f.engine.Answer(context.Background(), "what is in the documents?")
	require.NoError(t, err)

	assert.Equal(t, NoDocumentsResponse, answer.Response)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, f.generator.prompts, "model must not be called for an empty corpus")
	assert.Equal(t, int32(0), f.embedder.docCalls.Load())
}

func TestAnswerBlankQuery(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})

	_, err := f.engine.Answer(context.Background(), "   ")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAnswerBuildsPromptAndSources(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{RetrievalK: 2})
	long := strings.Repeat("photosynthesis converts light into chemical energy ", 10)
	f.source.add(stored("biology.pdf", models.BackendPrimary, long, "mitochondria are the powerhouse of the cell"))
	f.source.add(stored("space.pdf", models.BackendFallback, "rockets reach orbit by burning fuel"))

	answer, err := f.engine.Answer(context.Background(), "How does photosynthesis convert light?")
	require.NoError(t, err)

	assert.Equal(t, "generated answer", answer.Response)
	require.Len(t, answer.Sources, 2)

	top := answer.Sources[0]
	assert.Equal(t, "biology.pdf", top.Metadata.Source)
	assert.Equal(t, 0, top.Metadata.ChunkID)
	assert.Equal(t, models.BackendPrimary, top.Metadata.Storage)
	assert.True(t, strings.HasSuffix(top.Content, "..."))
	assert.Equal(t, excerptLength+3, utf8.RuneCountInString(top.Content))
	assert.Nil(t, top.Score)

	prompt := f.generator.lastPrompt()
	assert.Contains(t, prompt, "Question: How does photosynthesis convert light?")
	assert.Contains(t, prompt, "I don't have enough information to answer this question based on the provided documents.")
	assert.Contains(t, prompt, strings.TrimSpace(long))
}

func TestAnswerReusesIndexUntilInvalidated(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})
	ctx := context.Background()
	f.source.add(stored("a.pdf", models.BackendPrimary, "alpha beta gamma"))

	_, err := f.engine.Answer(ctx, "alpha")
	require.NoError(t, err)
	_, err = f.engine.Answer(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.embedder.docCalls.Load())

	f.source.add(stored("b.pdf", models.BackendPrimary, "delta epsilon zeta"))
	f.engine.Invalidate()

	results, err := f.engine.SimilaritySearch(ctx, "delta epsilon", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.embedder.docCalls.Load())
	require.Len(t, results, 1)
	assert.Equal(t, "b.pdf", results[0].Metadata.Source, "newly ingested chunks are retrievable after invalidation")
}

func TestAnswerGenerationFailure(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})
	f.source.add(stored("a.pdf", models.BackendPrimary, "some content"))
	f.generator.err = errors.New("quota exceeded")

	_, err := f.engine.Answer(context.Background(), "anything")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAnswerGenerationTimeout(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{GenerationTimeout: 50 * time.Millisecond})
	f.source.add(stored("a.pdf", models.BackendPrimary, "some content"))
	f.generator.block = make(chan struct{})
	defer close(f.generator.block)

	_, err := f.engine.Answer(context.Background(), "anything")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnswerIndexBuildFailure(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})
	f.source.add(stored("a.pdf", models.BackendPrimary, "some content"))
	f.embedder.failDocs.Store(true)

	_, err := f.engine.Answer(context.Background(), "anything")
	var buildErr *IndexBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 1, buildErr.Chunks)

	ix, _ := f.engine.holder.Current()
	assert.Nil(t, ix)
}

func TestSimilaritySearch(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})
	ctx := context.Background()

	_, err := f.engine.SimilaritySearch(ctx, "anything", 2)
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	f.source.add(stored("one.pdf", models.BackendPrimary, "red apples", "green pears", "yellow bananas"))
	f.source.add(stored("two.pdf", models.BackendPrimary, "blue berries", "purple grapes"))
	f.engine.Invalidate()

	results, err := f.engine.SimilaritySearch(ctx, "green pears", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEmpty(t, r.Content)
		assert.Contains(t, []string{"one.pdf", "two.pdf"}, r.Metadata.Source)
		require.NotNil(t, r.Score)
	}
	assert.Equal(t, "green pears", results[0].Content)

	defaults, err := f.engine.SimilaritySearch(ctx, "fruit", 0)
	require.NoError(t, err)
	assert.Len(t, defaults, DefaultSimilarityK)
	assert.Empty(t, f.generator.prompts)
}

func TestConcurrentQueriesShareOneBuild(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})
	f.source.add(stored("a.pdf", models.BackendPrimary, "alpha", "beta", "gamma"))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SimilaritySearch(context.Background(), "alpha", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.embedder.docCalls.Load())
}

// gatedEmbedder holds document embedding until released or ctx ends.
type gatedEmbedder struct {
	*hashEmbedder
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (e *gatedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.once.Do(func() { close(e.started) })
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.hashEmbedder.EmbedDocuments(ctx, texts)
}

func TestIndexBuildOutlivesCancelledCaller(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})
	gated := &gatedEmbedder{
		hashEmbedder: f.embedder,
		started:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	f.engine.embedder = gated
	f.source.add(stored("a.pdf", models.BackendPrimary, "alpha", "beta", "gamma"))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.engine.SimilaritySearch(firstCtx, "alpha", 1)
		firstErr <- err
	}()

	select {
	case <-gated.started:
	case <-time.After(2 * time.Second):
		t.Fatal("index build never started")
	}

	second := make(chan error, 1)
	go func() {
		results, err := f.engine.SimilaritySearch(context.Background(), "alpha", 1)
		if err == nil && (len(results) != 1 || results[0].Content != "alpha") {
			err = errors.New("unexpected results")
		}
		second <- err
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(gated.release)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), f.embedder.docCalls.Load())
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short...", Excerpt("short"))

	text := strings.Repeat("é", 250)
	got := Excerpt(text)
	assert.Equal(t, strings.Repeat("é", 200)+"...", got)
}

func TestReady(t *testing.T) {
	f := newEngineFixture(t, RAGEngineConfig{})
	assert.True(t, f.engine.Ready())

	bare := NewRAGEngine(NewCorpusCache(&countingSource{}, NewChunker(), 0, nil), nil, nil, nil, RAGEngineConfig{}, nil)
	assert.False(t, bare.Ready())
}
