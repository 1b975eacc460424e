package services

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

const fakeDim = 256

// hashEmbedder is a deterministic bag-of-words embedder: each lowercase word
// increments one hashed dimension.
type hashEmbedder struct {
	docCalls   atomic.Int32
	queryCalls atomic.Int32
	failDocs   atomic.Bool
}

func embedWords(text string) []float32 {
	vec := make([]float32, fakeDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%fakeDim]++
	}
	return vec
}

func (e *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.docCalls.Add(1)
	if e.failDocs.Load() {
		return nil, errors.New("embedding service unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedWords(t)
	}
	return out, nil
}

func (e *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls.Add(1)
	return embedWords(text), nil
}

// stubGenerator records prompts and answers with a fixed reply or error.
type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	block   chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	block := g.block
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// fileExtractor returns the raw bytes of the uploaded file as its text and
// records the paths it was given.
type fileExtractor struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (e *fileExtractor) ExtractText(_ context.Context, path string) (string, error) {
	e.mu.Lock()
	e.paths = append(e.paths, path)
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (e *fileExtractor) lastPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.paths) == 0 {
		return ""
	}
	return e.paths[len(e.paths)-1]
}
