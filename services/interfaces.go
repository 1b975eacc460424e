package services

import (
	"context"

	"pdf-rag-chatbot/models"
)

// Embedder maps text to fixed-length vectors. EmbedDocuments returns one
// vector per input, in order.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextExtractor reads the plain text of a document on disk.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// DocumentStore persists documents keyed by filename.
//
// DeleteAll removes at most one bounded batch per call and returns how many
// documents it removed; callers loop until it returns 0. It never errors on
// an empty store.
type DocumentStore interface {
	Put(ctx context.Context, doc models.Document) error
	List(ctx context.Context) ([]models.Document, error)
	DeleteAll(ctx context.Context) (int, error)
}

// Invalidator drops derived retrieval state after the corpus changes.
type Invalidator interface {
	Invalidate()
}
