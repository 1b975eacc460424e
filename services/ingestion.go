package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/internal/workerpool"
	"pdf-rag-chatbot/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// minTextRunes is the fewest non-whitespace characters a document must
	// yield to be indexed.
	minTextRunes = 10

	uploadPattern = "upload-*.pdf"
)

// IngestorConfig controls where uploads are staged and how long extraction
// may take.
type IngestorConfig struct {
	UploadDir         string
	ExtractionTimeout time.Duration
}

// Ingestor turns uploaded PDFs into stored, chunked documents and owns the
// bulk operations on the store. Every write invalidates the retrieval state.
type Ingestor struct {
	backend     *StorageBackend
	extractor   TextExtractor
	chunker     *Chunker
	invalidator Invalidator
	pool        *workerpool.Pool
	metrics     *telemetry.Metrics

	uploadDir         string
	extractionTimeout time.Duration
}

func NewIngestor(backend *StorageBackend, extractor TextExtractor, chunker *Chunker, invalidator Invalidator, pool *workerpool.Pool, cfg IngestorConfig, metrics *telemetry.Metrics) *Ingestor {
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = 120 * time.Second
	}
	return &Ingestor{
		backend:           backend,
		extractor:         extractor,
		chunker:           chunker,
		invalidator:       invalidator,
		pool:              pool,
		metrics:           metrics,
		uploadDir:         cfg.UploadDir,
		extractionTimeout: cfg.ExtractionTimeout,
	}
}

// Ingest stages r on disk, extracts and chunks its text, and stores the
// result under the base name of filename. Re-uploading a filename replaces
// the previous document.
func (in *Ingestor) Ingest(ctx context.Context, filename string, r io.Reader) (result *models.IngestResult, err error) {
	name, err := validatePDFName(filename)
	if err != nil {
		return nil, err
	}

	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingest.pdf")
	defer span.End()
	span.SetAttributes(attribute.String("document.filename", name))

	start := time.Now()
	backend := models.BackendTag("none")
	chunkCount := 0
	defer func() {
		status := "success"
		if err != nil {
			status = ingestStatus(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		in.metrics.RecordIngest(time.Since(start).Seconds(), status, string(backend), chunkCount)
	}()

	path, err := in.stage(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("Failed to remove staged upload", "path", path, "error", rmErr)
		}
	}()

	text, err := in.extract(ctx, name, path)
	if err != nil {
		return nil, err
	}

	if n := countNonSpace(text); n < minTextRunes {
		return nil, &EmptyDocumentError{Filename: name, NonWhitespace: n}
	}

	chunks := in.chunker.Split(text)
	chunkCount = len(chunks)

	backend, err = in.backend.Put(ctx, models.Document{
		Filename: name,
		FullText: text,
		Chunks:   chunks,
	})
	// The attempted write may have reached either store.
	in.invalidator.Invalidate()
	if err != nil {
		logger.Error("Failed to store document", "filename", name, "error", err)
		return nil, err
	}

	logger.Info("PDF processed",
		"filename", name,
		"chunks", len(chunks),
		"storage", backend,
		"duration", time.Since(start),
	)

	return &models.IngestResult{
		Filename:      name,
		ChunksCreated: len(chunks),
		TextLength:    utf8.RuneCountInString(text),
		Storage:       backend,
	}, nil
}

func (in *Ingestor) stage(r io.Reader) (string, error) {
	if err := os.MkdirAll(in.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(in.uploadDir, uploadPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return tmp.Name(), nil
}

func (in *Ingestor) extract(ctx context.Context, name, path string) (string, error) {
	extCtx, cancel := context.WithTimeout(ctx, in.extractionTimeout)
	defer cancel()

	text, err := workerpool.Run(extCtx, in.pool, func(ctx context.Context) (string, error) {
		return in.extractor.ExtractText(ctx, path)
	})
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded)
		logger.Error("Text extraction failed", "filename", name, "timeout", timeout, "error", err)
		return "", &ExtractionError{Filename: name, Timeout: timeout, Err: err}
	}
	return text, nil
}

// DeleteAll clears both stores and the retrieval state. It returns the
// backend kind selected at startup.
func (in *Ingestor) DeleteAll(ctx context.Context) (models.BackendTag, error) {
	err := in.backend.DeleteAll(ctx)
	in.invalidator.Invalidate()
	if err != nil {
		logger.Error("Failed to delete documents", "error", err)
		return in.backend.Kind(), err
	}
	logger.Info("All documents deleted", "storage", in.backend.Kind())
	return in.backend.Kind(), nil
}

// Documents summarizes every stored document.
func (in *Ingestor) Documents(ctx context.Context) ([]models.DocumentSummary, error) {
	docs, err := in.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		summary := models.DocumentSummary{
			Filename:   doc.Filename,
			ChunkCount: len(doc.Chunks),
			TextLength: utf8.RuneCountInString(doc.FullText),
			Storage:    doc.Backend,
		}
		if !doc.CreatedAt.IsZero() {
			created := doc.CreatedAt
			summary.CreatedAt = &created
		}
		out = append(out, summary)
	}
	return out, nil
}

func validatePDFName(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", &ValidationError{Field: "file", Message: "No file provided"}
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", &ValidationError{Field: "file", Message: "Only PDF files are allowed"}
	}
	return name, nil
}

func countNonSpace(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func ingestStatus(err error) string {
	var (
		xerr  *ExtractionError
		empty *EmptyDocumentError
		serr  *StorageError
	)
	switch {
	case errors.As(err, &xerr):
		return "extraction_failed"
	case errors.As(err, &empty):
		return "empty"
	case errors.As(err, &serr):
		return "storage_failed"
	}
	return "error"
}
