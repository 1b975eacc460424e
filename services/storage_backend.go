package services

import (
	"context"
	"errors"

	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/models"
)

// StorageBackend is the document store chosen once at startup: Primary
// (durable store with the in-memory store behind it for failed writes) or
// Fallback (in-memory only).
type StorageBackend struct {
	kind     models.BackendTag
	primary  DocumentStore
	fallback *MemoryStore
	metrics  *telemetry.Metrics
}

func NewPrimaryBackend(primary DocumentStore, fallback *MemoryStore, metrics *telemetry.Metrics) *StorageBackend {
	return &StorageBackend{kind: models.BackendPrimary, primary: primary, fallback: fallback, metrics: metrics}
}

func NewFallbackBackend(fallback *MemoryStore, metrics *telemetry.Metrics) *StorageBackend {
	return &StorageBackend{kind: models.BackendFallback, fallback: fallback, metrics: metrics}
}

// Kind reports which variant was selected at startup.
func (b *StorageBackend) Kind() models.BackendTag {
	return b.kind
}

// Put stores doc and returns the backend that holds it. A failed durable
// write is retried once against the in-memory store; the two are never
// reconciled afterwards.
func (b *StorageBackend) Put(ctx context.Context, doc models.Document) (models.BackendTag, error) {
	switch b.kind {
	case models.BackendPrimary:
		err := b.primary.Put(ctx, doc)
		if err == nil {
			return models.BackendPrimary, nil
		}

		logger.Warn("Durable write failed, storing document in memory",
			"filename", doc.Filename,
			"error", err,
		)
		b.metrics.RecordStorageFallback("put")

		if ferr := b.fallback.Put(ctx, doc); ferr != nil {
			return "", &StorageError{Op: "put", Backend: "primary+fallback", Err: errors.Join(err, ferr)}
		}
		return models.BackendFallback, nil

	default:
		if err := b.fallback.Put(ctx, doc); err != nil {
			return "", &StorageError{Op: "put", Backend: string(models.BackendFallback), Err: err}
		}
		return models.BackendFallback, nil
	}
}

// List returns every stored document tagged with its backend. With a primary
// backend, documents that only reached the in-memory store are included
// after the durable ones; a filename in both is served from the primary.
func (b *StorageBackend) List(ctx context.Context) ([]models.StoredDocument, error) {
	fallbackDocs, err := b.fallback.List(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list", Backend: string(models.BackendFallback), Err: err}
	}

	switch b.kind {
	case models.BackendPrimary:
		primaryDocs, err := b.primary.List(ctx)
		if err != nil {
			return nil, &StorageError{Op: "list", Backend: string(models.BackendPrimary), Err: err}
		}

		out := make([]models.StoredDocument, 0, len(primaryDocs)+len(fallbackDocs))
		seen := make(map[string]struct{}, len(primaryDocs))
		for _, doc := range primaryDocs {
			seen[doc.Filename] = struct{}{}
			out = append(out, models.StoredDocument{Document: doc, Backend: models.BackendPrimary})
		}
		for _, doc := range fallbackDocs {
			if _, dup := seen[doc.Filename]; dup {
				continue
			}
			out = append(out, models.StoredDocument{Document: doc, Backend: models.BackendFallback})
		}
		return out, nil

	default:
		out := make([]models.StoredDocument, 0, len(fallbackDocs))
		for _, doc := range fallbackDocs {
			out = append(out, models.StoredDocument{Document: doc, Backend: models.BackendFallback})
		}
		return out, nil
	}
}

// DeleteAll empties both stores, draining the durable one batch by batch.
func (b *StorageBackend) DeleteAll(ctx context.Context) error {
	var primaryErr error

	if b.kind == models.BackendPrimary {
		total := 0
		for {
			if err := ctx.Err(); err != nil {
				primaryErr = err
				break
			}
			n, err := b.primary.DeleteAll(ctx)
			if err != nil {
				primaryErr = err
				break
			}
			if n == 0 {
				break
			}
			total += n
		}
		logger.Info("Durable store cleared", "deleted", total, "error", primaryErr)
	}

	n, err := b.fallback.DeleteAll(ctx)
	if err != nil {
		return &StorageError{Op: "delete_all", Backend: string(models.BackendFallback), Err: err}
	}
	logger.Info("In-memory store cleared", "deleted", n)

	if primaryErr != nil {
		return &StorageError{Op: "delete_all", Backend: string(models.BackendPrimary), Err: primaryErr}
	}
	return nil
}
