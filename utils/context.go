package utils

import (
	"context"
	"time"
)

const (
	// WriteTimeout bounds a single-document upsert.
	WriteTimeout = 10 * time.Second

	// ScanTimeout bounds full-collection reads and one delete batch.
	ScanTimeout = 30 * time.Second
)

// WithWriteTimeout derives a context for a single-document write.
func WithWriteTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, WriteTimeout)
}

// WithScanTimeout derives a context for a collection scan. A parent with an
// earlier deadline keeps it.
func WithScanTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ScanTimeout)
}
