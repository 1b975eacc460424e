package services

import (
	"errors"
	"fmt"
)

// ErrEmptyCorpus means no stored document has retrievable text.
var ErrEmptyCorpus = errors.New("no documents available")

// ValidationError reports bad input shape (non-PDF upload, blank query).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ExtractionError reports an unreadable document. Timeout marks failures
// worth retrying.
type ExtractionError struct {
	Filename string
	Timeout  bool
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmptyDocumentError reports a document whose extracted text is too short to index.
type EmptyDocumentError struct {
	Filename      string
	NonWhitespace int
}

func (e *EmptyDocumentError) Error() string {
	return fmt.Sprintf("no text could be extracted from %s", e.Filename)
}

// StorageError reports a document store failure.
type StorageError struct {
	Op      string
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s store %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IndexBuildError reports an embedding or index construction failure.
type IndexBuildError struct {
	Chunks int
	Err    error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("failed to build vector index over %d chunks: %v", e.Chunks, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

// GenerationError reports a failed or timed-out model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
