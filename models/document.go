package models

import "time"

// BackendTag names the store variant a document or chunk was read from.
type BackendTag string

const (
	BackendPrimary  BackendTag = "primary"
	BackendFallback BackendTag = "fallback"
)

// Document is one uploaded PDF. Filename is the unique key; re-uploading a
// filename overwrites the previous record.
type Document struct {
	Filename  string    `json:"filename"`
	FullText  string    `json:"full_text"`
	Chunks    []string  `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredDocument is a Document together with the backend that holds it.
type StoredDocument struct {
	Document
	Backend BackendTag `json:"storage"`
}

// ChunkRecord is a retrievable chunk derived from Document.Chunks. It is never
// persisted on its own.
type ChunkRecord struct {
	Text       string     `json:"text"`
	Source     string     `json:"source"`
	ChunkIndex int        `json:"chunk_id"`
	Backend    BackendTag `json:"storage"`
}

// CorpusSnapshot is the cached flattened view of every stored document.
type CorpusSnapshot struct {
	Records   []ChunkRecord
	FetchedAt time.Time
}
