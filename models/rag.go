package models

import "time"

// SourceMetadata identifies where a retrieved chunk came from.
type SourceMetadata struct {
	Source  string     `json:"source"`
	ChunkID int        `json:"chunk_id"`
	Storage BackendTag `json:"storage"`
}

// SourceDocument is a chunk returned alongside a chat answer or search.
type SourceDocument struct {
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
	Score    *float32       `json:"score,omitempty"`
}

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	Response string           `json:"response"`
	Sources  []SourceDocument `json:"source_documents"`
}

// IngestResult summarizes one processed upload.
type IngestResult struct {
	Filename      string     `json:"filename"`
	ChunksCreated int        `json:"chunks_created"`
	TextLength    int        `json:"text_length"`
	Storage       BackendTag `json:"storage"`
}

// ChatResponse is the body of POST /chat.
type ChatResponse struct {
	Response        string           `json:"response"`
	SourceDocuments []SourceDocument `json:"source_documents"`
	Query           string           `json:"query"`
	Error           string           `json:"error,omitempty"`
}

// SimilarityResponse is the body of POST /similarity-search.
type SimilarityResponse struct {
	Query   string           `json:"query"`
	Results []SourceDocument `json:"results"`
	Count   int              `json:"count"`
}

// UploadResponse is the body of POST /upload-pdf.
type UploadResponse struct {
	Message string `json:"message"`
	IngestResult
}

// DocumentSummary is one entry of GET /documents.
type DocumentSummary struct {
	Filename   string     `json:"filename"`
	ChunkCount int        `json:"chunk_count"`
	TextLength int        `json:"text_length"`
	Storage    BackendTag `json:"storage"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// DocumentsResponse is the body of GET /documents.
type DocumentsResponse struct {
	Documents []DocumentSummary `json:"documents"`
	Total     int               `json:"total"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	MongoConnected   bool   `json:"mongo_connected"`
	ComponentsLoaded bool   `json:"components_loaded"`
}
