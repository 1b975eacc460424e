package services

import (
	"context"
	"sync"
	"time"

	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/utils"
)

// MemoryStore is the process-local document store. Documents are keyed by
// the md5 of their filename and listed in first-insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]models.Document
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]models.Document)}
}

func (s *MemoryStore) Put(_ context.Context, doc models.Document) error {
	key := utils.MD5Hex(doc.Filename)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Chunks = append([]string(nil), doc.Chunks...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[key]; !exists {
		s.order = append(s.order, key)
	}
	s.docs[key] = doc
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Document, 0, len(s.order))
	for _, key := range s.order {
		doc := s.docs[key]
		doc.Chunks = append([]string(nil), doc.Chunks...)
		out = append(out, doc)
	}
	return out, nil
}

// DeleteAll removes every document in one call.
func (s *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.docs)
	s.docs = make(map[string]models.Document)
	s.order = nil
	return n, nil
}

// has reports whether a document with filename is stored.
func (s *MemoryStore) has(filename string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[utils.MD5Hex(filename)]
	return ok
}
