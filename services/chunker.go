package services

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators prefers paragraph, then line, sentence and word
// boundaries, and finally splits between characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text recursively: it cuts at the first separator present in
// the text, merges adjacent pieces into chunks of at most size characters,
// and re-splits any piece that alone reaches size with the next separator.
// Lengths count runes. Separators stay attached to the end of the piece they
// terminate, so every chunk is a contiguous substring of the input (modulo
// trimmed edge whitespace).
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

type ChunkerOption func(*Chunker)

func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator preference list. Leaving out "" keeps
// pieces without any separator whole even when they exceed the chunk size.
func WithSeparators(separators ...string) ChunkerOption {
	return func(c *Chunker) {
		if len(separators) > 0 {
			c.separators = append([]string(nil), separators...)
		}
	}
}

func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 5
	}
	return c
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text in document order. Blank input yields nil.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range splitAfter(text, separator) {
		if utf8.RuneCountInString(piece) < c.size {
			pending = append(pending, piece)
			continue
		}

		if len(pending) > 0 {
			chunks = append(chunks, c.merge(pending)...)
			pending = nil
		}

		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
			continue
		}
		chunks = append(chunks, c.split(piece, finer)...)
	}

	if len(pending) > 0 {
		chunks = append(chunks, c.merge(pending)...)
	}
	return chunks
}

// merge packs consecutive pieces into chunks. When a chunk is emitted, the
// window keeps a tail of at most overlap runes to start the next one.
func (c *Chunker) merge(pieces []string) []string {
	var (
		chunks []string
		window []string
		total  int
	)

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)

		if total+n > c.size && len(window) > 0 {
			if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > c.overlap || (total+n > c.size && total > 0) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}

		window = append(window, piece)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(window, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitAfter cuts text after each separator occurrence; "" cuts between runes.
func splitAfter(text, separator string) []string {
	if separator == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.SplitAfter(text, separator)
	pieces := parts[:0]
	for _, p := range parts {
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
