package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"pdf-rag-chatbot/internal/logger"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes caps in-memory extraction.
const maxPDFBytes = 200 << 20

// PDFExtractor reads page text with the pure-Go PDF reader. Each page with
// text is prefixed with a "--- Page N ---" marker line; blank pages add
// nothing, so an image-only PDF extracts to "".
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText extracts the text of every page of the PDF at path.
func (e *PDFExtractor) ExtractText(ctx context.Context, path string) (text string, err error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.Size() > maxPDFBytes {
		return "", fmt.Errorf("pdf too large for in-memory extraction: %d bytes", stat.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF file: %w", err)
	}

	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var sb strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		// Font names are page resources, so each page loads its own.
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Failed to extract page text", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}

		fmt.Fprintf(&sb, "\n--- Page %d ---\n", i)
		sb.WriteString(pageText)
	}

	text = strings.TrimSpace(sb.String())
	logger.Debug("PDF text extracted", "pages", pages, "chars", len(text))
	return text, nil
}
