package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxPageBlobs bounds how many page payloads are sent to the
// extraction service per document.
const DefaultMaxPageBlobs = 10

// ConversionResult is the uniform intermediate representation produced from
// a source file. PagesIncluded < PageCount signals that trailing pages were
// not included in the extraction payload.
type ConversionResult struct {
	Text          string
	PageBlobs     [][]byte
	PageCount     int
	PagesIncluded int
}

// DocumentConverter turns a PDF or DOCX into extracted text plus a bounded
// set of page payloads for the text/vision extraction service.
type DocumentConverter struct {
	pdfExtractor  *PDFExtractor
	docxExtractor *DOCXExtractor
	maxPageBlobs  int
}

// NewDocumentConverter creates a new document converter
func NewDocumentConverter(maxPageBlobs int) *DocumentConverter {
	if maxPageBlobs <= 0 {
		maxPageBlobs = DefaultMaxPageBlobs
	}
	return &DocumentConverter{
		pdfExtractor:  NewPDFExtractor(),
		docxExtractor: NewDOCXExtractor(),
		maxPageBlobs:  maxPageBlobs,
	}
}

// Convert produces the intermediate representation for a source document.
// Unreadable or corrupt files yield a *ConversionError.
func (c *DocumentConverter) Convert(ctx context.Context, content []byte, filename, fileType string) (*ConversionResult, error) {
	switch fileType {
	case "pdf":
		return c.convertPDF(ctx, content, filename)
	case "docx":
		return c.convertDOCX(content, filename)
	default:
		return nil, &ConversionError{Path: filename, Err: fmt.Errorf("unsupported file type %q", fileType)}
	}
}

func (c *DocumentConverter) convertPDF(ctx context.Context, content []byte, filename string) (*ConversionResult, error) {
	// Layout-preserving text extraction first. An image-only PDF is not an
	// error: text stays empty and downstream relies on the page payloads.
	text, err := c.pdfExtractor.ExtractText(content)
	if err != nil {
		if errors.Is(err, ErrNoTextLayer) {
			log.Printf("Document Converter: %s has no text layer, relying on page payloads", filename)
			text = ""
		} else {
			return nil, &ConversionError{Path: filename, Err: err}
		}
	}

	pageCount, blobs, err := c.splitPages(ctx, content)
	if err != nil {
		return nil, &ConversionError{Path: filename, Err: err}
	}

	if len(blobs) < pageCount {
		log.Printf("Document Converter: %s has %d pages, sending first %d page payloads", filename, pageCount, len(blobs))
	}

	return &ConversionResult{
		Text:          text,
		PageBlobs:     blobs,
		PageCount:     pageCount,
		PagesIncluded: len(blobs),
	}, nil
}

func (c *DocumentConverter) convertDOCX(content []byte, filename string) (*ConversionResult, error) {
	docx, err := c.docxExtractor.Extract(content)
	if err != nil {
		return nil, &ConversionError{Path: filename, Err: err}
	}

	images := docx.Images
	included := len(images)
	if included > c.maxPageBlobs {
		log.Printf("Document Converter: %s has %d embedded images, sending first %d", filename, included, c.maxPageBlobs)
		images = images[:c.maxPageBlobs]
		included = c.maxPageBlobs
	}

	// DOCX has no fixed pagination; page count mirrors the payload count
	return &ConversionResult{
		Text:          docx.Text,
		PageBlobs:     images,
		PageCount:     len(docx.Images),
		PagesIncluded: included,
	}, nil
}

// splitPages optimizes the PDF with relaxed validation (real-world scans are
// rarely spec-clean) and splits it into single-page documents. The first N
// pages become the bounded payload set.
func (c *DocumentConverter) splitPages(ctx context.Context, content []byte) (int, [][]byte, error) {
	tempDir, err := os.MkdirTemp("", "paper-convert-*")
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(sourcePath, sanitizePDF(content), 0o600); err != nil {
		return 0, nil, fmt.Errorf("failed to write temp PDF: %w", err)
	}

	cfg := pdfcpumodel.NewDefaultConfiguration()
	cfg.ValidationMode = pdfcpumodel.ValidationRelaxed

	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	if err := api.OptimizeFile(sourcePath, optimizedPath, cfg); err != nil {
		return 0, nil, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}

	pageCount, err := api.PageCountFile(optimizedPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get page count: %w", err)
	}

	if err := api.SplitFile(optimizedPath, tempDir, 1, cfg); err != nil {
		return 0, nil, fmt.Errorf("failed to split PDF: %w", err)
	}

	limit := pageCount
	if limit > c.maxPageBlobs {
		limit = c.maxPageBlobs
	}

	blobs := make([][]byte, 0, limit)
	for page := 1; page <= limit; page++ {
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}

		pagePath := filepath.Join(tempDir, fmt.Sprintf("optimized_%d.pdf", page))
		data, err := os.ReadFile(pagePath)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read split page %d: %w", page, err)
		}
		blobs = append(blobs, data)
	}

	return pageCount, blobs, nil
}
