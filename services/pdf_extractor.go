package services

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoTextLayer is returned when a PDF parses fine but yields no usable
// text, which usually means a scanned/image-only document.
var ErrNoTextLayer = errors.New("no extractable text layer in PDF")

// PDFExtractor handles PDF text extraction using ledongthuc/pdf (MIT license)
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// sanitizePDF fixes common PDF issues like trailing garbage data
// Many PDFs downloaded from web have HTML or other data appended after %%EOF
// This function truncates the content at the last valid %%EOF marker
func sanitizePDF(content []byte) []byte {
	if len(content) == 0 {
		return content
	}

	// Check if content starts with PDF header
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return content // Not a PDF, return as-is
	}

	// Find the last occurrence of %%EOF (valid PDF end marker)
	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)

	if lastEOF == -1 {
		// No %%EOF found - PDF is likely truncated, return as-is and let parser handle it
		return content
	}

	// Calculate where the PDF should end (%%EOF + marker length + optional newline)
	pdfEnd := lastEOF + len(eofMarker)

	// Allow for trailing newlines after %%EOF (valid per PDF spec)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}

	// If there's significant extra content after %%EOF, truncate it
	if pdfEnd < len(content) {
		extraBytes := len(content) - pdfEnd
		if extraBytes > 10 { // More than just whitespace
			log.Printf("PDF Sanitizer: Removing %d bytes of trailing garbage after %%EOF", extraBytes)
			return content[:pdfEnd]
		}
	}

	return content
}

// ExtractText extracts text from PDF bytes, preserving row structure where
// possible. Returns ErrNoTextLayer when the document parses but has no
// meaningful text (scanned/image-only PDFs).
func (p *PDFExtractor) ExtractText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}

	// Try to sanitize PDF if it has trailing garbage (common with web downloads)
	content = sanitizePDF(content)

	// Create a bytes.Reader which implements io.ReaderAt
	reader := bytes.NewReader(content)

	// Create PDF reader
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	log.Printf("PDF Extractor: Processing PDF with %d pages", numPages)

	var textBuilder strings.Builder

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			log.Printf("PDF Extractor: Page %d is null, skipping", i)
			continue
		}

		// Try to extract text by row for better structure preservation
		rows, err := page.GetTextByRow()
		if err != nil {
			log.Printf("PDF Extractor: Row extraction failed for page %d, trying plain text: %v", i, err)
			// Fallback to plain text if row extraction fails
			text, plainErr := page.GetPlainText(nil)
			if plainErr != nil {
				log.Printf("PDF Extractor: Plain text extraction also failed for page %d: %v", i, plainErr)
				continue
			}
			textBuilder.WriteString(text)
			textBuilder.WriteString("\n")
			continue
		}

		// Build text from rows - this preserves document structure better
		for _, row := range rows {
			var rowText strings.Builder
			for _, word := range row.Content {
				rowText.WriteString(word.S)
			}
			line := strings.TrimSpace(rowText.String())
			if line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n") // Separate pages
	}

	extracted := strings.TrimSpace(textBuilder.String())

	// Under ~50 chars the document is effectively image-only
	if len(extracted) < 50 {
		return "", fmt.Errorf("%w: only %d characters extracted from %d pages", ErrNoTextLayer, len(extracted), numPages)
	}

	log.Printf("PDF Extractor: Successfully extracted %d characters from %d pages", len(extracted), numPages)

	return extracted, nil
}

// GetPageCount returns the total number of pages in the PDF
func (p *PDFExtractor) GetPageCount(content []byte) (int, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)
	reader := bytes.NewReader(content)

	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}

	return pdfReader.NumPage(), nil
}
