package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
)

// DOCXExtractor extracts paragraph and table text plus embedded images from
// .docx files. A docx is a zip archive; the document body lives in
// word/document.xml and embedded images under word/media/.
type DOCXExtractor struct{}

// NewDOCXExtractor creates a new DOCX extractor
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// DOCXContent holds the extracted parts of a docx file
type DOCXContent struct {
	Text   string
	Images [][]byte // embedded media, in archive order
}

// Extract reads the document body text and embedded images from docx bytes
func (d *DOCXExtractor) Extract(content []byte) (*DOCXContent, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty DOCX content")
	}

	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX archive: %w", err)
	}

	var documentXML []byte
	var mediaFiles []*zip.File

	for _, file := range reader.File {
		switch {
		case file.Name == "word/document.xml":
			rc, err := file.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open document.xml: %w", err)
			}
			documentXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read document.xml: %w", err)
			}
		case strings.HasPrefix(file.Name, "word/media/"):
			mediaFiles = append(mediaFiles, file)
		}
	}

	if documentXML == nil {
		return nil, fmt.Errorf("not a valid DOCX: word/document.xml missing")
	}

	text, err := d.parseDocumentXML(documentXML)
	if err != nil {
		return nil, err
	}

	// Keep media in stable archive order
	sort.Slice(mediaFiles, func(i, j int) bool { return mediaFiles[i].Name < mediaFiles[j].Name })

	var images [][]byte
	for _, file := range mediaFiles {
		rc, err := file.Open()
		if err != nil {
			log.Printf("DOCX Extractor: Skipping unreadable media %s: %v", file.Name, err)
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Printf("DOCX Extractor: Skipping media %s: %v", file.Name, err)
			continue
		}
		images = append(images, data)
	}

	log.Printf("DOCX Extractor: Extracted %d characters and %d embedded images", len(text), len(images))

	return &DOCXContent{Text: text, Images: images}, nil
}

// parseDocumentXML walks the WordprocessingML token stream collecting run
// text. Paragraphs (w:p) become newlines, tabs (w:tab) become tab
// characters, and table cells (w:tc) are separated so table text stays
// readable.
func (d *DOCXExtractor) parseDocumentXML(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var textBuilder strings.Builder
	var inText bool

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				textBuilder.WriteString("\t")
			case "br":
				textBuilder.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				textBuilder.WriteString("\n")
			case "tc":
				// Separate table cells so row text does not run together
				textBuilder.WriteString("\t")
			case "tr":
				textBuilder.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				textBuilder.Write(t)
			}
		}
	}

	return strings.TrimSpace(textBuilder.String()), nil
}
