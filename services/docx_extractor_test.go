package services

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDOCX assembles a minimal docx archive from named entries
func buildDOCX(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Q1. Define an operating system.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Q2. Explain</w:t></w:r><w:r><w:t xml:space="preserve"> demand paging.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestDOCXExtractText(t *testing.T) {
	content := buildDOCX(t, map[string][]byte{
		"word/document.xml": []byte(sampleDocumentXML),
	})

	result, err := NewDOCXExtractor().Extract(content)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Q1. Define an operating system.")
	assert.Contains(t, result.Text, "Q2. Explain demand paging.")
	assert.Empty(t, result.Images)
}

func TestDOCXExtractEmbeddedMedia(t *testing.T) {
	content := buildDOCX(t, map[string][]byte{
		"word/document.xml":  []byte(sampleDocumentXML),
		"word/media/image2.png": {0x89, 0x50},
		"word/media/image1.png": {0x89, 0x4e},
	})

	result, err := NewDOCXExtractor().Extract(content)
	require.NoError(t, err)

	// Archive-name order, independent of zip entry order
	require.Len(t, result.Images, 2)
	assert.Equal(t, []byte{0x89, 0x4e}, result.Images[0])
	assert.Equal(t, []byte{0x89, 0x50}, result.Images[1])
}

func TestDOCXExtractRejectsBadInput(t *testing.T) {
	extractor := NewDOCXExtractor()

	_, err := extractor.Extract(nil)
	assert.Error(t, err)

	_, err = extractor.Extract([]byte("not a zip archive"))
	assert.Error(t, err)

	missingBody := buildDOCX(t, map[string][]byte{
		"word/media/image1.png": {0x89},
	})
	_, err = extractor.Extract(missingBody)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document.xml missing")
}

func TestConvertDOCXEndToEnd(t *testing.T) {
	content := buildDOCX(t, map[string][]byte{
		"word/document.xml":     []byte(sampleDocumentXML),
		"word/media/image1.png": {0x89, 0x50, 0x4e, 0x47},
	})

	converter := NewDocumentConverter(0)
	result, err := converter.Convert(context.Background(), content, "paper.docx", "docx")
	require.NoError(t, err)

	assert.Contains(t, result.Text, "demand paging")
	assert.Equal(t, 1, result.PageCount)
	assert.Equal(t, 1, result.PagesIncluded)
	require.Len(t, result.PageBlobs, 1)
}

func TestConvertUnsupportedType(t *testing.T) {
	converter := NewDocumentConverter(0)

	_, err := converter.Convert(context.Background(), []byte("data"), "paper.txt", "txt")
	require.Error(t, err)

	var convErr *ConversionError
	assert.ErrorAs(t, err, &convErr)
}
