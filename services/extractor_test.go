package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/qbank-pipeline/services/digitalocean"
)

// fakeExtractionClient records calls and plays back canned responses
type fakeExtractionClient struct {
	structuredResponse string
	structuredErr      error
	jsonResponse       string
	jsonErr            error
	visionResponse     string
	visionErr          error

	structuredCalls int
	jsonCalls       int
	visionCalls     int
}

func (f *fakeExtractionClient) StructuredCompletion(ctx context.Context, systemPrompt, userPrompt, schemaName, schemaDescription string, schema map[string]interface{}, options ...digitalocean.InferenceOption) (string, error) {
	f.structuredCalls++
	return f.structuredResponse, f.structuredErr
}

func (f *fakeExtractionClient) JSONCompletion(ctx context.Context, systemPrompt, userPrompt string, options ...digitalocean.InferenceOption) (string, error) {
	f.jsonCalls++
	return f.jsonResponse, f.jsonErr
}

func (f *fakeExtractionClient) StructuredVisionCompletion(ctx context.Context, systemPrompt, userPrompt string, attachments [][]byte, attachmentMIME, schemaName, schemaDescription string, schema map[string]interface{}, options ...digitalocean.InferenceOption) (string, error) {
	f.visionCalls++
	return f.visionResponse, f.visionErr
}

func TestExtractFromText(t *testing.T) {
	client := &fakeExtractionClient{
		structuredResponse: `{"questions":[{"number":"1","text":"Define an operating system.","marks":5}]}`,
	}
	extractor := NewQuestionExtractor(client)

	questions, err := extractor.Extract(context.Background(), &ConversionResult{Text: "1. Define an operating system. [5]"})
	require.NoError(t, err)

	require.Len(t, questions, 1)
	assert.Equal(t, "1", questions[0].Number)
	assert.Equal(t, "Define an operating system.", questions[0].Text)
	require.NotNil(t, questions[0].Marks)
	assert.Equal(t, 5, *questions[0].Marks)
	assert.Equal(t, 1, client.structuredCalls)
	assert.Zero(t, client.jsonCalls)
	assert.Zero(t, client.visionCalls)
}

func TestExtractFallsBackToJSONCompletion(t *testing.T) {
	client := &fakeExtractionClient{
		structuredErr: fmt.Errorf("inference API error (status 400)"),
		jsonResponse:  `{"questions":[{"number":"1","text":"Explain demand paging."}]}`,
	}
	extractor := NewQuestionExtractor(client)

	questions, err := extractor.Extract(context.Background(), &ConversionResult{Text: "some paper text"})
	require.NoError(t, err)

	require.Len(t, questions, 1)
	assert.Equal(t, 1, client.structuredCalls)
	assert.Equal(t, 1, client.jsonCalls)
}

func TestExtractUsesVisionForImageOnlyDocuments(t *testing.T) {
	client := &fakeExtractionClient{
		visionResponse: `{"questions":[{"number":"1","text":"Draw the process state diagram.","has_diagram":true}]}`,
	}
	extractor := NewQuestionExtractor(client)

	conv := &ConversionResult{Text: "", PageBlobs: [][]byte{{0x25, 0x50, 0x44, 0x46}}}
	questions, err := extractor.Extract(context.Background(), conv)
	require.NoError(t, err)

	require.Len(t, questions, 1)
	assert.True(t, questions[0].HasDiagram)
	assert.Equal(t, 1, client.visionCalls)
	assert.Zero(t, client.structuredCalls)
}

func TestExtractNothingToWorkWith(t *testing.T) {
	extractor := NewQuestionExtractor(&fakeExtractionClient{})

	for _, conv := range []*ConversionResult{nil, {}} {
		_, err := extractor.Extract(context.Background(), conv)
		require.Error(t, err)

		var extErr *ExtractionError
		assert.ErrorAs(t, err, &extErr)
	}
}

func TestExtractUnparseableResponse(t *testing.T) {
	client := &fakeExtractionClient{structuredResponse: "sorry, I cannot help with that"}
	extractor := NewQuestionExtractor(client)

	_, err := extractor.Extract(context.Background(), &ConversionResult{Text: "paper"})
	require.Error(t, err)

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Contains(t, extErr.Reason, "unparseable")
}

func TestExtractEmptyQuestionList(t *testing.T) {
	client := &fakeExtractionClient{structuredResponse: `{"questions":[]}`}
	extractor := NewQuestionExtractor(client)

	_, err := extractor.Extract(context.Background(), &ConversionResult{Text: "paper"})
	require.Error(t, err)

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Contains(t, extErr.Reason, "no questions")
}

func TestExtractServiceFailureWrapped(t *testing.T) {
	cause := errors.New("request failed: dial tcp: connection refused")
	client := &fakeExtractionClient{structuredErr: cause, jsonErr: cause}
	extractor := NewQuestionExtractor(client)

	_, err := extractor.Extract(context.Background(), &ConversionResult{Text: "paper"})
	require.Error(t, err)

	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.ErrorIs(t, err, cause)
}

func TestExtractNormalizesServiceOutput(t *testing.T) {
	client := &fakeExtractionClient{
		structuredResponse: `{"questions":[
			{"number":"1","text":"   "},
			{"number":"","text":"Define a process. [5]"},
			{"number":"2","text":"Explain segmentation","marks":-3,"bloom_level":9,"page_number":0},
			{"number":"3","text":"Analyze the performance of FCFS","bloom_level":4}
		]}`,
	}
	extractor := NewQuestionExtractor(client)

	questions, err := extractor.Extract(context.Background(), &ConversionResult{Text: "paper"})
	require.NoError(t, err)
	require.Len(t, questions, 3)

	// Blank-text record dropped, missing number backfilled from position
	assert.Equal(t, "1", questions[0].Number)
	require.NotNil(t, questions[0].Marks)
	assert.Equal(t, 5, *questions[0].Marks)
	require.NotNil(t, questions[0].BloomLevel)
	assert.Equal(t, 1, *questions[0].BloomLevel)
	assert.Equal(t, "Remembering", questions[0].BloomCategory)

	// Invalid marks, bloom level, and page number all cleared
	assert.Nil(t, questions[1].Marks)
	require.NotNil(t, questions[1].BloomLevel)
	assert.Equal(t, 2, *questions[1].BloomLevel)
	assert.Equal(t, "Understanding", questions[1].BloomCategory)
	assert.Nil(t, questions[1].PageNumber)

	// Valid level without a category gets the matching label
	assert.Equal(t, "Analyzing", questions[2].BloomCategory)
}
