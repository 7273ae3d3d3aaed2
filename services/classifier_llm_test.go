package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMClassifySuccess(t *testing.T) {
	client := &fakeExtractionClient{
		structuredResponse: `{"unit_number":2,"confidence":0.9,"topic_tags":["paging","virtual memory","made up tag"]}`,
	}
	classifier := NewLLMUnitClassifier(client)
	units := osUnits(t)

	match := classifier.Classify(context.Background(), "Explain demand paging and virtual memory", units)

	require.NotNil(t, match.UnitID)
	assert.Equal(t, units[1].ID, *match.UnitID)
	assert.Equal(t, "Memory Management", match.UnitName)
	assert.InDelta(t, 0.9, match.Confidence, 1e-9)
	// Invented tags are dropped; only exact syllabus topic strings survive
	assert.Equal(t, []string{"paging", "virtual memory"}, match.TopicTags)
	assert.Equal(t, 1, client.structuredCalls)
	assert.Zero(t, client.jsonCalls)
}

func TestLLMClassifyFallsBackToJSONCompletion(t *testing.T) {
	client := &fakeExtractionClient{
		structuredErr: fmt.Errorf("inference API error (status 400)"),
		jsonResponse:  `{"unit_number":1,"confidence":0.8,"topic_tags":["round robin"]}`,
	}
	classifier := NewLLMUnitClassifier(client)
	units := osUnits(t)

	match := classifier.Classify(context.Background(), "Explain round robin scheduling", units)

	require.NotNil(t, match.UnitID)
	assert.Equal(t, units[0].ID, *match.UnitID)
	assert.Equal(t, 1, client.structuredCalls)
	assert.Equal(t, 1, client.jsonCalls)
}

func TestLLMClassifyAbstention(t *testing.T) {
	client := &fakeExtractionClient{
		structuredResponse: `{"unit_number":null,"confidence":0.0,"topic_tags":[]}`,
	}
	classifier := NewLLMUnitClassifier(client)

	match := classifier.Classify(context.Background(), "Discuss the causes of the French revolution", osUnits(t))

	assert.Equal(t, UnitMatch{}, match)
}

func TestLLMClassifyServiceFailureDegrades(t *testing.T) {
	cause := fmt.Errorf("request failed: dial tcp: connection refused")
	client := &fakeExtractionClient{structuredErr: cause, jsonErr: cause}
	classifier := NewLLMUnitClassifier(client)

	match := classifier.Classify(context.Background(), "Explain paging", osUnits(t))

	assert.Equal(t, UnitMatch{}, match)
}

func TestLLMClassifyUnparseableResponseDegrades(t *testing.T) {
	client := &fakeExtractionClient{structuredResponse: "sorry, I cannot help with that"}
	classifier := NewLLMUnitClassifier(client)

	match := classifier.Classify(context.Background(), "Explain paging", osUnits(t))

	assert.Equal(t, UnitMatch{}, match)
}

func TestLLMClassifyUnknownUnitNumberDegrades(t *testing.T) {
	client := &fakeExtractionClient{
		structuredResponse: `{"unit_number":9,"confidence":0.9,"topic_tags":[]}`,
	}
	classifier := NewLLMUnitClassifier(client)

	match := classifier.Classify(context.Background(), "Explain paging", osUnits(t))

	assert.Equal(t, UnitMatch{}, match)
}

func TestLLMClassifyLowConfidenceRejected(t *testing.T) {
	client := &fakeExtractionClient{
		structuredResponse: `{"unit_number":2,"confidence":0.3,"topic_tags":["paging"]}`,
	}
	classifier := NewLLMUnitClassifier(client)

	match := classifier.Classify(context.Background(), "Explain paging", osUnits(t))

	assert.Nil(t, match.UnitID)
	assert.InDelta(t, 0.3, match.Confidence, 1e-9)
	assert.Empty(t, match.TopicTags)
}

func TestLLMClassifyClampsConfidence(t *testing.T) {
	client := &fakeExtractionClient{
		structuredResponse: `{"unit_number":1,"confidence":1.7,"topic_tags":[]}`,
	}
	classifier := NewLLMUnitClassifier(client)

	match := classifier.Classify(context.Background(), "Explain round robin", osUnits(t))

	require.NotNil(t, match.UnitID)
	assert.Equal(t, 1.0, match.Confidence)
}

func TestLLMClassifyEmptyInputs(t *testing.T) {
	client := &fakeExtractionClient{}
	classifier := NewLLMUnitClassifier(client)

	assert.Equal(t, UnitMatch{}, classifier.Classify(context.Background(), "Explain paging", nil))
	assert.Equal(t, UnitMatch{}, classifier.Classify(context.Background(), "   ", osUnits(t)))
	assert.Zero(t, client.structuredCalls)
}

func TestFilterTopicTags(t *testing.T) {
	topics := []string{"Round Robin", "priority scheduling"}

	assert.Equal(t, []string{"Round Robin"}, filterTopicTags([]string{"round robin", "round robin"}, topics))
	assert.Equal(t, []string{"Round Robin", "priority scheduling"}, filterTopicTags([]string{" Round Robin ", "priority scheduling", "fcfs"}, topics))
	assert.Nil(t, filterTopicTags([]string{"fcfs"}, topics))
	assert.Nil(t, filterTopicTags(nil, topics))
}
