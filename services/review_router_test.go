package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

func TestRouteUnassignedUnit(t *testing.T) {
	router := NewReviewRouter()
	question := &model.Question{Text: "Unmatched question", Confidence: 0}

	entry, err := router.Route(question, UnitMatch{})
	require.NoError(t, err)

	assert.Equal(t, model.IssueAmbiguousUnit, entry.IssueType)
	assert.Equal(t, 1, entry.Priority)
	assert.Equal(t, model.ReviewEntryPending, entry.Status)
	assert.Zero(t, entry.QuestionID)
}

func TestRouteLowConfidence(t *testing.T) {
	router := NewReviewRouter()
	unitID := uint(4)
	question := &model.Question{UnitID: &unitID, Confidence: 0.5}

	entry, err := router.Route(question, UnitMatch{UnitID: &unitID, UnitName: "Synchronization", Confidence: 0.5})
	require.NoError(t, err)

	assert.Equal(t, model.IssueLowConfidence, entry.IssueType)
	assert.Equal(t, 2, entry.Priority)
}

func TestRouteBaselineSignOff(t *testing.T) {
	router := NewReviewRouter()
	unitID := uint(4)

	tests := []struct {
		name       string
		confidence float64
	}{
		{"well above floor", 0.9},
		{"exactly at floor", 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := &model.Question{UnitID: &unitID, Confidence: tt.confidence}

			entry, err := router.Route(question, UnitMatch{UnitID: &unitID, Confidence: tt.confidence})
			require.NoError(t, err)

			assert.Equal(t, model.IssueNeedsReview, entry.IssueType)
			assert.Equal(t, 3, entry.Priority)
		})
	}
}

func TestRouteCarriesSuggestedCorrection(t *testing.T) {
	router := NewReviewRouter()
	unitID := uint(2)
	question := &model.Question{
		UnitID:        &unitID,
		Confidence:    0.4,
		Marks:         intPtr(10),
		BloomLevel:    intPtr(3),
		BloomCategory: "Applying",
	}
	match := UnitMatch{
		UnitID:     &unitID,
		UnitName:   "Memory Management",
		Confidence: 0.4,
		TopicTags:  []string{"paging", "virtual memory"},
	}

	entry, err := router.Route(question, match)
	require.NoError(t, err)

	var correction model.SuggestedCorrection
	require.NoError(t, json.Unmarshal(entry.SuggestedCorrection, &correction))

	require.NotNil(t, correction.UnitID)
	assert.Equal(t, unitID, *correction.UnitID)
	assert.Equal(t, "Memory Management", correction.UnitName)
	assert.Equal(t, 10, *correction.Marks)
	assert.Equal(t, 3, *correction.BloomLevel)
	assert.Equal(t, "Applying", correction.BloomCategory)
	assert.Equal(t, []string{"paging", "virtual memory"}, correction.TopicTags)
}
