package services

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

func makeUnit(t *testing.T, id uint, number int, name string, topics []string) model.CourseUnit {
	t.Helper()
	data, err := json.Marshal(topics)
	require.NoError(t, err)
	return model.CourseUnit{
		ID:         id,
		UnitNumber: number,
		Name:       name,
		Topics:     datatypes.JSON(data),
	}
}

func osUnits(t *testing.T) []model.CourseUnit {
	t.Helper()
	return []model.CourseUnit{
		makeUnit(t, 1, 1, "CPU Scheduling", []string{"round robin", "priority scheduling", "multilevel queue"}),
		makeUnit(t, 2, 2, "Memory Management", []string{"paging", "virtual memory", "page replacement"}),
	}
}

func TestClassifyMatchesDominantUnit(t *testing.T) {
	classifier := NewUnitClassifier()
	units := osUnits(t)

	match := classifier.Classify(context.Background(), "Explain round robin and priority scheduling", units)

	require.NotNil(t, match.UnitID)
	assert.Equal(t, units[0].ID, *match.UnitID)
	assert.Equal(t, "CPU Scheduling", match.UnitName)
	assert.Greater(t, match.Confidence, classificationThreshold)
	assert.Contains(t, match.TopicTags, "round robin")
	assert.Contains(t, match.TopicTags, "priority scheduling")
	assert.NotContains(t, match.TopicTags, "multilevel queue")
}

func TestClassifyRejectsUnrelatedText(t *testing.T) {
	classifier := NewUnitClassifier()

	match := classifier.Classify(context.Background(), "Discuss the causes of the French revolution", osUnits(t))

	assert.Nil(t, match.UnitID)
	assert.Empty(t, match.UnitName)
	assert.LessOrEqual(t, match.Confidence, classificationThreshold)
	assert.Empty(t, match.TopicTags)
}

func TestClassifyEmptyInputs(t *testing.T) {
	classifier := NewUnitClassifier()

	assert.Equal(t, UnitMatch{}, classifier.Classify(context.Background(), "Explain paging", nil))
	assert.Equal(t, UnitMatch{}, classifier.Classify(context.Background(), "   ", osUnits(t)))
}

func TestClassifyIsDeterministic(t *testing.T) {
	classifier := NewUnitClassifier()
	units := osUnits(t)

	first := classifier.Classify(context.Background(), "Describe paging and virtual memory", units)
	require.NotNil(t, first.UnitID)

	for i := 0; i < 10; i++ {
		again := classifier.Classify(context.Background(), "Describe paging and virtual memory", units)
		require.NotNil(t, again.UnitID)
		assert.Equal(t, *first.UnitID, *again.UnitID)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.TopicTags, again.TopicTags)
	}
}

func TestClearsThresholdBoundary(t *testing.T) {
	assert.False(t, clearsThreshold(classificationThreshold))
	assert.False(t, clearsThreshold(math.Nextafter(classificationThreshold, 0)))
	assert.True(t, clearsThreshold(math.Nextafter(classificationThreshold, 1)))
	assert.False(t, clearsThreshold(0))
	assert.True(t, clearsThreshold(1))
}

func TestMatchTopics(t *testing.T) {
	tests := []struct {
		name     string
		question string
		topics   []string
		want     []string
	}{
		{
			name:     "exact topic string",
			question: "Explain the round robin algorithm",
			topics:   []string{"round robin", "multilevel queue"},
			want:     []string{"round robin"},
		},
		{
			name:     "partial match over half the topic words",
			question: "Which page replacement strategy minimizes faults?",
			topics:   []string{"page replacement algorithms"},
			want:     []string{"page replacement algorithms"},
		},
		{
			name:     "no overlap",
			question: "Explain memory paging",
			topics:   []string{"disk scheduling"},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchTopics(tt.question, tt.topics))
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := map[string]float64{"paging": 1, "memory": 2}
	b := map[string]float64{"scheduling": 1, "queue": 3}

	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-9)
	assert.Zero(t, cosineSimilarity(a, b))
	assert.Zero(t, cosineSimilarity(nil, a))
}
