package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestGuessBloomLevel(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantLevel    int
		wantCategory string
	}{
		{
			name:         "define maps to remembering",
			text:         "Define the term process control block",
			wantLevel:    1,
			wantCategory: "Remembering",
		},
		{
			name:         "explain maps to understanding",
			text:         "Explain the difference between paging and segmentation",
			wantLevel:    2,
			wantCategory: "Understanding",
		},
		{
			name:         "evaluate and justify map to evaluating",
			text:         "Evaluate the fairness of round robin and justify your answer",
			wantLevel:    5,
			wantCategory: "Evaluating",
		},
		{
			name:         "design maps to creating",
			text:         "Design a file layout for flash storage",
			wantLevel:    6,
			wantCategory: "Creating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, category := GuessBloomLevel(tt.text)
			require.NotNil(t, level)
			assert.Equal(t, tt.wantLevel, *level)
			assert.Equal(t, tt.wantCategory, category)
		})
	}
}

func TestGuessBloomLevelNoKeywords(t *testing.T) {
	level, category := GuessBloomLevel("Total internal reflection of light in fiber optics")
	assert.Nil(t, level)
	assert.Empty(t, category)
}

func TestParseMarks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int
	}{
		{"bracketed", "What is a semaphore? [5]", intPtr(5)},
		{"parenthetical with marks word", "Explain demand paging. (10 marks)", intPtr(10)},
		{"M suffix", "Write short notes on SJF and FCFS. 5M", intPtr(5)},
		{"trailing parenthetical", "Write about the critical section problem (3)", intPtr(3)},
		{"no annotation", "Explain virtual memory", nil},
		{"zero is not a valid allocation", "This carries 0 marks", nil},
		{"out of range", "A question worth 500 marks", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMarks(tt.text)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestEstimateDifficulty(t *testing.T) {
	tests := []struct {
		name  string
		marks *int
		bloom *int
		want  string
	}{
		{"nothing known", nil, nil, "easy"},
		{"low marks low bloom", intPtr(2), intPtr(1), "easy"},
		{"marks only", intPtr(10), nil, "easy"},
		{"mid marks mid bloom", intPtr(8), intPtr(3), "medium"},
		{"bloom only", nil, intPtr(4), "medium"},
		{"high marks high bloom", intPtr(15), intPtr(6), "hard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateDifficulty(tt.marks, tt.bloom))
		})
	}
}
