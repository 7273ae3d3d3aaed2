package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantType    ErrorType
		recoverable bool
	}{
		{"nil", nil, ErrorTypeUnknown, false},
		{"conversion error", &ConversionError{Path: "a.pdf", Err: fmt.Errorf("bad xref")}, ErrorTypeDocument, false},
		{"extraction error", &ExtractionError{Reason: "service returned no questions"}, ErrorTypeLLM, true},
		{"wrapped extraction error", fmt.Errorf("run failed: %w", &ExtractionError{Reason: "x"}), ErrorTypeLLM, true},
		{"classification error", &ClassificationError{Reason: "service call failed", Err: fmt.Errorf("status 503")}, ErrorTypeLLM, true},
		{"persistence error", &PersistenceError{Err: fmt.Errorf("constraint violated")}, ErrorTypeDatabase, false},
		{"network", fmt.Errorf("dial tcp 10.0.0.1:443: connection refused"), ErrorTypeNetwork, true},
		{"rate limited", fmt.Errorf("inference API error (status 429)"), ErrorTypeLLM, true},
		{"deadline", fmt.Errorf("context deadline exceeded"), ErrorTypeTimeout, true},
		{"unclassified", fmt.Errorf("something odd happened"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errType, recoverable := ClassifyError(tt.err)
			assert.Equal(t, tt.wantType, errType)
			assert.Equal(t, tt.recoverable, recoverable)
		})
	}
}

func TestPhaseProgress(t *testing.T) {
	tests := []struct {
		phase string
		want  int
	}{
		{PhaseConversion, 10},
		{PhaseExtraction, 30},
		{PhaseClassification, 50},
		{PhaseDedup, 70},
		{PhasePersist, 90},
		{PhaseComplete, 100},
		{"bogus", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PhaseProgress(tt.phase), "phase %q", tt.phase)
	}
}

func TestTrackerWithoutCacheIsNoOp(t *testing.T) {
	tracker := NewProgressTracker(nil)
	ctx := context.Background()

	require.NoError(t, tracker.StartRun(ctx, 1))
	require.NoError(t, tracker.UpdatePhase(ctx, 1, PhaseExtraction, "extracting"))
	require.NoError(t, tracker.SetQuestionCount(ctx, 1, 5))
	require.NoError(t, tracker.FailRun(ctx, 1, fmt.Errorf("boom")))
	require.NoError(t, tracker.ClearRun(ctx, 1))

	acquired, err := tracker.TryAcquireRun(ctx, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
	tracker.ReleaseRun(ctx, 1)

	_, err = tracker.GetRun(ctx, 1)
	assert.Error(t, err)
}
