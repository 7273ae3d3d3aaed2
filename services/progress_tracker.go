package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilchouksey/qbank-pipeline/utils/cache"
)

// TTL configurations for run states
const (
	RunStateTTLSuccess = 1 * time.Hour  // 1 hour for successful runs
	RunStateTTLFailure = 24 * time.Hour // 24 hours for failed runs
	RunStateTTLPending = 24 * time.Hour // 24 hours for pending/processing runs
)

// Pipeline phases, in execution order
const (
	PhaseConversion     = "conversion"
	PhaseExtraction     = "extraction"
	PhaseClassification = "classification"
	PhaseDedup          = "dedup"
	PhasePersist        = "persist"
	PhaseComplete       = "complete"
)

// Redis key formats for pipeline run state
const (
	redisKeyRunState   = "paper:run:%d"
	redisKeyActivePage = "paper:active:%d"
)

// PipelineRun is the live progress snapshot of one paper's processing,
// stored in Redis while the run is in flight
type PipelineRun struct {
	PaperID            uint       `json:"paper_id"`
	Status             string     `json:"status"` // processing, completed, failed
	Progress           int        `json:"progress"`
	Phase              string     `json:"phase"`
	Message            string     `json:"message"`
	QuestionsExtracted int        `json:"questions_extracted"`
	ErrorType          string     `json:"error_type,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeLLM        ErrorType = "llm"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeDocument   ErrorType = "document"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// ProgressTracker manages pipeline run state in Redis. A nil cache turns
// every operation into a no-op so the pipeline can run without Redis in
// tests.
type ProgressTracker struct {
	cache *cache.RedisCache
}

// NewProgressTracker creates a new progress tracker instance
func NewProgressTracker(redisCache *cache.RedisCache) *ProgressTracker {
	return &ProgressTracker{cache: redisCache}
}

// StartRun records a fresh run for a paper, replacing any previous state
func (pt *ProgressTracker) StartRun(ctx context.Context, paperID uint) error {
	if pt.cache == nil {
		return nil
	}

	run := &PipelineRun{
		PaperID:   paperID,
		Status:    "processing",
		Progress:  0,
		Phase:     PhaseConversion,
		Message:   "Processing queued",
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	key := fmt.Sprintf(redisKeyRunState, paperID)
	if err := pt.cache.SetJSON(ctx, key, run, RunStateTTLPending); err != nil {
		return fmt.Errorf("failed to save run state: %w", err)
	}
	return nil
}

// UpdatePhase advances the run to a new phase with its checkpoint progress
func (pt *ProgressTracker) UpdatePhase(ctx context.Context, paperID uint, phase, message string) error {
	if pt.cache == nil {
		return nil
	}

	run, err := pt.GetRun(ctx, paperID)
	if err != nil {
		return err
	}

	run.Phase = phase
	run.Progress = PhaseProgress(phase)
	run.Message = message
	run.UpdatedAt = time.Now()

	if phase == PhaseComplete {
		run.Status = "completed"
		now := time.Now()
		run.CompletedAt = &now
	}

	ttl := RunStateTTLPending
	if run.Status == "completed" {
		ttl = RunStateTTLSuccess
	}

	key := fmt.Sprintf(redisKeyRunState, paperID)
	return pt.cache.SetJSON(ctx, key, run, ttl)
}

// SetQuestionCount records how many questions the run has extracted so far
func (pt *ProgressTracker) SetQuestionCount(ctx context.Context, paperID uint, count int) error {
	if pt.cache == nil {
		return nil
	}

	run, err := pt.GetRun(ctx, paperID)
	if err != nil {
		return err
	}

	run.QuestionsExtracted = count
	run.UpdatedAt = time.Now()

	key := fmt.Sprintf(redisKeyRunState, paperID)
	return pt.cache.SetJSON(ctx, key, run, RunStateTTLPending)
}

// FailRun marks the run failed with a classified error. Progress resets to
// zero since a failed run commits nothing.
func (pt *ProgressTracker) FailRun(ctx context.Context, paperID uint, runErr error) error {
	if pt.cache == nil {
		return nil
	}

	run, err := pt.GetRun(ctx, paperID)
	if err != nil {
		run = &PipelineRun{PaperID: paperID, StartedAt: time.Now()}
	}

	errType, _ := ClassifyError(runErr)
	now := time.Now()
	run.Status = "failed"
	run.Progress = 0
	run.ErrorType = string(errType)
	run.ErrorMessage = runErr.Error()
	run.Message = "Processing failed"
	run.UpdatedAt = now
	run.CompletedAt = &now

	key := fmt.Sprintf(redisKeyRunState, paperID)
	return pt.cache.SetJSON(ctx, key, run, RunStateTTLFailure)
}

// GetRun retrieves run state from Redis
func (pt *ProgressTracker) GetRun(ctx context.Context, paperID uint) (*PipelineRun, error) {
	if pt.cache == nil {
		return nil, fmt.Errorf("no progress cache configured")
	}

	key := fmt.Sprintf(redisKeyRunState, paperID)

	var run PipelineRun
	if err := pt.cache.GetJSON(ctx, key, &run); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, fmt.Errorf("run not found or expired for paper %d", paperID)
		}
		return nil, fmt.Errorf("failed to get run state: %w", err)
	}

	return &run, nil
}

// ClearRun removes the run state for a paper
func (pt *ProgressTracker) ClearRun(ctx context.Context, paperID uint) error {
	if pt.cache == nil {
		return nil
	}
	return pt.cache.Delete(ctx, fmt.Sprintf(redisKeyRunState, paperID))
}

// TryAcquireRun marks a paper as actively processing. Returns false when a
// run is already in flight so Start stays idempotent.
func (pt *ProgressTracker) TryAcquireRun(ctx context.Context, paperID uint, ttl time.Duration) (bool, error) {
	if pt.cache == nil {
		return true, nil
	}
	key := fmt.Sprintf(redisKeyActivePage, paperID)
	return pt.cache.SetNX(ctx, key, time.Now().Unix(), ttl)
}

// ReleaseRun clears the active-processing marker for a paper
func (pt *ProgressTracker) ReleaseRun(ctx context.Context, paperID uint) {
	if pt.cache == nil {
		return
	}
	pt.cache.Delete(ctx, fmt.Sprintf(redisKeyActivePage, paperID))
}

// ClassifyError classifies an error and determines if it's recoverable
func ClassifyError(err error) (ErrorType, bool) {
	if err == nil {
		return ErrorTypeUnknown, false
	}

	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return ErrorTypeDocument, false
	}
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return ErrorTypeLLM, true
	}
	var classErr *ClassificationError
	if errors.As(err, &classErr) {
		return ErrorTypeLLM, true
	}
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return ErrorTypeDatabase, false
	}

	errStr := strings.ToLower(err.Error())

	// Network errors (recoverable)
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "dial") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "reset by peer") {
		return ErrorTypeNetwork, true
	}

	// LLM API errors (recoverable)
	if strings.Contains(errStr, "inference api") ||
		strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "status 500") ||
		strings.Contains(errStr, "status 502") ||
		strings.Contains(errStr, "status 503") ||
		strings.Contains(errStr, "status 504") {
		return ErrorTypeLLM, true
	}

	// Timeout errors (recoverable)
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context deadline") {
		return ErrorTypeTimeout, true
	}

	// Database errors (not recoverable)
	if strings.Contains(errStr, "database") ||
		strings.Contains(errStr, "transaction") ||
		strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "gorm") {
		return ErrorTypeDatabase, false
	}

	// Document errors (not recoverable without a fresh upload)
	if strings.Contains(errStr, "pdf") ||
		strings.Contains(errStr, "docx") ||
		strings.Contains(errStr, "extract text") ||
		strings.Contains(errStr, "conversion") {
		return ErrorTypeDocument, false
	}

	// Validation errors (not recoverable)
	if strings.Contains(errStr, "validation") ||
		strings.Contains(errStr, "invalid") ||
		strings.Contains(errStr, "required") {
		return ErrorTypeValidation, false
	}

	return ErrorTypeUnknown, false
}

// PhaseProgress maps a pipeline phase to its checkpoint percentage
func PhaseProgress(phase string) int {
	switch phase {
	case PhaseConversion:
		return 10
	case PhaseExtraction:
		return 30
	case PhaseClassification:
		return 50
	case PhaseDedup:
		return 70
	case PhasePersist:
		return 90
	case PhaseComplete:
		return 100
	default:
		return 0
	}
}
