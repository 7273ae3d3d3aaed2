package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

// DefaultPipelineTimeout bounds one document's processing end to end
const DefaultPipelineTimeout = 25 * time.Minute

// FileStore fetches stored paper bytes. Satisfied by
// digitalocean.SpacesClient.
type FileStore interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
}

// Converter produces the intermediate representation of a stored document
type Converter interface {
	Convert(ctx context.Context, content []byte, filename, fileType string) (*ConversionResult, error)
}

// Extractor produces ordered question records from converter output
type Extractor interface {
	Extract(ctx context.Context, conv *ConversionResult) ([]ExtractedQuestion, error)
}

// PipelineStatus is the point-in-time snapshot exposed to callers
type PipelineStatus struct {
	Status             model.PaperStatus `json:"status"`
	Progress           int               `json:"progress"`
	Phase              string            `json:"phase,omitempty"`
	QuestionsExtracted int               `json:"questions_extracted"`
	Errors             []string          `json:"errors"`
}

// PipelineOrchestrator sequences conversion, extraction, classification,
// dedup, and review routing for one paper, owning progress reporting and
// failure containment at every stage boundary.
type PipelineOrchestrator struct {
	db         *gorm.DB
	store      FileStore
	converter  Converter
	extractor  Extractor
	classifier Classifier
	resolver   *DuplicateResolver
	router     *ReviewRouter
	tracker    *ProgressTracker
	timeout    time.Duration
}

// NewPipelineOrchestrator wires the pipeline stages together
func NewPipelineOrchestrator(
	db *gorm.DB,
	store FileStore,
	converter Converter,
	extractor Extractor,
	classifier Classifier,
	resolver *DuplicateResolver,
	router *ReviewRouter,
	tracker *ProgressTracker,
	timeout time.Duration,
) *PipelineOrchestrator {
	if timeout <= 0 {
		timeout = DefaultPipelineTimeout
	}
	return &PipelineOrchestrator{
		db:         db,
		store:      store,
		converter:  converter,
		extractor:  extractor,
		classifier: classifier,
		resolver:   resolver,
		router:     router,
		tracker:    tracker,
		timeout:    timeout,
	}
}

// Start begins or resumes processing for a paper in the background.
// Idempotent: safe to call again on a failed or metadata_pending paper; a
// paper already in flight is left alone.
func (o *PipelineOrchestrator) Start(paperID uint) error {
	var paper model.Paper
	if err := o.db.First(&paper, paperID).Error; err != nil {
		return fmt.Errorf("paper not found: %w", err)
	}

	switch paper.Status {
	case model.PaperStatusUploaded:
		return fmt.Errorf("paper %d has no metadata attached yet", paperID)
	case model.PaperStatusCompleted:
		return fmt.Errorf("paper %d is already processed", paperID)
	}

	ctx := context.Background()
	acquired, err := o.tracker.TryAcquireRun(ctx, paperID, o.timeout+time.Minute)
	if err != nil {
		return fmt.Errorf("failed to acquire run for paper %d: %w", paperID, err)
	}
	if !acquired {
		log.Printf("Pipeline: Paper %d already processing, ignoring duplicate start", paperID)
		return nil
	}

	updates := map[string]interface{}{
		"status":        model.PaperStatusProcessing,
		"progress":      0,
		"error_message": "",
	}
	if err := o.db.Model(&model.Paper{}).Where("id = ?", paperID).Updates(updates).Error; err != nil {
		o.tracker.ReleaseRun(ctx, paperID)
		return fmt.Errorf("failed to mark paper processing: %w", err)
	}
	if err := o.tracker.StartRun(ctx, paperID); err != nil {
		log.Printf("Pipeline: Failed to record run start for paper %d: %v", paperID, err)
	}

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		defer o.tracker.ReleaseRun(context.Background(), paperID)

		if err := o.process(runCtx, paperID); err != nil {
			log.Printf("Pipeline: Paper %d failed: %v", paperID, err)
			o.failPaper(paperID, err)
		}
	}()

	return nil
}

// Status returns the point-in-time processing snapshot for a paper,
// merging the persisted row with any live run state.
func (o *PipelineOrchestrator) Status(paperID uint) (*PipelineStatus, error) {
	var paper model.Paper
	if err := o.db.First(&paper, paperID).Error; err != nil {
		return nil, fmt.Errorf("paper not found: %w", err)
	}

	status := &PipelineStatus{
		Status:             paper.Status,
		Progress:           paper.Progress,
		QuestionsExtracted: paper.TotalQuestionsExtracted,
		Errors:             []string{},
	}
	if paper.ErrorMessage != "" {
		status.Errors = append(status.Errors, paper.ErrorMessage)
	}

	if paper.Status == model.PaperStatusProcessing {
		if run, err := o.tracker.GetRun(context.Background(), paperID); err == nil {
			status.Progress = run.Progress
			status.Phase = run.Phase
			status.QuestionsExtracted = run.QuestionsExtracted
		}
	}

	return status, nil
}

// process runs all five stages for one paper. Any returned error is a
// terminal failure for this run.
func (o *PipelineOrchestrator) process(ctx context.Context, paperID uint) error {
	var paper model.Paper
	if err := o.db.First(&paper, paperID).Error; err != nil {
		return fmt.Errorf("failed to reload paper: %w", err)
	}

	// Stage 1: conversion
	o.checkpoint(ctx, paperID, PhaseConversion, "Converting document")
	content, err := o.store.DownloadFile(ctx, paper.StoragePath)
	if err != nil {
		return &ConversionError{Path: paper.StoragePath, Err: err}
	}
	conv, err := o.converter.Convert(ctx, content, paper.OriginalFilename, paper.FileType)
	if err != nil {
		return err
	}

	// Stage 2: extraction
	o.checkpoint(ctx, paperID, PhaseExtraction, "Extracting questions")
	extracted, err := o.extractor.Extract(ctx, conv)
	if err != nil {
		return err
	}
	o.tracker.SetQuestionCount(ctx, paperID, len(extracted))

	// Stage 3: classification. Failures degrade per question to an
	// unassigned unit with zero confidence, never aborting the document.
	o.checkpoint(ctx, paperID, PhaseClassification, "Classifying questions")
	var units []model.CourseUnit
	if err := o.db.Where("course_id = ?", paper.CourseID).
		Order("unit_number ASC").Find(&units).Error; err != nil {
		return fmt.Errorf("failed to load syllabus units: %w", err)
	}

	questions := make([]model.Question, len(extracted))
	matches := make([]UnitMatch, len(extracted))
	for i, eq := range extracted {
		match := o.classifier.Classify(ctx, eq.Text, units)
		matches[i] = match

		var topicTags datatypes.JSON
		if len(match.TopicTags) > 0 {
			if data, err := json.Marshal(match.TopicTags); err == nil {
				topicTags = datatypes.JSON(data)
			}
		}

		questions[i] = model.Question{
			PaperID:       paper.ID,
			CourseID:      paper.CourseID,
			UnitID:        match.UnitID,
			Number:        eq.Number,
			Ordinal:       i + 1,
			Text:          eq.Text,
			Marks:         eq.Marks,
			BloomLevel:    eq.BloomLevel,
			BloomCategory: eq.BloomCategory,
			Difficulty:    EstimateDifficulty(eq.Marks, eq.BloomLevel),
			Confidence:    match.Confidence,
			IsCanonical:   true,
			HasSubparts:   eq.HasSubparts,
			HasDiagram:    eq.HasDiagram,
			PageNumber:    eq.PageNumber,
			TopicTags:     topicTags,
			Reviewed:      false,
			ReviewStatus:  model.ReviewStatusPending,
		}
	}

	// Stage 4: dedup, serialized per course
	o.checkpoint(ctx, paperID, PhaseDedup, "Resolving duplicates")
	if err := o.resolver.LockCourse(ctx, paper.CourseID); err != nil {
		return err
	}
	defer o.resolver.UnlockCourse(context.Background(), paper.CourseID)

	texts := make([]string, len(questions))
	for i := range questions {
		texts[i] = questions[i].Text
	}
	decisions, err := o.resolver.Resolve(ctx, paper.CourseID, texts)
	if err != nil {
		return err
	}

	// Stage 5: transactional persist
	o.checkpoint(ctx, paperID, PhasePersist, "Saving results")
	if err := o.persist(&paper, questions, matches, decisions, conv.PageCount); err != nil {
		return err
	}

	// The transaction already committed the final paper state; only the
	// live run snapshot needs the completion marker
	if err := o.tracker.UpdatePhase(ctx, paperID, PhaseComplete, "Processing complete"); err != nil {
		log.Printf("Pipeline: Failed to update run state for paper %d: %v", paperID, err)
	}
	log.Printf("Pipeline: Paper %d completed with %d questions", paperID, len(questions))
	return nil
}

// persist writes all questions, review entries, and the final paper state
// in a single transaction. A failed run commits nothing.
func (o *PipelineOrchestrator) persist(paper *model.Paper, questions []model.Question, matches []UnitMatch, decisions []DedupDecision, pageCount int) error {
	tx := o.db.Begin()
	if tx.Error != nil {
		return &PersistenceError{Err: tx.Error}
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	insertedIDs := make([]uint, len(questions))
	reviewPending := 0

	for i := range questions {
		d := decisions[i]
		questions[i].IsCanonical = d.IsCanonical
		questions[i].SimilarityScore = d.SimilarityScore
		if d.ParentQuestionID != nil {
			questions[i].ParentQuestionID = d.ParentQuestionID
		} else if d.ParentIndex != nil {
			parentID := insertedIDs[*d.ParentIndex]
			questions[i].ParentQuestionID = &parentID
		}

		if err := tx.Create(&questions[i]).Error; err != nil {
			tx.Rollback()
			return &PersistenceError{Err: fmt.Errorf("failed to save question %d: %w", i+1, err)}
		}
		insertedIDs[i] = questions[i].ID

		entry, err := o.router.Route(&questions[i], matches[i])
		if err != nil {
			tx.Rollback()
			return &PersistenceError{Err: err}
		}
		entry.QuestionID = questions[i].ID
		if err := tx.Create(entry).Error; err != nil {
			tx.Rollback()
			return &PersistenceError{Err: fmt.Errorf("failed to save review entry: %w", err)}
		}
		reviewPending++
	}

	updates := map[string]interface{}{
		"status":                    model.PaperStatusCompleted,
		"progress":                  100,
		"total_questions_extracted": len(questions),
		"review_pending_count":      reviewPending,
		"page_count":                pageCount,
		"error_message":             "",
	}
	if err := tx.Model(&model.Paper{}).Where("id = ?", paper.ID).Updates(updates).Error; err != nil {
		tx.Rollback()
		return &PersistenceError{Err: fmt.Errorf("failed to update paper: %w", err)}
	}

	if err := tx.Commit().Error; err != nil {
		return &PersistenceError{Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// checkpoint advances the persisted progress and the live run state. Status
// transitions are not written here; completion is committed by persist and
// failure by failPaper.
func (o *PipelineOrchestrator) checkpoint(ctx context.Context, paperID uint, phase, message string) {
	progress := PhaseProgress(phase)

	if err := o.db.Model(&model.Paper{}).Where("id = ?", paperID).
		Update("progress", progress).Error; err != nil {
		log.Printf("Pipeline: Failed to update paper %d progress: %v", paperID, err)
	}

	if err := o.tracker.UpdatePhase(ctx, paperID, phase, message); err != nil {
		log.Printf("Pipeline: Failed to update run state for paper %d: %v", paperID, err)
	}
}

// failPaper records a terminal failure: status failed, progress reset,
// human-readable error surfaced on the paper row.
func (o *PipelineOrchestrator) failPaper(paperID uint, runErr error) {
	updates := map[string]interface{}{
		"status":        model.PaperStatusFailed,
		"progress":      0,
		"error_message": runErr.Error(),
	}
	if err := o.db.Model(&model.Paper{}).Where("id = ?", paperID).Updates(updates).Error; err != nil {
		log.Printf("Pipeline: Failed to record failure for paper %d: %v", paperID, err)
	}

	if err := o.tracker.FailRun(context.Background(), paperID, runErr); err != nil {
		log.Printf("Pipeline: Failed to record run failure for paper %d: %v", paperID, err)
	}
}
