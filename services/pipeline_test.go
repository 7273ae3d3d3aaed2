package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

type fakeFileStore struct {
	content []byte
	err     error
}

func (f *fakeFileStore) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	return f.content, f.err
}

type fakeConverter struct {
	result *ConversionResult
	err    error
}

func (f *fakeConverter) Convert(ctx context.Context, content []byte, filename, fileType string) (*ConversionResult, error) {
	return f.result, f.err
}

type fakeExtractor struct {
	questions []ExtractedQuestion
	err       error
}

func (f *fakeExtractor) Extract(ctx context.Context, conv *ConversionResult) ([]ExtractedQuestion, error) {
	return f.questions, f.err
}

func seedCourse(t *testing.T, db *gorm.DB) model.Course {
	t.Helper()

	course := model.Course{Name: "Operating Systems", Code: "CS301"}
	require.NoError(t, db.Create(&course).Error)

	units := []struct {
		number int
		name   string
		topics []string
	}{
		{1, "CPU Scheduling", []string{"round robin", "priority scheduling", "multilevel queue"}},
		{2, "Memory Management", []string{"paging", "virtual memory", "page replacement"}},
	}
	for _, u := range units {
		topics, err := json.Marshal(u.topics)
		require.NoError(t, err)
		require.NoError(t, db.Create(&model.CourseUnit{
			CourseID:   course.ID,
			UnitNumber: u.number,
			Name:       u.name,
			Topics:     datatypes.JSON(topics),
		}).Error)
	}
	return course
}

func seedPaper(t *testing.T, db *gorm.DB, courseID uint, status model.PaperStatus) model.Paper {
	t.Helper()

	paper := model.Paper{
		CourseID:         courseID,
		AcademicYear:     "2024-25",
		Semester:         model.SemesterOdd,
		ExamType:         model.ExamTypeCIE1,
		OriginalFilename: "cie1.pdf",
		FileType:         "pdf",
		StoragePath:      fmt.Sprintf("papers/%d/cie1.pdf", courseID),
		Status:           status,
	}
	require.NoError(t, db.Create(&paper).Error)
	return paper
}

func newTestPipeline(db *gorm.DB, converter Converter, extractor Extractor, resolver *DuplicateResolver) *PipelineOrchestrator {
	return NewPipelineOrchestrator(
		db,
		&fakeFileStore{content: []byte("%PDF-1.4")},
		converter,
		extractor,
		NewUnitClassifier(),
		resolver,
		NewReviewRouter(),
		NewProgressTracker(nil),
		time.Minute,
	)
}

func extracted(texts ...string) []ExtractedQuestion {
	questions := make([]ExtractedQuestion, len(texts))
	for i, text := range texts {
		questions[i] = ExtractedQuestion{Number: fmt.Sprintf("%d", i+1), Text: text}
	}
	return questions
}

func TestProcessHappyPath(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	paper := seedPaper(t, db, course.ID, model.PaperStatusProcessing)

	converter := &fakeConverter{result: &ConversionResult{Text: "paper text", PageCount: 2, PagesIncluded: 2}}
	extractor := &fakeExtractor{questions: extracted(
		"Explain round robin and priority scheduling",
		"Describe paging and virtual memory",
		"Compare priority scheduling with round robin scheduling",
	)}
	resolver := NewDuplicateResolver(db, nil, nil, DedupModeIntake, "")
	pipeline := newTestPipeline(db, converter, extractor, resolver)

	require.NoError(t, pipeline.process(context.Background(), paper.ID))

	var got model.Paper
	require.NoError(t, db.First(&got, paper.ID).Error)
	assert.Equal(t, model.PaperStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 3, got.TotalQuestionsExtracted)
	assert.Equal(t, 3, got.ReviewPendingCount)
	assert.Equal(t, 2, got.PageCount)
	assert.Empty(t, got.ErrorMessage)

	var questions []model.Question
	require.NoError(t, db.Where("paper_id = ?", paper.ID).Order("ordinal ASC").Find(&questions).Error)
	require.Len(t, questions, 3)
	for i, q := range questions {
		assert.Equal(t, i+1, q.Ordinal)
		assert.True(t, q.IsCanonical)
		assert.Nil(t, q.ParentQuestionID)
		assert.NotNil(t, q.UnitID, "question %d should be classified", i+1)
		assert.Equal(t, model.ReviewStatusPending, q.ReviewStatus)
	}

	// Every question lands in the review queue; matched units above the
	// rejection threshold but below the confidence floor flag low_confidence
	var entries []model.ReviewQueueEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, model.IssueLowConfidence, e.IssueType)
		assert.Equal(t, 2, e.Priority)
		assert.Equal(t, model.ReviewEntryPending, e.Status)
	}
}

func TestProcessRoutesUnmatchedQuestionToReview(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	paper := seedPaper(t, db, course.ID, model.PaperStatusProcessing)

	converter := &fakeConverter{result: &ConversionResult{Text: "paper text", PageCount: 1}}
	extractor := &fakeExtractor{questions: extracted(
		"Explain round robin and priority scheduling",
		"Discuss the causes of the French revolution",
	)}
	resolver := NewDuplicateResolver(db, nil, nil, DedupModeIntake, "")
	pipeline := newTestPipeline(db, converter, extractor, resolver)

	require.NoError(t, pipeline.process(context.Background(), paper.ID))

	var questions []model.Question
	require.NoError(t, db.Where("paper_id = ?", paper.ID).Order("ordinal ASC").Find(&questions).Error)
	require.Len(t, questions, 2)
	assert.NotNil(t, questions[0].UnitID)
	assert.Nil(t, questions[1].UnitID)

	var entry model.ReviewQueueEntry
	require.NoError(t, db.Where("question_id = ?", questions[1].ID).First(&entry).Error)
	assert.Equal(t, model.IssueAmbiguousUnit, entry.IssueType)
	assert.Equal(t, 1, entry.Priority)
}

func TestProcessMarksCrossPaperDuplicates(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)

	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"Explain round robin and priority scheduling":               unitVector(1),
		"Explain the round robin and priority scheduling algorithm": unitVector(0.97),
	}}
	resolver := NewDuplicateResolver(db, embedder, nil, DedupModeEmbedding, "")
	converter := &fakeConverter{result: &ConversionResult{Text: "paper text", PageCount: 1}}

	paper1 := seedPaper(t, db, course.ID, model.PaperStatusProcessing)
	first := newTestPipeline(db, converter, &fakeExtractor{
		questions: extracted("Explain round robin and priority scheduling"),
	}, resolver)
	require.NoError(t, first.process(context.Background(), paper1.ID))

	paper2 := seedPaper(t, db, course.ID, model.PaperStatusProcessing)
	second := newTestPipeline(db, converter, &fakeExtractor{
		questions: extracted("Explain the round robin and priority scheduling algorithm"),
	}, resolver)
	require.NoError(t, second.process(context.Background(), paper2.ID))

	var original model.Question
	require.NoError(t, db.Where("paper_id = ?", paper1.ID).First(&original).Error)
	assert.True(t, original.IsCanonical)

	var variant model.Question
	require.NoError(t, db.Where("paper_id = ?", paper2.ID).First(&variant).Error)
	assert.False(t, variant.IsCanonical)
	require.NotNil(t, variant.ParentQuestionID)
	assert.Equal(t, original.ID, *variant.ParentQuestionID)
	require.NotNil(t, variant.SimilarityScore)
	assert.GreaterOrEqual(t, *variant.SimilarityScore, duplicateThreshold)

	// Canonical rows and only canonical rows have a nil parent
	var all []model.Question
	require.NoError(t, db.Find(&all).Error)
	canonical := 0
	for _, q := range all {
		if q.IsCanonical {
			canonical++
			assert.Nil(t, q.ParentQuestionID)
		} else {
			assert.NotNil(t, q.ParentQuestionID)
		}
	}
	assert.Equal(t, 1, canonical)
	assert.Len(t, all, 2)
}

func TestProcessCorruptDocumentCommitsNothing(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	paper := seedPaper(t, db, course.ID, model.PaperStatusProcessing)

	converter := &fakeConverter{err: &ConversionError{Path: "cie1.pdf", Err: fmt.Errorf("failed to validate/optimize PDF")}}
	extractor := &fakeExtractor{}
	resolver := NewDuplicateResolver(db, nil, nil, DedupModeIntake, "")
	pipeline := newTestPipeline(db, converter, extractor, resolver)

	err := pipeline.process(context.Background(), paper.ID)
	require.Error(t, err)

	var convErr *ConversionError
	assert.ErrorAs(t, err, &convErr)

	pipeline.failPaper(paper.ID, err)

	var got model.Paper
	require.NoError(t, db.First(&got, paper.ID).Error)
	assert.Equal(t, model.PaperStatusFailed, got.Status)
	assert.Zero(t, got.Progress)
	assert.NotEmpty(t, got.ErrorMessage)

	var questionCount, entryCount int64
	require.NoError(t, db.Model(&model.Question{}).Count(&questionCount).Error)
	require.NoError(t, db.Model(&model.ReviewQueueEntry{}).Count(&entryCount).Error)
	assert.Zero(t, questionCount)
	assert.Zero(t, entryCount)

	status, err := pipeline.Status(paper.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaperStatusFailed, status.Status)
	require.Len(t, status.Errors, 1)
	assert.Contains(t, status.Errors[0], "conversion failed")
}

func TestProcessZeroQuestionsCompletes(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	paper := seedPaper(t, db, course.ID, model.PaperStatusProcessing)

	converter := &fakeConverter{result: &ConversionResult{Text: "paper text", PageCount: 1}}
	extractor := &fakeExtractor{questions: []ExtractedQuestion{}}
	resolver := NewDuplicateResolver(db, nil, nil, DedupModeIntake, "")
	pipeline := newTestPipeline(db, converter, extractor, resolver)

	require.NoError(t, pipeline.process(context.Background(), paper.ID))

	var got model.Paper
	require.NoError(t, db.First(&got, paper.ID).Error)
	assert.Equal(t, model.PaperStatusCompleted, got.Status)
	assert.Zero(t, got.TotalQuestionsExtracted)
	assert.Zero(t, got.ReviewPendingCount)
}

func TestCheckpointUpdatesProgressOnly(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	paper := seedPaper(t, db, course.ID, model.PaperStatusProcessing)
	pipeline := newTestPipeline(db, &fakeConverter{}, &fakeExtractor{}, NewDuplicateResolver(db, nil, nil, DedupModeIntake, ""))

	pipeline.checkpoint(context.Background(), paper.ID, PhaseDedup, "Resolving duplicates")

	var got model.Paper
	require.NoError(t, db.First(&got, paper.ID).Error)
	assert.Equal(t, 70, got.Progress)
	assert.Equal(t, model.PaperStatusProcessing, got.Status)
}

func TestStartRejectsWrongStates(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	pipeline := newTestPipeline(db, &fakeConverter{}, &fakeExtractor{}, NewDuplicateResolver(db, nil, nil, DedupModeIntake, ""))

	uploaded := seedPaper(t, db, course.ID, model.PaperStatusUploaded)
	err := pipeline.Start(uploaded.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no metadata")

	completed := seedPaper(t, db, course.ID, model.PaperStatusCompleted)
	err = pipeline.Start(completed.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already processed")

	err = pipeline.Start(99999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStartReprocessesFailedPaper(t *testing.T) {
	db := newTestDB(t)
	course := seedCourse(t, db)
	paper := seedPaper(t, db, course.ID, model.PaperStatusFailed)
	require.NoError(t, db.Model(&paper).Update("error_message", "extraction failed: earlier run").Error)

	converter := &fakeConverter{result: &ConversionResult{Text: "paper text", PageCount: 1}}
	extractor := &fakeExtractor{questions: extracted("Explain round robin and priority scheduling")}
	resolver := NewDuplicateResolver(db, nil, nil, DedupModeIntake, "")
	pipeline := newTestPipeline(db, converter, extractor, resolver)

	require.NoError(t, pipeline.Start(paper.ID))

	assert.Eventually(t, func() bool {
		var got model.Paper
		if err := db.First(&got, paper.ID).Error; err != nil {
			return false
		}
		return got.Status == model.PaperStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	var got model.Paper
	require.NoError(t, db.First(&got, paper.ID).Error)
	assert.Equal(t, 1, got.TotalQuestionsExtracted)
	assert.Empty(t, got.ErrorMessage)
}
