package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

func newTestManager(t *testing.T) *CronManager {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Course{},
		&model.Paper{},
		&model.Question{},
		&model.ReviewQueueEntry{},
		&model.CronJobLog{},
	))

	return NewCronManager(db, nil)
}

// backdate rewrites a row's timestamp column without touching updated_at
func backdate(t *testing.T, db *gorm.DB, value interface{}, column string, age time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(value).UpdateColumn(column, time.Now().Add(-age)).Error)
}

func TestCleanupStalePapers(t *testing.T) {
	m := newTestManager(t)

	stale := model.Paper{Status: model.PaperStatusMetadataPending}
	require.NoError(t, m.db.Create(&stale).Error)
	backdate(t, m.db, &stale, "updated_at", 25*time.Hour)

	fresh := model.Paper{Status: model.PaperStatusMetadataPending}
	require.NoError(t, m.db.Create(&fresh).Error)

	processing := model.Paper{Status: model.PaperStatusProcessing}
	require.NoError(t, m.db.Create(&processing).Error)
	backdate(t, m.db, &processing, "updated_at", 25*time.Hour)

	m.CleanupStalePapers()

	var got model.Paper
	require.NoError(t, m.db.First(&got, stale.ID).Error)
	assert.Equal(t, model.PaperStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "abandoned")

	require.NoError(t, m.db.First(&got, fresh.ID).Error)
	assert.Equal(t, model.PaperStatusMetadataPending, got.Status)

	require.NoError(t, m.db.First(&got, processing.ID).Error)
	assert.Equal(t, model.PaperStatusProcessing, got.Status)
}

func TestEscalateReviewQueue(t *testing.T) {
	m := newTestManager(t)

	longPending := model.ReviewQueueEntry{QuestionID: 1, IssueType: model.IssueNeedsReview, Priority: 3, Status: model.ReviewEntryPending}
	require.NoError(t, m.db.Create(&longPending).Error)
	backdate(t, m.db, &longPending, "created_at", 8*24*time.Hour)

	alreadyTop := model.ReviewQueueEntry{QuestionID: 2, IssueType: model.IssueAmbiguousUnit, Priority: 1, Status: model.ReviewEntryPending}
	require.NoError(t, m.db.Create(&alreadyTop).Error)
	backdate(t, m.db, &alreadyTop, "created_at", 8*24*time.Hour)

	recent := model.ReviewQueueEntry{QuestionID: 3, IssueType: model.IssueNeedsReview, Priority: 3, Status: model.ReviewEntryPending}
	require.NoError(t, m.db.Create(&recent).Error)

	resolved := model.ReviewQueueEntry{QuestionID: 4, IssueType: model.IssueNeedsReview, Priority: 3, Status: model.ReviewEntryApproved}
	require.NoError(t, m.db.Create(&resolved).Error)
	backdate(t, m.db, &resolved, "created_at", 8*24*time.Hour)

	m.EscalateReviewQueue()

	var got model.ReviewQueueEntry
	require.NoError(t, m.db.First(&got, longPending.ID).Error)
	assert.Equal(t, 1, got.Priority)

	require.NoError(t, m.db.First(&got, recent.ID).Error)
	assert.Equal(t, 3, got.Priority)

	require.NoError(t, m.db.First(&got, resolved.ID).Error)
	assert.Equal(t, 3, got.Priority)
}

func TestCleanupOldLogs(t *testing.T) {
	m := newTestManager(t)

	old := model.CronJobLog{JobName: "cleanup_stale_papers", Status: "completed", StartedAt: time.Now()}
	require.NoError(t, m.db.Create(&old).Error)
	backdate(t, m.db, &old, "created_at", 91*24*time.Hour)

	recent := model.CronJobLog{JobName: "cleanup_stale_papers", Status: "completed", StartedAt: time.Now()}
	require.NoError(t, m.db.Create(&recent).Error)

	m.CleanupOldLogs()

	var count int64
	require.NoError(t, m.db.Model(&model.CronJobLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestJobLogging(t *testing.T) {
	m := newTestManager(t)

	m.logJobStart("cleanup_stale_papers")
	m.CleanupStalePapers()

	var logEntry model.CronJobLog
	require.NoError(t, m.db.Where("job_name = ?", "cleanup_stale_papers").First(&logEntry).Error)
	assert.NotZero(t, logEntry.StartedAt)
}
