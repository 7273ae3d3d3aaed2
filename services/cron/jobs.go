package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

// CleanupStalePapers marks papers abandoned in metadata_pending for more
// than 24 hours. The upload stays in object storage; only the row is
// flagged so listings don't show dead entries as actionable.
func (m *CronManager) CleanupStalePapers() {
	jobName := "cleanup_stale_papers"

	cutoffTime := time.Now().Add(-24 * time.Hour)

	result := m.db.Model(&model.Paper{}).
		Where("status = ? AND updated_at < ?", model.PaperStatusMetadataPending, cutoffTime).
		Updates(map[string]interface{}{
			"status":        model.PaperStatusFailed,
			"error_message": "abandoned: no metadata submitted within 24 hours",
		})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to update stale papers: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Flagged %d stale papers", result.RowsAffected))
}

// CleanupStaleRuns removes redis run state for papers that are no longer
// processing, e.g. after a crash between DB update and key expiry
func (m *CronManager) CleanupStaleRuns() {
	jobName := "cleanup_stale_runs"

	if m.cache == nil {
		m.logJobComplete(jobName, "No cache configured, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	keys, err := m.cache.Keys(ctx, "paper:run:*")
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to list run keys: %w", err))
		return
	}

	cleaned := 0
	for _, key := range keys {
		var paperID uint
		if _, err := fmt.Sscanf(key, "paper:run:%d", &paperID); err != nil {
			continue
		}

		var paper model.Paper
		err := m.db.Select("id", "status").First(&paper, paperID).Error
		if err == nil && paper.Status == model.PaperStatusProcessing {
			continue
		}

		if err := m.cache.Delete(ctx, key); err != nil {
			log.Printf("[CRON] Failed to delete stale run key %s: %v", key, err)
			continue
		}
		cleaned++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Checked %d run keys, cleaned %d", len(keys), cleaned))
}

// EscalateReviewQueue raises the priority of review entries pending for
// more than 7 days so they surface at the top of reviewer listings
func (m *CronManager) EscalateReviewQueue() {
	jobName := "escalate_review_queue"

	cutoffTime := time.Now().Add(-7 * 24 * time.Hour)

	result := m.db.Model(&model.ReviewQueueEntry{}).
		Where("status = ? AND priority > 1 AND created_at < ?", model.ReviewEntryPending, cutoffTime).
		Update("priority", 1)
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to escalate review entries: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Escalated %d review entries", result.RowsAffected))
}

// CleanupOldLogs trims cron job logs older than 90 days
func (m *CronManager) CleanupOldLogs() {
	jobName := "cleanup_old_logs"

	cutoffTime := time.Now().Add(-90 * 24 * time.Hour)

	result := m.db.Where("created_at < ?", cutoffTime).Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to clean cron logs: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Cleaned %d old cron logs", result.RowsAffected))
}
