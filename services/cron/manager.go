package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
	"github.com/sahilchouksey/qbank-pipeline/utils/cache"
)

// CronManager manages all scheduled maintenance jobs
type CronManager struct {
	cron  *cron.Cron
	db    *gorm.DB
	cache *cache.RedisCache
}

// NewCronManager creates a new cron manager. cache may be nil; redis
// cleanup jobs become no-ops.
func NewCronManager(db *gorm.DB, redisCache *cache.RedisCache) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:  c,
		db:    db,
		cache: redisCache,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	// Register all jobs
	if err := m.registerJobs(); err != nil {
		return err
	}

	// Start the cron scheduler
	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every hour: clean up papers stuck without metadata
	_, err := m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("cleanup_stale_papers")
		m.CleanupStalePapers()
	})
	if err != nil {
		return err
	}

	// 2. Every hour at :30: clear orphaned pipeline run state in redis
	_, err = m.cron.AddFunc("0 30 * * * *", func() {
		m.logJobStart("cleanup_stale_runs")
		m.CleanupStaleRuns()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: escalate long-pending review entries
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("escalate_review_queue")
		m.EscalateReviewQueue()
	})
	if err != nil {
		return err
	}

	// 4. Daily at 2 AM: trim old cron job logs
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("cleanup_old_logs")
		m.CleanupOldLogs()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	// Log to database
	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	// Update database log
	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "completed",
			"completed_at": time.Now(),
			"message":      message,
		})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)

	// Update database log
	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}
