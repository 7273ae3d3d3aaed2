package database

import (
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

// RunSeeds populates a fresh database with a demo course and its syllabus
// units so the pipeline can be exercised immediately. Idempotent: existing
// courses are left untouched.
func RunSeeds(db *gorm.DB) error {
	log.Println("Seeding demo course...")

	var count int64
	if err := db.Model(&model.Course{}).Where("code = ?", "CS301").Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing courses: %w", err)
	}
	if count > 0 {
		log.Println("Demo course already present, skipping")
		return nil
	}

	course := model.Course{
		Name:        "Operating Systems",
		Code:        "CS301",
		Description: "Process management, memory management, file systems, and concurrency",
	}

	units := []struct {
		Number int
		Name   string
		Topics []string
	}{
		{1, "Processes and Threads", []string{"process lifecycle", "process scheduling", "context switching", "threads", "multithreading models"}},
		{2, "CPU Scheduling", []string{"scheduling algorithms", "round robin", "priority scheduling", "multilevel queue", "real-time scheduling"}},
		{3, "Synchronization", []string{"critical section", "semaphores", "monitors", "deadlock detection", "deadlock avoidance", "banker's algorithm"}},
		{4, "Memory Management", []string{"paging", "segmentation", "virtual memory", "page replacement", "thrashing"}},
		{5, "File Systems", []string{"file allocation", "directory structure", "free space management", "disk scheduling"}},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&course).Error; err != nil {
			return fmt.Errorf("failed to create demo course: %w", err)
		}

		for _, u := range units {
			topics, err := json.Marshal(u.Topics)
			if err != nil {
				return err
			}
			unit := model.CourseUnit{
				CourseID:   course.ID,
				UnitNumber: u.Number,
				Name:       u.Name,
				Topics:     datatypes.JSON(topics),
			}
			if err := tx.Create(&unit).Error; err != nil {
				return fmt.Errorf("failed to create unit %d: %w", u.Number, err)
			}
		}

		log.Printf("Seeded course %s with %d units", course.Code, len(units))
		return nil
	})
}
