// migrate_gorm.go - Run this file to test GORM migrations
// Usage: go run migrate_gorm.go

//go:build ignore

package main

import (
	"log"

	"github.com/sahilchouksey/qbank-pipeline/config"
	"github.com/sahilchouksey/qbank-pipeline/database"
)

func main() {
	log.Println("=== GORM Migration Test ===")

	// Load environment variables
	if err := config.LoadENV(); err != nil {
		log.Fatal("Failed to load environment variables:", err)
	}

	// Create the database if needed, then connect
	if err := database.EnsureDatabase(); err != nil {
		log.Fatal("Failed to ensure database exists:", err)
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	// Run migrations
	if err := store.Init(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Health check
	if err := store.HealthCheck(); err != nil {
		log.Fatal("Database health check failed:", err)
	}

	log.Println("All migrations completed successfully!")
	log.Println("Database connection healthy!")
	log.Println("\nYou can now check your PostgreSQL database to see the new tables:")
	log.Println("  - courses")
	log.Println("  - course_units")
	log.Println("  - papers")
	log.Println("  - questions")
	log.Println("  - review_queue_entries")
	log.Println("  - cron_job_logs")
}
