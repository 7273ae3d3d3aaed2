package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sahilchouksey/qbank-pipeline/config"
)

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// GORM DB access
	GetDB() interface{} // Returns *gorm.DB for GORMStore
}

// EnsureDatabase connects to the maintenance database with a raw driver and
// creates the application database if it does not exist yet. Safe to call on
// every startup.
func EnsureDatabase() error {
	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	if getEnv.DB_NAME == "" {
		return fmt.Errorf("DB_NAME is not configured")
	}

	connectStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=postgres sslmode=%s",
		getEnv.DB_HOST, getEnv.DB_PORT, getEnv.DB_USER_NAME, getEnv.DB_PASSWORD, getEnv.DB_SSL_MODE,
	)

	db, err := sql.Open("postgres", connectStr)
	if err != nil {
		return fmt.Errorf("failed to open maintenance connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("maintenance database unreachable: %w", err)
	}

	var exists bool
	err = db.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", getEnv.DB_NAME).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		// Database names cannot be bound as parameters
		safeName := strings.ReplaceAll(getEnv.DB_NAME, `"`, "")
		if _, err := db.Exec(fmt.Sprintf(`CREATE DATABASE "%s"`, safeName)); err != nil {
			return fmt.Errorf("failed to create database %s: %w", getEnv.DB_NAME, err)
		}
		log.Printf("Database: created database %s", getEnv.DB_NAME)
	}

	return nil
}
