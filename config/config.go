package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Redis Configuration
	REDIS_URL      string
	REDIS_PASSWORD string
	REDIS_DB       string
	// DigitalOcean Configuration
	DO_INFERENCE_API_KEY string
	DO_EMBEDDING_MODEL   string
	DO_SPACES_KEY        string
	DO_SPACES_SECRET     string
	DO_SPACES_BUCKET     string
	DO_SPACES_REGION     string
	DO_SPACES_ENDPOINT   string
	DO_SPACES_CDN_URL    string
	// Pipeline configuration
	DEDUP_MODE        string // "embedding" (default) or "intake"
	CLASSIFIER_MODE   string // "tfidf" (default) or "llm"
	PIPELINE_TIMEOUT  int    // minutes per document
	MAX_PAGE_PAYLOADS int    // page blobs sent to the extraction service
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	dedupMode := os.Getenv("DEDUP_MODE")
	if dedupMode == "" {
		dedupMode = "embedding"
	}

	classifierMode := os.Getenv("CLASSIFIER_MODE")
	if classifierMode == "" {
		classifierMode = "tfidf"
	}

	pipelineTimeout, err := strconv.Atoi(os.Getenv("PIPELINE_TIMEOUT_MINUTES"))
	if err != nil || pipelineTimeout <= 0 {
		pipelineTimeout = 25
	}

	maxPagePayloads, err := strconv.Atoi(os.Getenv("MAX_PAGE_PAYLOADS"))
	if err != nil || maxPagePayloads <= 0 {
		maxPagePayloads = 10
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// Redis
		REDIS_URL:      os.Getenv("REDIS_URL"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       os.Getenv("REDIS_DB"),
		// DigitalOcean
		DO_INFERENCE_API_KEY: os.Getenv("DO_INFERENCE_API_KEY"),
		DO_EMBEDDING_MODEL:   os.Getenv("DO_EMBEDDING_MODEL"),
		DO_SPACES_KEY:        os.Getenv("DO_SPACES_KEY"),
		DO_SPACES_SECRET:     os.Getenv("DO_SPACES_SECRET"),
		DO_SPACES_BUCKET:     os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:     os.Getenv("DO_SPACES_REGION"),
		DO_SPACES_ENDPOINT:   os.Getenv("DO_SPACES_ENDPOINT"),
		DO_SPACES_CDN_URL:    os.Getenv("DO_SPACES_CDN_URL"),
		// Pipeline
		DEDUP_MODE:        dedupMode,
		CLASSIFIER_MODE:   classifierMode,
		PIPELINE_TIMEOUT:  pipelineTimeout,
		MAX_PAGE_PAYLOADS: maxPagePayloads,
	}

	return envVariables, nil
}
