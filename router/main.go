package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/config"
	"github.com/sahilchouksey/qbank-pipeline/database"
	"github.com/sahilchouksey/qbank-pipeline/handlers"
	course_handlers "github.com/sahilchouksey/qbank-pipeline/handlers/course"
	paper_handlers "github.com/sahilchouksey/qbank-pipeline/handlers/paper"
	question_handlers "github.com/sahilchouksey/qbank-pipeline/handlers/question"
	review_handlers "github.com/sahilchouksey/qbank-pipeline/handlers/review"
	"github.com/sahilchouksey/qbank-pipeline/services"
	"github.com/sahilchouksey/qbank-pipeline/services/digitalocean"
	"github.com/sahilchouksey/qbank-pipeline/utils/cache"
)

// SetupRoutes wires the pipeline services and registers all API routes
func SetupRoutes(app *fiber.App, store database.Storage, redisCache *cache.RedisCache) {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load environment configuration")
	}

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Object storage for uploaded papers
	spacesClient, err := digitalocean.NewSpacesClient(digitalocean.SpacesConfig{
		AccessKey: getEnv.DO_SPACES_KEY,
		SecretKey: getEnv.DO_SPACES_SECRET,
		Bucket:    getEnv.DO_SPACES_BUCKET,
		Region:    getEnv.DO_SPACES_REGION,
		Endpoint:  getEnv.DO_SPACES_ENDPOINT,
		CDNURL:    getEnv.DO_SPACES_CDN_URL,
	})
	if err != nil {
		log.Fatalf("Failed to create Spaces client: %v", err)
	}

	// Inference client serves both extraction and embedding calls
	inferenceClient := digitalocean.NewInferenceClient(digitalocean.InferenceConfig{
		APIKey: getEnv.DO_INFERENCE_API_KEY,
	})

	embeddingModel := getEnv.DO_EMBEDDING_MODEL
	if embeddingModel == "" {
		embeddingModel = digitalocean.DefaultEmbeddingModel
	}

	// Pipeline stages
	converter := services.NewDocumentConverter(getEnv.MAX_PAGE_PAYLOADS)
	extractor := services.NewQuestionExtractor(inferenceClient)

	var classifier services.Classifier = services.NewUnitClassifier()
	if getEnv.CLASSIFIER_MODE == "llm" {
		classifier = services.NewLLMUnitClassifier(inferenceClient)
	}
	resolver := services.NewDuplicateResolver(db, inferenceClient, redisCache, getEnv.DEDUP_MODE, embeddingModel)
	reviewRouter := services.NewReviewRouter()
	tracker := services.NewProgressTracker(redisCache)

	pipeline := services.NewPipelineOrchestrator(
		db, spacesClient, converter, extractor, classifier,
		resolver, reviewRouter, tracker,
		time.Duration(getEnv.PIPELINE_TIMEOUT)*time.Minute,
	)

	// Handlers
	paperHandler := paper_handlers.NewPaperHandler(db, spacesClient, pipeline)
	questionHandler := question_handlers.NewQuestionHandler(db)
	reviewHandler := review_handlers.NewReviewHandler(db)
	courseHandler := course_handlers.NewCourseHandler(db)

	// CORS
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, store)
	})

	v1 := app.Group("/api/v1")

	// Papers
	papers := v1.Group("/papers")
	papers.Post("/upload", paperHandler.UploadPaper)
	papers.Get("/", paperHandler.ListPapers)
	papers.Get("/:id", paperHandler.GetPaper)
	papers.Post("/:id/metadata", paperHandler.SubmitMetadata)
	papers.Post("/:id/reprocess", paperHandler.ReprocessPaper)
	papers.Get("/:id/status", paperHandler.GetStatus)
	papers.Get("/:id/download", paperHandler.GetDownloadURL)

	// Questions
	questions := v1.Group("/questions")
	questions.Get("/", questionHandler.ListQuestions)
	questions.Get("/:id", questionHandler.GetQuestion)
	questions.Get("/:id/variants", questionHandler.ListVariants)

	// Review queue
	reviewQueue := v1.Group("/review-queue")
	reviewQueue.Get("/", reviewHandler.ListQueue)
	reviewQueue.Post("/:id/approve", reviewHandler.ApproveEntry)
	reviewQueue.Post("/:id/correct", reviewHandler.CorrectEntry)

	// Courses and syllabus units
	courses := v1.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Post("/", courseHandler.CreateCourse)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Put("/:id/units", courseHandler.ReplaceUnits)
}
