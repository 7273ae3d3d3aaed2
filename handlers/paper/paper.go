package paper

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
	"github.com/sahilchouksey/qbank-pipeline/services"
	"github.com/sahilchouksey/qbank-pipeline/services/digitalocean"
	"github.com/sahilchouksey/qbank-pipeline/utils/pdfvalidation"
	"github.com/sahilchouksey/qbank-pipeline/utils/response"
	"github.com/sahilchouksey/qbank-pipeline/utils/validation"
)

// maxUploadBytes caps paper uploads at 50 MB
const maxUploadBytes = 50 * 1024 * 1024

// PaperHandler handles paper upload and processing requests
type PaperHandler struct {
	db        *gorm.DB
	spaces    *digitalocean.SpacesClient
	pipeline  *services.PipelineOrchestrator
	validator *validation.Validator
}

// NewPaperHandler creates a new paper handler
func NewPaperHandler(db *gorm.DB, spaces *digitalocean.SpacesClient, pipeline *services.PipelineOrchestrator) *PaperHandler {
	return &PaperHandler{
		db:        db,
		spaces:    spaces,
		pipeline:  pipeline,
		validator: validation.NewValidator(),
	}
}

// SubmitMetadataRequest represents the request body for attaching metadata
type SubmitMetadataRequest struct {
	CourseID     uint   `json:"course_id" validate:"required,min=1"`
	AcademicYear string `json:"academic_year" validate:"required,min=4,max=20"`
	Semester     string `json:"semester" validate:"required,oneof=ODD EVEN"`
	ExamType     string `json:"exam_type" validate:"required,oneof='CIE 1' 'CIE 2' 'Improvement CIE' 'SEE'"`
	ExamDate     string `json:"exam_date" validate:"omitempty,len=10"` // YYYY-MM-DD
}

// UploadPaper handles POST /api/v1/papers/upload
func (h *PaperHandler) UploadPaper(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "Missing file upload")
	}

	if fileHeader.Size > maxUploadBytes {
		return response.BadRequest(c, "File exceeds 50 MB limit")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	var fileType string
	switch ext {
	case ".pdf":
		fileType = "pdf"
	case ".docx":
		fileType = "docx"
	default:
		return response.BadRequest(c, "Only PDF and DOCX files are supported")
	}

	pageCount := 0
	if fileType == "pdf" {
		result, err := pdfvalidation.ValidatePDFFile(fileHeader, pdfvalidation.PaperLimits)
		if err != nil {
			return response.InternalServerError(c, "Failed to inspect upload")
		}
		if !result.Valid {
			return response.BadRequest(c, result.Error)
		}
		pageCount = result.PageCount
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read upload")
	}
	defer file.Close()

	paper := model.Paper{
		OriginalFilename: fileHeader.Filename,
		FileType:         fileType,
		FileSizeBytes:    fileHeader.Size,
		PageCount:        pageCount,
		Status:           model.PaperStatusUploaded,
	}
	if err := h.db.Create(&paper).Error; err != nil {
		return response.InternalServerError(c, "Failed to create paper record")
	}

	key := digitalocean.GenerateKey("papers", fileHeader.Filename)
	if _, err := h.spaces.UploadFile(c.Context(), key, file, digitalocean.GetContentType(fileHeader.Filename)); err != nil {
		h.db.Delete(&paper)
		return response.InternalServerError(c, "Failed to store file")
	}

	updates := map[string]interface{}{
		"storage_path": key,
		"status":       model.PaperStatusMetadataPending,
	}
	if err := h.db.Model(&paper).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update paper record")
	}
	paper.StoragePath = key
	paper.Status = model.PaperStatusMetadataPending

	return response.Created(c, paper.ToResponse())
}

// SubmitMetadata handles POST /api/v1/papers/:id/metadata
// Attaching metadata triggers pipeline processing.
func (h *PaperHandler) SubmitMetadata(c *fiber.Ctx) error {
	paperID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	var req SubmitMetadataRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var paper model.Paper
	if err := h.db.First(&paper, paperID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Paper not found")
		}
		return response.InternalServerError(c, "Failed to fetch paper")
	}

	if paper.Status != model.PaperStatusMetadataPending && paper.Status != model.PaperStatusFailed {
		return response.Conflict(c, "Paper metadata can no longer be changed")
	}

	var course model.Course
	if err := h.db.First(&course, req.CourseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to verify course")
	}

	var examDate *time.Time
	if req.ExamDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExamDate)
		if err != nil {
			return response.BadRequest(c, "Invalid exam_date, expected YYYY-MM-DD")
		}
		examDate = &parsed
	}

	// Intake uniqueness: one paper per course + exam type + exam date
	if examDate != nil {
		var existing model.Paper
		err := h.db.Where("course_id = ? AND exam_type = ? AND exam_date = ? AND id != ?",
			req.CourseID, req.ExamType, examDate, paper.ID).First(&existing).Error
		if err == nil {
			return response.Conflict(c, "A paper for this course, exam type, and date already exists")
		}
	}

	updates := map[string]interface{}{
		"course_id":     req.CourseID,
		"academic_year": validation.SanitizeString(req.AcademicYear),
		"semester":      req.Semester,
		"exam_type":     req.ExamType,
		"exam_date":     examDate,
	}
	if err := h.db.Model(&paper).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to save metadata")
	}

	if err := h.pipeline.Start(paper.ID); err != nil {
		return response.InternalServerError(c, "Failed to start processing: "+err.Error())
	}

	return response.SuccessWithMessage(c, "Processing started", fiber.Map{
		"paper_id": paper.ID,
		"status":   model.PaperStatusProcessing,
	})
}

// ReprocessPaper handles POST /api/v1/papers/:id/reprocess
// Re-runs the pipeline for a failed paper. Idempotent.
func (h *PaperHandler) ReprocessPaper(c *fiber.Ctx) error {
	paperID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	var paper model.Paper
	if err := h.db.First(&paper, paperID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Paper not found")
		}
		return response.InternalServerError(c, "Failed to fetch paper")
	}

	if paper.Status != model.PaperStatusFailed {
		return response.Conflict(c, "Only failed papers can be reprocessed")
	}

	if err := h.pipeline.Start(paper.ID); err != nil {
		return response.InternalServerError(c, "Failed to start processing: "+err.Error())
	}

	return response.SuccessWithMessage(c, "Reprocessing started", fiber.Map{
		"paper_id": paper.ID,
		"status":   model.PaperStatusProcessing,
	})
}

// GetStatus handles GET /api/v1/papers/:id/status
func (h *PaperHandler) GetStatus(c *fiber.Ctx) error {
	paperID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid paper ID")
	}

	status, err := h.pipeline.Status(uint(paperID))
	if err != nil {
		return response.NotFound(c, "Paper not found")
	}

	return response.Success(c, status)
}

// GetPaper handles GET /api/v1/papers/:id
func (h *PaperHandler) GetPaper(c *fiber.Ctx) error {
	paperID := c.Params("id")

	var paper model.Paper
	if err := h.db.First(&paper, paperID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Paper not found")
		}
		return response.InternalServerError(c, "Failed to fetch paper")
	}

	return response.Success(c, paper.ToResponse())
}

// ListPapers handles GET /api/v1/papers
func (h *PaperHandler) ListPapers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	courseID := c.Query("course_id", "")
	status := c.Query("status", "")

	query := h.db.Model(&model.Paper{})
	if courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count papers")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var papers []model.Paper
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&papers).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch papers")
	}

	summaries := make([]model.PaperSummary, 0, len(papers))
	for i := range papers {
		summaries = append(summaries, papers[i].ToSummary())
	}

	return response.Paginated(c, summaries, pagination)
}

// GetDownloadURL handles GET /api/v1/papers/:id/download
// Returns a short-lived presigned URL for the original document.
func (h *PaperHandler) GetDownloadURL(c *fiber.Ctx) error {
	paperID := c.Params("id")

	var paper model.Paper
	if err := h.db.First(&paper, paperID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Paper not found")
		}
		return response.InternalServerError(c, "Failed to fetch paper")
	}

	if paper.StoragePath == "" {
		return response.NotFound(c, "Paper has no stored file")
	}

	url, err := h.spaces.GetPresignedURL(paper.StoragePath, 15*time.Minute)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate download URL")
	}

	return response.Success(c, fiber.Map{"url": url, "expires_in": 900})
}
