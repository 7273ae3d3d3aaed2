package review

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
	"github.com/sahilchouksey/qbank-pipeline/utils/response"
	"github.com/sahilchouksey/qbank-pipeline/utils/validation"
)

// ReviewHandler handles review queue requests
type ReviewHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CorrectEntryRequest carries reviewer-supplied corrections. Absent fields
// leave the question's current values untouched.
type CorrectEntryRequest struct {
	UnitID        *uint    `json:"unit_id" validate:"omitempty,min=1"`
	BloomLevel    *int     `json:"bloom_level" validate:"omitempty,min=1,max=6"`
	BloomCategory string   `json:"bloom_category" validate:"omitempty,max=50"`
	Marks         *int     `json:"marks" validate:"omitempty,min=1,max=100"`
	TopicTags     []string `json:"topic_tags" validate:"omitempty,dive,max=255"`
}

// ListQueue handles GET /api/v1/review-queue
// Entries are ordered by priority (1 first), then age.
func (h *ReviewHandler) ListQueue(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.db.Model(&model.ReviewQueueEntry{})

	if status := c.Query("status", "pending"); status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if issueType := c.Query("issue_type", ""); issueType != "" {
		query = query.Where("issue_type = ?", issueType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count review entries")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var entries []model.ReviewQueueEntry
	if err := query.Preload("Question").
		Order("priority ASC, created_at ASC").
		Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch review entries")
	}

	responses := make([]*model.ReviewQueueEntryResponse, 0, len(entries))
	for i := range entries {
		responses = append(responses, entries[i].ToResponse())
	}

	return response.Paginated(c, responses, pagination)
}

// ApproveEntry handles POST /api/v1/review-queue/:id/approve
// Accepts the pipeline's suggestion as-is and marks the question reviewed.
func (h *ReviewHandler) ApproveEntry(c *fiber.Ctx) error {
	entryID := c.Params("id")

	var entry model.ReviewQueueEntry
	if err := h.db.First(&entry, entryID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Review entry not found")
		}
		return response.InternalServerError(c, "Failed to fetch review entry")
	}

	if entry.Status != model.ReviewEntryPending {
		return response.Conflict(c, "Review entry is already resolved")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entry).Update("status", model.ReviewEntryApproved).Error; err != nil {
			return err
		}
		questionUpdates := map[string]interface{}{
			"reviewed":      true,
			"review_status": model.ReviewStatusApproved,
		}
		if err := tx.Model(&model.Question{}).Where("id = ?", entry.QuestionID).
			Updates(questionUpdates).Error; err != nil {
			return err
		}
		return h.decrementReviewPending(tx, entry.QuestionID)
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to approve review entry")
	}

	return response.SuccessWithMessage(c, "Review entry approved", nil)
}

// CorrectEntry handles POST /api/v1/review-queue/:id/correct
// Applies reviewer corrections to the question and resolves the entry.
func (h *ReviewHandler) CorrectEntry(c *fiber.Ctx) error {
	entryID := c.Params("id")

	var req CorrectEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var entry model.ReviewQueueEntry
	if err := h.db.First(&entry, entryID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Review entry not found")
		}
		return response.InternalServerError(c, "Failed to fetch review entry")
	}

	if entry.Status != model.ReviewEntryPending {
		return response.Conflict(c, "Review entry is already resolved")
	}

	var question model.Question
	if err := h.db.First(&question, entry.QuestionID).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch question")
	}

	if req.UnitID != nil {
		var unit model.CourseUnit
		if err := h.db.Where("id = ? AND course_id = ?", *req.UnitID, question.CourseID).
			First(&unit).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return response.BadRequest(c, "Unit does not belong to the question's course")
			}
			return response.InternalServerError(c, "Failed to verify unit")
		}
	}

	questionUpdates := map[string]interface{}{
		"reviewed":      true,
		"review_status": model.ReviewStatusApproved,
	}
	if req.UnitID != nil {
		questionUpdates["unit_id"] = *req.UnitID
	}
	if req.BloomLevel != nil {
		questionUpdates["bloom_level"] = *req.BloomLevel
		category := req.BloomCategory
		if category == "" {
			category = model.BloomCategories[*req.BloomLevel]
		}
		questionUpdates["bloom_category"] = category
	}
	if req.Marks != nil {
		questionUpdates["marks"] = *req.Marks
	}
	if len(req.TopicTags) > 0 {
		data, err := json.Marshal(req.TopicTags)
		if err != nil {
			return response.BadRequest(c, "Invalid topic tags")
		}
		questionUpdates["topic_tags"] = datatypes.JSON(data)
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entry).Update("status", model.ReviewEntryCorrected).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Question{}).Where("id = ?", entry.QuestionID).
			Updates(questionUpdates).Error; err != nil {
			return err
		}
		return h.decrementReviewPending(tx, entry.QuestionID)
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to apply correction")
	}

	return response.SuccessWithMessage(c, "Correction applied", nil)
}

// decrementReviewPending keeps the paper's pending counter in step with
// entry resolution
func (h *ReviewHandler) decrementReviewPending(tx *gorm.DB, questionID uint) error {
	var question model.Question
	if err := tx.Select("paper_id").First(&question, questionID).Error; err != nil {
		return err
	}
	return tx.Model(&model.Paper{}).
		Where("id = ? AND review_pending_count > 0", question.PaperID).
		Update("review_pending_count", gorm.Expr("review_pending_count - 1")).Error
}
