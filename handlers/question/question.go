package question

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/qbank-pipeline/model"
	"github.com/sahilchouksey/qbank-pipeline/utils/response"
)

// QuestionHandler handles question listing requests
type QuestionHandler struct {
	db *gorm.DB
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(db *gorm.DB) *QuestionHandler {
	return &QuestionHandler{db: db}
}

// ListQuestions handles GET /api/v1/questions
// Filters: paper_id, course_id, unit_id, canonical, difficulty, bloom_level.
func (h *QuestionHandler) ListQuestions(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.db.Model(&model.Question{})

	if paperID := c.Query("paper_id", ""); paperID != "" {
		query = query.Where("paper_id = ?", paperID)
	}
	if courseID := c.Query("course_id", ""); courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}
	if unitID := c.Query("unit_id", ""); unitID != "" {
		query = query.Where("unit_id = ?", unitID)
	}
	if canonical := c.Query("canonical", ""); canonical != "" {
		query = query.Where("is_canonical = ?", canonical == "true")
	}
	if difficulty := c.Query("difficulty", ""); difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}
	if bloomLevel := c.Query("bloom_level", ""); bloomLevel != "" {
		query = query.Where("bloom_level = ?", bloomLevel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count questions")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var questions []model.Question
	if err := query.Order("paper_id ASC, ordinal ASC").
		Limit(limit).Offset(offset).Find(&questions).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch questions")
	}

	responses := make([]*model.QuestionResponse, 0, len(questions))
	for i := range questions {
		responses = append(responses, questions[i].ToResponse())
	}

	return response.Paginated(c, responses, pagination)
}

// GetQuestion handles GET /api/v1/questions/:id
func (h *QuestionHandler) GetQuestion(c *fiber.Ctx) error {
	id := c.Params("id")

	var question model.Question
	if err := h.db.First(&question, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Question not found")
		}
		return response.InternalServerError(c, "Failed to fetch question")
	}

	return response.Success(c, question.ToResponse())
}

// ListVariants handles GET /api/v1/questions/:id/variants
// Returns the non-canonical questions linked to a canonical parent.
func (h *QuestionHandler) ListVariants(c *fiber.Ctx) error {
	id := c.Params("id")

	var question model.Question
	if err := h.db.First(&question, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Question not found")
		}
		return response.InternalServerError(c, "Failed to fetch question")
	}

	if !question.IsCanonical {
		return response.BadRequest(c, "Question is not canonical")
	}

	var variants []model.Question
	if err := h.db.Where("parent_question_id = ?", question.ID).
		Order("id ASC").Find(&variants).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch variants")
	}

	responses := make([]*model.QuestionResponse, 0, len(variants))
	for i := range variants {
		responses = append(responses, variants[i].ToResponse())
	}

	return response.Success(c, responses)
}
