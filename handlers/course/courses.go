package course

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

// CourseHandler handles course and syllabus unit requests
type CourseHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=255"`
	Code        string `json:"code" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"omitempty,max=1000"`
}

// UnitDefinition is one syllabus unit in a replace-units request
type UnitDefinition struct {
	UnitNumber int      `json:"unit_number" validate:"required,min=1,max=20"`
	Name       string   `json:"name" validate:"required,min=3,max=255"`
	Topics     []string `json:"topics" validate:"required,min=1,dive,min=2,max=255"`
}

// ReplaceUnitsRequest represents the request body for replacing a course's
// unit set
type ReplaceUnitsRequest struct {
	Units []UnitDefinition `json:"units" validate:"required,min=1,dive"`
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	search := c.Query("search", "")

	query := h.db.Model(&model.Course{})
	if search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	offset := (page - 1) * limit
	pagination := response.CalculatePagination(page, limit, total)

	var courses []model.Course
	if err := query.Preload("Units").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	responses := make([]*model.CourseResponse, 0, len(courses))
	for i := range courses {
		responses = append(responses, courses[i].ToResponse())
	}

	return response.Paginated(c, responses, pagination)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	var course model.Course
	if err := h.db.Preload("Units", func(db *gorm.DB) *gorm.DB {
		return db.Order("unit_number ASC")
	}).First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	return response.Success(c, course.ToResponse())
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Name = validation.SanitizeString(req.Name)
	req.Code = validation.SanitizeString(req.Code)
	req.Description = validation.SanitizeString(req.Description)

	var existingCourse model.Course
	if err := h.db.Where("code = ?", req.Code).First(&existingCourse).Error; err == nil {
		return response.Conflict(c, "Course with this code already exists")
	}

	course := model.Course{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
	}

	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, course.ToResponse())
}

// ReplaceUnits handles PUT /api/v1/courses/:id/units
// Replaces the course's entire syllabus unit set. Unit numbers must be
// unique within the request.
func (h *CourseHandler) ReplaceUnits(c *fiber.Ctx) error {
	id := c.Params("id")

	var req ReplaceUnitsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	seen := make(map[int]bool, len(req.Units))
	for _, u := range req.Units {
		if seen[u.UnitNumber] {
			return response.BadRequest(c, "Duplicate unit_number in request")
		}
		seen[u.UnitNumber] = true
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", course.ID).Delete(&model.CourseUnit{}).Error; err != nil {
			return err
		}
		for _, u := range req.Units {
			topics, err := json.Marshal(u.Topics)
			if err != nil {
				return err
			}
			unit := model.CourseUnit{
				CourseID:   course.ID,
				UnitNumber: u.UnitNumber,
				Name:       validation.SanitizeString(u.Name),
				Topics:     datatypes.JSON(topics),
			}
			if err := tx.Create(&unit).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to replace units")
	}

	h.db.Preload("Units", func(db *gorm.DB) *gorm.DB {
		return db.Order("unit_number ASC")
	}).First(&course, course.ID)

	return response.SuccessWithMessage(c, "Units replaced successfully", course.ToResponse())
}
