package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course represents an academic course/subject (e.g., "CS301 Operating Systems")
type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	Code        string         `gorm:"uniqueIndex;not null" json:"code"` // e.g., "CS301"
	Description string         `gorm:"type:text" json:"description,omitempty"`

	// Relationships
	Units  []CourseUnit `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"units,omitempty"`
	Papers []Paper      `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// CourseUnit represents a syllabus unit of a course. The unit name plus
// its topic list forms the corpus questions are classified against.
type CourseUnit struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID   uint           `gorm:"not null;index" json:"course_id"`
	UnitNumber int            `gorm:"not null" json:"unit_number"` // 1, 2, 3...
	Name       string         `gorm:"not null" json:"name"`
	Topics     datatypes.JSON `gorm:"type:jsonb" json:"topics,omitempty"` // ordered list of topic strings

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// TopicList decodes the unit's topics JSON into a string slice
func (u *CourseUnit) TopicList() []string {
	if len(u.Topics) == 0 {
		return nil
	}
	var topics []string
	if err := json.Unmarshal(u.Topics, &topics); err != nil {
		return nil
	}
	return topics
}

// ============= Response Types =============

// CourseResponse is used for API responses
type CourseResponse struct {
	ID          uint                 `json:"id"`
	Name        string               `json:"name"`
	Code        string               `json:"code"`
	Description string               `json:"description,omitempty"`
	Units       []CourseUnitResponse `json:"units"`
	CreatedAt   time.Time            `json:"created_at"`
}

// CourseUnitResponse is used for API responses
type CourseUnitResponse struct {
	ID         uint     `json:"id"`
	UnitNumber int      `json:"unit_number"`
	Name       string   `json:"name"`
	Topics     []string `json:"topics"`
}

// ToResponse converts Course model to CourseResponse
func (c *Course) ToResponse() *CourseResponse {
	resp := &CourseResponse{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		Description: c.Description,
		Units:       make([]CourseUnitResponse, 0),
		CreatedAt:   c.CreatedAt,
	}
	for _, unit := range c.Units {
		resp.Units = append(resp.Units, CourseUnitResponse{
			ID:         unit.ID,
			UnitNumber: unit.UnitNumber,
			Name:       unit.Name,
			Topics:     unit.TopicList(),
		})
	}
	return resp
}
