package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReviewStatus represents the review lifecycle of a question
type ReviewStatus string

const (
	ReviewStatusPending     ReviewStatus = "pending"
	ReviewStatusApproved    ReviewStatus = "approved"
	ReviewStatusNeedsReview ReviewStatus = "needs_review"
)

// Bloom's taxonomy category labels, indexed by level 1-6
var BloomCategories = map[int]string{
	1: "Remembering",
	2: "Understanding",
	3: "Applying",
	4: "Analyzing",
	5: "Evaluating",
	6: "Creating",
}

// Question represents one atomic question or subpart extracted from a paper.
// A canonical question always has a nil ParentQuestionID; a variant always
// points at the canonical question it duplicates.
type Question struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PaperID  uint  `gorm:"not null;index" json:"paper_id"`
	CourseID uint  `gorm:"not null;index" json:"course_id"`
	UnitID   *uint `gorm:"index" json:"unit_id,omitempty"`

	Number  string `gorm:"type:varchar(20);not null" json:"number"` // e.g., "1", "2a", "3(ii)"
	Ordinal int    `gorm:"not null" json:"ordinal"`                 // extraction order, authoritative
	Text    string `gorm:"type:text;not null" json:"text"`

	Marks         *int    `json:"marks,omitempty"`
	BloomLevel    *int    `json:"bloom_level,omitempty"` // 1-6
	BloomCategory string  `gorm:"type:varchar(30)" json:"bloom_category,omitempty"`
	Difficulty    string  `gorm:"type:varchar(10)" json:"difficulty,omitempty"` // easy, medium, hard
	Confidence    float64 `gorm:"default:0" json:"confidence"`                  // 0.0-1.0

	IsCanonical      bool     `gorm:"default:true" json:"is_canonical"`
	ParentQuestionID *uint    `gorm:"index" json:"parent_question_id,omitempty"`
	SimilarityScore  *float64 `json:"similarity_score,omitempty"`

	HasSubparts bool `gorm:"default:false" json:"has_subparts"`
	HasDiagram  bool `gorm:"default:false" json:"has_diagram"`
	PageNumber  *int `json:"page_number,omitempty"`

	TopicTags datatypes.JSON `gorm:"type:jsonb" json:"topic_tags,omitempty"`

	Reviewed     bool         `gorm:"default:false" json:"reviewed"`
	ReviewStatus ReviewStatus `gorm:"type:varchar(20);default:'pending'" json:"review_status"`

	// Relationships
	Paper  Paper       `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"-"`
	Unit   *CourseUnit `gorm:"foreignKey:UnitID;constraint:OnDelete:SET NULL" json:"unit,omitempty"`
	Parent *Question   `gorm:"foreignKey:ParentQuestionID" json:"-"`
}

// ============= Response Types =============

// QuestionResponse is used for API responses
type QuestionResponse struct {
	ID               uint           `json:"id"`
	PaperID          uint           `json:"paper_id"`
	CourseID         uint           `json:"course_id"`
	UnitID           *uint          `json:"unit_id,omitempty"`
	Number           string         `json:"number"`
	Ordinal          int            `json:"ordinal"`
	Text             string         `json:"text"`
	Marks            *int           `json:"marks,omitempty"`
	BloomLevel       *int           `json:"bloom_level,omitempty"`
	BloomCategory    string         `json:"bloom_category,omitempty"`
	Difficulty       string         `json:"difficulty,omitempty"`
	Confidence       float64        `json:"confidence"`
	IsCanonical      bool           `json:"is_canonical"`
	ParentQuestionID *uint          `json:"parent_question_id,omitempty"`
	SimilarityScore  *float64       `json:"similarity_score,omitempty"`
	HasSubparts      bool           `json:"has_subparts"`
	HasDiagram       bool           `json:"has_diagram"`
	PageNumber       *int           `json:"page_number,omitempty"`
	TopicTags        datatypes.JSON `json:"topic_tags,omitempty"`
	Reviewed         bool           `json:"reviewed"`
	ReviewStatus     ReviewStatus   `json:"review_status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ToResponse converts Question model to QuestionResponse
func (q *Question) ToResponse() *QuestionResponse {
	return &QuestionResponse{
		ID:               q.ID,
		PaperID:          q.PaperID,
		CourseID:         q.CourseID,
		UnitID:           q.UnitID,
		Number:           q.Number,
		Ordinal:          q.Ordinal,
		Text:             q.Text,
		Marks:            q.Marks,
		BloomLevel:       q.BloomLevel,
		BloomCategory:    q.BloomCategory,
		Difficulty:       q.Difficulty,
		Confidence:       q.Confidence,
		IsCanonical:      q.IsCanonical,
		ParentQuestionID: q.ParentQuestionID,
		SimilarityScore:  q.SimilarityScore,
		HasSubparts:      q.HasSubparts,
		HasDiagram:       q.HasDiagram,
		PageNumber:       q.PageNumber,
		TopicTags:        q.TopicTags,
		Reviewed:         q.Reviewed,
		ReviewStatus:     q.ReviewStatus,
		CreatedAt:        q.CreatedAt,
	}
}
