package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReviewIssueType tags why a question entered the review queue
type ReviewIssueType string

const (
	IssueAmbiguousUnit ReviewIssueType = "ambiguous_unit"
	IssueLowConfidence ReviewIssueType = "low_confidence"
	IssueNeedsReview   ReviewIssueType = "needs_review"
)

// ReviewEntryStatus represents the lifecycle of a review queue entry
type ReviewEntryStatus string

const (
	ReviewEntryPending   ReviewEntryStatus = "pending"
	ReviewEntryApproved  ReviewEntryStatus = "approved"
	ReviewEntryCorrected ReviewEntryStatus = "corrected"
)

// SuggestedCorrection carries the pipeline's own best-guess values so a
// reviewer can accept-as-is with one action. Absent fields stay nil.
type SuggestedCorrection struct {
	UnitID        *uint    `json:"unit_id,omitempty"`
	UnitName      string   `json:"unit_name,omitempty"`
	BloomLevel    *int     `json:"bloom_level,omitempty"`
	BloomCategory string   `json:"bloom_category,omitempty"`
	Marks         *int     `json:"marks,omitempty"`
	TopicTags     []string `json:"topic_tags,omitempty"`
}

// ReviewQueueEntry represents one actionable item for a human reviewer
type ReviewQueueEntry struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	QuestionID          uint              `gorm:"not null;index" json:"question_id"`
	IssueType           ReviewIssueType   `gorm:"type:varchar(30);not null" json:"issue_type"`
	SuggestedCorrection datatypes.JSON    `gorm:"type:jsonb" json:"suggested_correction,omitempty"`
	Priority            int               `gorm:"default:3" json:"priority"` // 1 highest
	Status              ReviewEntryStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	// Relationships
	Question Question `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"question,omitempty"`
}

// ============= Response Types =============

// ReviewQueueEntryResponse is used for API responses
type ReviewQueueEntryResponse struct {
	ID                  uint              `json:"id"`
	QuestionID          uint              `json:"question_id"`
	IssueType           ReviewIssueType   `json:"issue_type"`
	SuggestedCorrection datatypes.JSON    `json:"suggested_correction,omitempty"`
	Priority            int               `json:"priority"`
	Status              ReviewEntryStatus `json:"status"`
	Question            *QuestionResponse `json:"question,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// ToResponse converts ReviewQueueEntry to ReviewQueueEntryResponse
func (r *ReviewQueueEntry) ToResponse() *ReviewQueueEntryResponse {
	resp := &ReviewQueueEntryResponse{
		ID:                  r.ID,
		QuestionID:          r.QuestionID,
		IssueType:           r.IssueType,
		SuggestedCorrection: r.SuggestedCorrection,
		Priority:            r.Priority,
		Status:              r.Status,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.Question.ID != 0 {
		resp.Question = r.Question.ToResponse()
	}
	return resp
}
