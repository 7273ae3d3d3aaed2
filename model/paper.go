package model

import (
	"time"

	"gorm.io/gorm"
)

// PaperStatus represents the processing state of an uploaded paper
type PaperStatus string

const (
	PaperStatusUploaded        PaperStatus = "uploaded"
	PaperStatusMetadataPending PaperStatus = "metadata_pending"
	PaperStatusProcessing      PaperStatus = "processing"
	PaperStatusCompleted       PaperStatus = "completed"
	PaperStatusFailed          PaperStatus = "failed"
)

// ExamType values recognized on paper metadata
const (
	ExamTypeCIE1        = "CIE 1"
	ExamTypeCIE2        = "CIE 2"
	ExamTypeImprovement = "Improvement CIE"
	ExamTypeSEE         = "SEE"
)

// SemesterType values recognized on paper metadata
const (
	SemesterOdd  = "ODD"
	SemesterEven = "EVEN"
)

// Paper represents one uploaded question paper document
type Paper struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	CourseID     uint       `gorm:"index" json:"course_id"`
	AcademicYear string     `gorm:"type:varchar(20)" json:"academic_year"` // e.g., "2024-25"
	Semester     string     `gorm:"type:varchar(10)" json:"semester"`      // ODD or EVEN
	ExamType     string     `gorm:"type:varchar(30)" json:"exam_type"`     // CIE 1, CIE 2, Improvement CIE, SEE
	ExamDate     *time.Time `json:"exam_date,omitempty"`

	OriginalFilename string `gorm:"type:varchar(255)" json:"original_filename"`
	FileType         string `gorm:"type:varchar(10)" json:"file_type"` // pdf or docx
	StoragePath      string `gorm:"type:varchar(512)" json:"storage_path"`
	FileSizeBytes    int64  `gorm:"default:0" json:"file_size_bytes"`
	PageCount        int    `gorm:"default:0" json:"page_count"`

	Status                   PaperStatus `gorm:"type:varchar(20);default:'uploaded';index" json:"status"`
	Progress                 int         `gorm:"default:0" json:"progress"` // 0-100
	TotalQuestionsExtracted  int         `gorm:"default:0" json:"total_questions_extracted"`
	ReviewPendingCount       int         `gorm:"default:0" json:"review_pending_count"`
	ErrorMessage             string      `gorm:"type:text" json:"error_message,omitempty"`

	// Relationships
	Course    Course     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Questions []Question `gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// ============= Response Types =============

// PaperResponse is used for API responses
type PaperResponse struct {
	ID                      uint        `json:"id"`
	CourseID                uint        `json:"course_id"`
	AcademicYear            string      `json:"academic_year"`
	Semester                string      `json:"semester"`
	ExamType                string      `json:"exam_type"`
	ExamDate                *time.Time  `json:"exam_date,omitempty"`
	OriginalFilename        string      `json:"original_filename"`
	FileType                string      `json:"file_type"`
	FileSizeBytes           int64       `json:"file_size_bytes"`
	PageCount               int         `json:"page_count"`
	Status                  PaperStatus `json:"status"`
	Progress                int         `json:"progress"`
	TotalQuestionsExtracted int         `json:"total_questions_extracted"`
	ReviewPendingCount      int         `json:"review_pending_count"`
	ErrorMessage            string      `json:"error_message,omitempty"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

// ToResponse converts Paper model to PaperResponse
func (p *Paper) ToResponse() *PaperResponse {
	return &PaperResponse{
		ID:                      p.ID,
		CourseID:                p.CourseID,
		AcademicYear:            p.AcademicYear,
		Semester:                p.Semester,
		ExamType:                p.ExamType,
		ExamDate:                p.ExamDate,
		OriginalFilename:        p.OriginalFilename,
		FileType:                p.FileType,
		FileSizeBytes:           p.FileSizeBytes,
		PageCount:               p.PageCount,
		Status:                  p.Status,
		Progress:                p.Progress,
		TotalQuestionsExtracted: p.TotalQuestionsExtracted,
		ReviewPendingCount:      p.ReviewPendingCount,
		ErrorMessage:            p.ErrorMessage,
		CreatedAt:               p.CreatedAt,
		UpdatedAt:               p.UpdatedAt,
	}
}

// PaperSummary is a lightweight version for listing
type PaperSummary struct {
	ID                      uint        `json:"id"`
	CourseID                uint        `json:"course_id"`
	AcademicYear            string      `json:"academic_year"`
	ExamType                string      `json:"exam_type"`
	Status                  PaperStatus `json:"status"`
	Progress                int         `json:"progress"`
	TotalQuestionsExtracted int         `json:"total_questions_extracted"`
	CreatedAt               time.Time   `json:"created_at"`
}

// ToSummary converts Paper to PaperSummary
func (p *Paper) ToSummary() PaperSummary {
	return PaperSummary{
		ID:                      p.ID,
		CourseID:                p.CourseID,
		AcademicYear:            p.AcademicYear,
		ExamType:                p.ExamType,
		Status:                  p.Status,
		Progress:                p.Progress,
		TotalQuestionsExtracted: p.TotalQuestionsExtracted,
		CreatedAt:               p.CreatedAt,
	}
}
