package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/sahilchouksey/qbank-pipeline/model"
)

// reviewConfidenceFloor is the classification confidence below which a
// question is flagged low-confidence
const reviewConfidenceFloor = 0.7

// ReviewRouter turns classification outcomes into review queue entries.
// Every newly extracted question is queued at least for baseline sign-off;
// the issue type and priority encode how urgently a human should look.
type ReviewRouter struct{}

// NewReviewRouter creates a new review router
func NewReviewRouter() *ReviewRouter {
	return &ReviewRouter{}
}

// Route builds the review entry for one classified question. The returned
// entry has QuestionID unset; the caller fills it after the question row is
// inserted. Routing never blocks persistence.
func (r *ReviewRouter) Route(question *model.Question, match UnitMatch) (*model.ReviewQueueEntry, error) {
	var issueType model.ReviewIssueType
	var priority int

	switch {
	case question.UnitID == nil:
		issueType = model.IssueAmbiguousUnit
		priority = 1
	case question.Confidence < reviewConfidenceFloor:
		issueType = model.IssueLowConfidence
		priority = 2
	default:
		issueType = model.IssueNeedsReview
		priority = 3
	}

	correction := model.SuggestedCorrection{
		UnitID:        match.UnitID,
		UnitName:      match.UnitName,
		BloomLevel:    question.BloomLevel,
		BloomCategory: question.BloomCategory,
		Marks:         question.Marks,
		TopicTags:     match.TopicTags,
	}
	payload, err := json.Marshal(correction)
	if err != nil {
		return nil, fmt.Errorf("failed to encode suggested correction: %w", err)
	}

	return &model.ReviewQueueEntry{
		IssueType:           issueType,
		Priority:            priority,
		Status:              model.ReviewEntryPending,
		SuggestedCorrection: datatypes.JSON(payload),
	}, nil
}
