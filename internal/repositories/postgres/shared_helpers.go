package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// CountAttempts counts non-preview attempts for a quiz
func (h *SharedHelpers) CountAttempts(ctx context.Context, quizID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND preview = false", quizID).
		Count(&count).Error
	return count, err
}

// CountAttemptsByUser counts a user's non-preview attempts for a quiz
func (h *SharedHelpers) CountAttemptsByUser(ctx context.Context, quizID uint, userID string) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND user_id = ? AND preview = false", quizID, userID).
		Count(&count).Error
	return count, err
}

// CountAttemptsByState counts attempts in one state
func (h *SharedHelpers) CountAttemptsByState(ctx context.Context, quizID uint, state models.AttemptState) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND state = ?", quizID, state).
		Count(&count).Error
	return count, err
}

// GetQuizBasicInfo gets the settings columns the access layer needs
// without the structure preloads
func (h *SharedHelpers) GetQuizBasicInfo(ctx context.Context, quizID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := h.db.WithContext(ctx).
		Select("id, time_open, time_close, time_limit, overdue_handling, grace_period, max_attempts, grading_method, max_grade, sum_grades").
		First(&quiz, quizID).Error
	return &quiz, err
}
