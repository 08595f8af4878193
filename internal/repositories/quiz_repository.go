package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// QuizRepository interface for quiz settings access
type QuizRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error)
	GetByIDWithStructure(ctx context.Context, tx *gorm.DB, id uint) (*models.Quiz, error) // Include sections and slots
	Update(ctx context.Context, tx *gorm.DB, quiz *models.Quiz) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Grading
	UpdateSumGrades(ctx context.Context, tx *gorm.DB, quizID uint, sumGrades float64) error
}

// SlotRepository interface for quiz layout slots
type SlotRepository interface {
	Create(ctx context.Context, tx *gorm.DB, slot *models.QuizSlot) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSlot, error)
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.QuizSlot, error) // Ordered by slot number
	GetBySlotNumber(ctx context.Context, tx *gorm.DB, quizID uint, slotNumber int) (*models.QuizSlot, error)
	Update(ctx context.Context, tx *gorm.DB, slot *models.QuizSlot) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	Count(ctx context.Context, tx *gorm.DB, quizID uint) (int, error)

	// Layout maintenance. Renumber applies an old-to-new slot number
	// mapping atomically; UpdatePages is keyed by the (new) slot
	// number; ShiftDownAfter closes the gap left by a removed slot.
	Renumber(ctx context.Context, tx *gorm.DB, quizID uint, mapping map[int]int) error
	UpdatePages(ctx context.Context, tx *gorm.DB, quizID uint, pages map[int]int) error
	ShiftDownAfter(ctx context.Context, tx *gorm.DB, quizID uint, removedSlot int) error

	SetMaxMark(ctx context.Context, tx *gorm.DB, id uint, maxMark float64) error
}

// SectionRepository interface for quiz section headings
type SectionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, section *models.QuizSection) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSection, error)
	GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.QuizSection, error) // Ordered by first slot
	Update(ctx context.Context, tx *gorm.DB, section *models.QuizSection) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// ShiftFirstSlots adds delta to first_slot for sections with
	// afterSlot < first_slot < beforeSlot (both bounds exclusive).
	ShiftFirstSlots(ctx context.Context, tx *gorm.DB, quizID uint, afterSlot, beforeSlot, delta int) error
	// ShiftFirstSlotsGreaterThan adds delta where first_slot > slot.
	ShiftFirstSlotsGreaterThan(ctx context.Context, tx *gorm.DB, quizID uint, slot, delta int) error
}

// OverrideRepository interface for per-user setting overrides
type OverrideRepository interface {
	Create(ctx context.Context, tx *gorm.DB, override *models.UserOverride) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.UserOverride, error)
	GetByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (*models.UserOverride, error)
	List(ctx context.Context, tx *gorm.DB, quizID uint, filters OverrideFilters) ([]*models.UserOverride, int64, error)
	Update(ctx context.Context, tx *gorm.DB, override *models.UserOverride) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// GetExtraPasswords collects the distinct non-empty override
	// passwords for a quiz, excluding the given user's own override.
	GetExtraPasswords(ctx context.Context, tx *gorm.DB, quizID uint, excludeUserID string) ([]string, error)
}

// QuestionRepository interface for question catalogue reads
type QuestionRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
}
