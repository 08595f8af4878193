package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// AttemptRepository interface for attempt persistence
type AttemptRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByIDWithQuiz(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, quizID uint, filters AttemptFilters) ([]*models.Attempt, int64, error)
	GetByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) ([]*models.Attempt, error) // Ordered by attempt number
	GetFinishedByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) ([]*models.Attempt, error)
	GetLatest(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (*models.Attempt, error)
	GetByUsageID(ctx context.Context, tx *gorm.DB, usageID string) (*models.Attempt, error)
	CountByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (int, error)
	HasRealAttempts(ctx context.Context, tx *gorm.DB, quizID uint) (bool, error)

	// Regrade batch selection: non-preview attempts, optionally
	// narrowed to users and/or attempt IDs.
	GetRealAttempts(ctx context.Context, tx *gorm.DB, quizID uint, userIDs []string, attemptIDs []uint) ([]*models.Attempt, error)

	// Preview attempts
	GetPreview(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (*models.Attempt, error)
	DeletePreviews(ctx context.Context, tx *gorm.DB, quizID uint, userID string) error

	// Expiry sweep: open attempts whose check time has passed.
	GetExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error)

	// Statistics
	GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*AttemptStats, error)
}

// UsageRepository interface for question usage grading state
type UsageRepository interface {
	Create(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage) error
	GetByUniqueID(ctx context.Context, tx *gorm.DB, uniqueID string) (*models.QuestionUsage, error) // Slots preloaded in order
	UpdateSlot(ctx context.Context, tx *gorm.DB, slot *models.UsageSlot) error
	DeleteByUniqueID(ctx context.Context, tx *gorm.DB, uniqueID string) error

	// SetMaxMarkForQuizSlot pushes a new max mark into every usage
	// slot at the given position across all attempts of the quiz.
	SetMaxMarkForQuizSlot(ctx context.Context, tx *gorm.DB, quizID uint, slotNumber int, maxMark float64) error
}

// RegradeRepository interface for regrade bookkeeping rows
type RegradeRepository interface {
	Create(ctx context.Context, tx *gorm.DB, record *models.RegradeRecord) error
	DeleteByUsageIDs(ctx context.Context, tx *gorm.DB, usageIDs []string) error
	ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.RegradeRecord, error)

	// NeedingRegrade returns dry-run rows (regraded = false) grouped
	// by usage ID; CountAttemptsNeedingRegrade counts the distinct
	// attempts they belong to.
	NeedingRegrade(ctx context.Context, tx *gorm.DB, quizID uint) (RegradeSlots, error)
	CountAttemptsNeedingRegrade(ctx context.Context, tx *gorm.DB, quizID uint) (int, error)
}
