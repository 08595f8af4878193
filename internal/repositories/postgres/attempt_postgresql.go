package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/cache"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return err
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID, attempt.QuizID, attempt.UserID)
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)

	// Open attempts are read on every page view; cache them briefly.
	// Skip the cache inside transactions to avoid stale reads.
	if tx != nil {
		var attempt models.Attempt
		if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
			return nil, err
		}
		return &attempt, nil
	}

	cacheKey := fmt.Sprintf("id:%d", id)
	var attempt models.Attempt
	err := a.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &attempt, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAttempt models.Attempt
		if err := db.WithContext(ctx).First(&dbAttempt, id).Error; err != nil {
			return nil, err
		}
		return &dbAttempt, nil
	})

	return &attempt, err
}

func (a *AttemptPostgreSQL) GetByIDWithQuiz(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Preload("Quiz").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return err
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID, attempt.QuizID, attempt.UserID)
	return nil
}

func (a *AttemptPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Delete(&models.Attempt{}, id).Error
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("quiz_id = ?", quizID)
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.applyPaginationAndSort(query, filters)
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("attempt_number ASC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempts by quiz and user: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetFinishedByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ? AND state = ? AND preview = false",
			quizID, userID, models.AttemptFinished).
		Order("attempt_number ASC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get finished attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetLatest(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("attempt_number DESC").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByUsageID(ctx context.Context, tx *gorm.DB, usageID string) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("question_usage_id = ?", usageID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (int, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND user_id = ? AND preview = false", quizID, userID).
		Count(&count).Error
	return int(count), err
}

func (a *AttemptPostgreSQL) HasRealAttempts(ctx context.Context, tx *gorm.DB, quizID uint) (bool, error) {
	db := a.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND preview = false", quizID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (a *AttemptPostgreSQL) GetRealAttempts(ctx context.Context, tx *gorm.DB, quizID uint, userIDs []string, attemptIDs []uint) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).
		Where("quiz_id = ? AND preview = false", quizID)

	if len(userIDs) > 0 {
		query = query.Where("user_id IN ?", userIDs)
	}
	if len(attemptIDs) > 0 {
		query = query.Where("id IN ?", attemptIDs)
	}

	var attempts []*models.Attempt
	if err := query.Order("id ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempts for regrade: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetPreview(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ? AND preview = true", quizID, userID).
		Order("attempt_number DESC").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) DeletePreviews(ctx context.Context, tx *gorm.DB, quizID uint, userID string) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ? AND preview = true", quizID, userID).
		Delete(&models.Attempt{}).Error
}

func (a *AttemptPostgreSQL) GetExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).
		Where("state IN ? AND time_check_state IS NOT NULL AND time_check_state <= ?",
			[]models.AttemptState{models.AttemptInProgress, models.AttemptOverdue}, now).
		Order("time_check_state ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	var attempts []*models.Attempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get expired attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, quizID uint) (*repositories.AttemptStats, error) {
	db := a.getDB(tx)

	stats := &repositories.AttemptStats{
		StateBreakdown: make(map[models.AttemptState]int),
	}

	type row struct {
		State models.AttemptState
		Count int
	}
	var rows []row
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Select("state, count(*) as count").
		Where("quiz_id = ? AND preview = false", quizID).
		Group("state").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	for _, r := range rows {
		stats.StateBreakdown[r.State] = r.Count
		stats.TotalAttempts += r.Count
	}

	var avg *float64
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Select("avg(sum_grades)").
		Where("quiz_id = ? AND preview = false AND sum_grades IS NOT NULL", quizID).
		Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to get average grade: %w", err)
	}
	if avg != nil {
		stats.AverageGrade = *avg
	}

	var previews int64
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("quiz_id = ? AND preview = true", quizID).
		Count(&previews).Error; err != nil {
		return nil, err
	}
	stats.PreviewCount = int(previews)

	return stats, nil
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.State != nil {
		query = query.Where("state = ?", *filters.State)
	} else if states := filters.StateGroup.States(); states != nil {
		query = query.Where("state IN ?", states)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if !filters.IncludePreviews {
		query = query.Where("preview = false")
	}
	if filters.DateFrom != nil {
		query = query.Where("time_start >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("time_start <= ?", *filters.DateTo)
	}
	return query
}

func (a *AttemptPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	sortBy := "time_start"
	switch filters.SortBy {
	case "attempt_number", "sum_grades", "time_start":
		sortBy = filters.SortBy
	}

	sortOrder := "DESC"
	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	return query
}
