package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/cache"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
)

type OverridePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewOverridePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.OverrideRepository {
	return &OverridePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (o *OverridePostgreSQL) Create(ctx context.Context, tx *gorm.DB, override *models.UserOverride) error {
	db := o.getDB(tx)
	if err := db.WithContext(ctx).Create(override).Error; err != nil {
		return err
	}
	cache.InvalidateQuizCache(ctx, o.cacheManager, override.QuizID)
	return nil
}

func (o *OverridePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.UserOverride, error) {
	db := o.getDB(tx)
	var override models.UserOverride
	if err := db.WithContext(ctx).First(&override, id).Error; err != nil {
		return nil, err
	}
	return &override, nil
}

func (o *OverridePostgreSQL) GetByQuizAndUser(ctx context.Context, tx *gorm.DB, quizID uint, userID string) (*models.UserOverride, error) {
	db := o.getDB(tx)
	var override models.UserOverride
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		First(&override).Error; err != nil {
		return nil, err
	}
	return &override, nil
}

func (o *OverridePostgreSQL) List(ctx context.Context, tx *gorm.DB, quizID uint, filters repositories.OverrideFilters) ([]*models.UserOverride, int64, error) {
	db := o.getDB(tx)
	var overrides []*models.UserOverride
	var total int64

	query := db.WithContext(ctx).Model(&models.UserOverride{}).Where("quiz_id = ?", quizID)
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("user_id ASC").Find(&overrides).Error; err != nil {
		return nil, 0, err
	}

	return overrides, total, nil
}

func (o *OverridePostgreSQL) Update(ctx context.Context, tx *gorm.DB, override *models.UserOverride) error {
	db := o.getDB(tx)
	if err := db.WithContext(ctx).Save(override).Error; err != nil {
		return err
	}
	cache.InvalidateQuizCache(ctx, o.cacheManager, override.QuizID)
	return nil
}

func (o *OverridePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := o.getDB(tx)
	return db.WithContext(ctx).Delete(&models.UserOverride{}, id).Error
}

func (o *OverridePostgreSQL) GetExtraPasswords(ctx context.Context, tx *gorm.DB, quizID uint, excludeUserID string) ([]string, error) {
	db := o.getDB(tx)
	var passwords []string
	if err := db.WithContext(ctx).
		Model(&models.UserOverride{}).
		Where("quiz_id = ? AND user_id <> ? AND password IS NOT NULL AND password <> ''", quizID, excludeUserID).
		Distinct().
		Pluck("password", &passwords).Error; err != nil {
		return nil, fmt.Errorf("failed to get extra passwords: %w", err)
	}
	return passwords, nil
}

func (o *OverridePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return o.db
}
