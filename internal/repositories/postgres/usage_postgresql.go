package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
)

type UsagePostgreSQL struct {
	db *gorm.DB
}

func NewUsagePostgreSQL(db *gorm.DB) repositories.UsageRepository {
	return &UsagePostgreSQL{db: db}
}

func (u *UsagePostgreSQL) Create(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage) error {
	db := u.getDB(tx)
	return db.WithContext(ctx).Create(usage).Error
}

func (u *UsagePostgreSQL) GetByUniqueID(ctx context.Context, tx *gorm.DB, uniqueID string) (*models.QuestionUsage, error) {
	db := u.getDB(tx)
	var usage models.QuestionUsage
	if err := db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB {
			return db.Order("slot ASC")
		}).
		Where("unique_id = ?", uniqueID).
		First(&usage).Error; err != nil {
		return nil, err
	}
	return &usage, nil
}

func (u *UsagePostgreSQL) UpdateSlot(ctx context.Context, tx *gorm.DB, slot *models.UsageSlot) error {
	db := u.getDB(tx)
	return db.WithContext(ctx).Save(slot).Error
}

func (u *UsagePostgreSQL) DeleteByUniqueID(ctx context.Context, tx *gorm.DB, uniqueID string) error {
	db := u.getDB(tx)

	var usage models.QuestionUsage
	if err := db.WithContext(ctx).Where("unique_id = ?", uniqueID).First(&usage).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("usage_id = ?", usage.ID).Delete(&models.UsageSlot{}).Error; err != nil {
		return fmt.Errorf("failed to delete usage slots: %w", err)
	}
	return db.WithContext(ctx).Delete(&usage).Error
}

func (u *UsagePostgreSQL) SetMaxMarkForQuizSlot(ctx context.Context, tx *gorm.DB, quizID uint, slotNumber int, maxMark float64) error {
	db := u.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.UsageSlot{}).
		Where("slot = ? AND usage_id IN (?)", slotNumber,
			db.WithContext(ctx).Model(&models.QuestionUsage{}).Select("id").Where("quiz_id = ?", quizID)).
		Update("max_mark", maxMark).Error
}

func (u *UsagePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return u.db
}

// ===== REGRADE RECORDS =====

type RegradePostgreSQL struct {
	db *gorm.DB
}

func NewRegradePostgreSQL(db *gorm.DB) repositories.RegradeRepository {
	return &RegradePostgreSQL{db: db}
}

func (r *RegradePostgreSQL) Create(ctx context.Context, tx *gorm.DB, record *models.RegradeRecord) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).Create(record).Error
}

func (r *RegradePostgreSQL) DeleteByUsageIDs(ctx context.Context, tx *gorm.DB, usageIDs []string) error {
	if len(usageIDs) == 0 {
		return nil
	}
	db := r.getDB(tx)
	return db.WithContext(ctx).
		Where("question_usage_id IN ?", usageIDs).
		Delete(&models.RegradeRecord{}).Error
}

func (r *RegradePostgreSQL) ListByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.RegradeRecord, error) {
	db := r.getDB(tx)
	var records []*models.RegradeRecord
	if err := db.WithContext(ctx).
		Where("question_usage_id IN (?)",
			db.WithContext(ctx).Model(&models.Attempt{}).Select("question_usage_id").Where("quiz_id = ?", quizID)).
		Order("question_usage_id ASC, slot ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list regrade records: %w", err)
	}
	return records, nil
}

func (r *RegradePostgreSQL) NeedingRegrade(ctx context.Context, tx *gorm.DB, quizID uint) (repositories.RegradeSlots, error) {
	db := r.getDB(tx)
	var records []*models.RegradeRecord
	if err := db.WithContext(ctx).
		Where("regraded = false AND question_usage_id IN (?)",
			db.WithContext(ctx).Model(&models.Attempt{}).Select("question_usage_id").Where("quiz_id = ?", quizID)).
		Order("question_usage_id ASC, slot ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to find slots needing regrade: %w", err)
	}

	slots := make(repositories.RegradeSlots)
	for _, rec := range records {
		slots[rec.QuestionUsageID] = append(slots[rec.QuestionUsageID], rec.Slot)
	}
	return slots, nil
}

func (r *RegradePostgreSQL) CountAttemptsNeedingRegrade(ctx context.Context, tx *gorm.DB, quizID uint) (int, error) {
	db := r.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.RegradeRecord{}).
		Where("regraded = false AND question_usage_id IN (?)",
			db.WithContext(ctx).Model(&models.Attempt{}).Select("question_usage_id").Where("quiz_id = ?", quizID)).
		Distinct("question_usage_id").
		Count(&count).Error
	return int(count), err
}

func (r *RegradePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
