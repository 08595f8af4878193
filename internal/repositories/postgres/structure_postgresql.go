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

// renumberOffset keeps intermediate slot numbers clear of the unique
// (quiz_id, slot_number) index while a renumbering lands.
const renumberOffset = 100000

type SlotPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewSlotPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SlotRepository {
	return &SlotPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SlotPostgreSQL) Create(ctx context.Context, tx *gorm.DB, slot *models.QuizSlot) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(slot).Error; err != nil {
		return err
	}
	cache.InvalidateQuizCache(ctx, s.cacheManager, slot.QuizID)
	return nil
}

func (s *SlotPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSlot, error) {
	db := s.getDB(tx)
	var slot models.QuizSlot
	if err := db.WithContext(ctx).First(&slot, id).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (s *SlotPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.QuizSlot, error) {
	db := s.getDB(tx)
	var slots []*models.QuizSlot
	if err := db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("slot_number ASC").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to get slots: %w", err)
	}
	return slots, nil
}

func (s *SlotPostgreSQL) GetBySlotNumber(ctx context.Context, tx *gorm.DB, quizID uint, slotNumber int) (*models.QuizSlot, error) {
	db := s.getDB(tx)
	var slot models.QuizSlot
	if err := db.WithContext(ctx).
		Where("quiz_id = ? AND slot_number = ?", quizID, slotNumber).
		First(&slot).Error; err != nil {
		return nil, err
	}
	return &slot, nil
}

func (s *SlotPostgreSQL) Update(ctx context.Context, tx *gorm.DB, slot *models.QuizSlot) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Save(slot).Error; err != nil {
		return err
	}
	cache.InvalidateQuizCache(ctx, s.cacheManager, slot.QuizID)
	return nil
}

func (s *SlotPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Delete(&models.QuizSlot{}, id).Error
}

func (s *SlotPostgreSQL) Count(ctx context.Context, tx *gorm.DB, quizID uint) (int, error) {
	db := s.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.QuizSlot{}).
		Where("quiz_id = ?", quizID).
		Count(&count).Error
	return int(count), err
}

// Renumber applies an old-to-new slot number mapping in two passes so
// the unique index never sees a duplicate.
func (s *SlotPostgreSQL) Renumber(ctx context.Context, tx *gorm.DB, quizID uint, mapping map[int]int) error {
	db := s.getDB(tx)

	changed := make(map[int]int, len(mapping))
	oldNumbers := make([]int, 0, len(mapping))
	for oldNum, newNum := range mapping {
		if oldNum != newNum {
			changed[oldNum] = newNum
			oldNumbers = append(oldNumbers, oldNum)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if err := db.WithContext(ctx).
		Model(&models.QuizSlot{}).
		Where("quiz_id = ? AND slot_number IN ?", quizID, oldNumbers).
		Update("slot_number", gorm.Expr("slot_number + ?", renumberOffset)).Error; err != nil {
		return fmt.Errorf("failed to stage slot renumbering: %w", err)
	}

	for oldNum, newNum := range changed {
		if err := db.WithContext(ctx).
			Model(&models.QuizSlot{}).
			Where("quiz_id = ? AND slot_number = ?", quizID, oldNum+renumberOffset).
			Update("slot_number", newNum).Error; err != nil {
			return fmt.Errorf("failed to renumber slot %d: %w", oldNum, err)
		}
	}

	cache.InvalidateQuizCache(ctx, s.cacheManager, quizID)
	return nil
}

// UpdatePages writes page assignments keyed by slot number.
func (s *SlotPostgreSQL) UpdatePages(ctx context.Context, tx *gorm.DB, quizID uint, pages map[int]int) error {
	db := s.getDB(tx)
	for slotNumber, page := range pages {
		if err := db.WithContext(ctx).
			Model(&models.QuizSlot{}).
			Where("quiz_id = ? AND slot_number = ?", quizID, slotNumber).
			Update("page", page).Error; err != nil {
			return fmt.Errorf("failed to set page for slot %d: %w", slotNumber, err)
		}
	}
	cache.InvalidateQuizCache(ctx, s.cacheManager, quizID)
	return nil
}

func (s *SlotPostgreSQL) ShiftDownAfter(ctx context.Context, tx *gorm.DB, quizID uint, removedSlot int) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.QuizSlot{}).
		Where("quiz_id = ? AND slot_number > ?", quizID, removedSlot).
		Update("slot_number", gorm.Expr("slot_number - 1")).Error; err != nil {
		return fmt.Errorf("failed to shift slots down: %w", err)
	}
	cache.InvalidateQuizCache(ctx, s.cacheManager, quizID)
	return nil
}

func (s *SlotPostgreSQL) SetMaxMark(ctx context.Context, tx *gorm.DB, id uint, maxMark float64) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.QuizSlot{}).
		Where("id = ?", id).
		Update("max_mark", maxMark).Error
}

func (s *SlotPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// ===== SECTIONS =====

type SectionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewSectionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SectionRepository {
	return &SectionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SectionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, section *models.QuizSection) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(section).Error; err != nil {
		return err
	}
	cache.InvalidateQuizCache(ctx, s.cacheManager, section.QuizID)
	return nil
}

func (s *SectionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSection, error) {
	db := s.getDB(tx)
	var section models.QuizSection
	if err := db.WithContext(ctx).First(&section, id).Error; err != nil {
		return nil, err
	}
	return &section, nil
}

func (s *SectionPostgreSQL) GetByQuiz(ctx context.Context, tx *gorm.DB, quizID uint) ([]*models.QuizSection, error) {
	db := s.getDB(tx)
	var sections []*models.QuizSection
	if err := db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("first_slot ASC").
		Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("failed to get sections: %w", err)
	}
	return sections, nil
}

func (s *SectionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, section *models.QuizSection) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Save(section).Error; err != nil {
		return err
	}
	cache.InvalidateQuizCache(ctx, s.cacheManager, section.QuizID)
	return nil
}

func (s *SectionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Delete(&models.QuizSection{}, id).Error
}

func (s *SectionPostgreSQL) ShiftFirstSlots(ctx context.Context, tx *gorm.DB, quizID uint, afterSlot, beforeSlot, delta int) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.QuizSection{}).
		Where("quiz_id = ? AND first_slot > ? AND first_slot < ?", quizID, afterSlot, beforeSlot).
		Update("first_slot", gorm.Expr("first_slot + ?", delta)).Error
}

func (s *SectionPostgreSQL) ShiftFirstSlotsGreaterThan(ctx context.Context, tx *gorm.DB, quizID uint, slot, delta int) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.QuizSection{}).
		Where("quiz_id = ? AND first_slot > ?", quizID, slot).
		Update("first_slot", gorm.Expr("first_slot + ?", delta)).Error
}

func (s *SectionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
