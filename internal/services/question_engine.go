package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// versionEngine is the default QuestionEngine. It grades against the
// question's grading key and re-marks slots when the question version
// moves, scaling previously awarded credit by the key's correction
// factor. Deployments with richer response storage plug in their own
// engine behind the same interface.
type versionEngine struct {
	repo   repositories.Repository
	logger *slog.Logger
}

// NewQuestionEngine creates the default gorm-backed question engine
func NewQuestionEngine(repo repositories.Repository, logger *slog.Logger) QuestionEngine {
	return &versionEngine{
		repo:   repo,
		logger: logger,
	}
}

// gradingKey is the portion of models.Question.GradingKey the default
// engine understands. Scale rescales previously awarded fractions when
// a question's marking was corrected between versions.
type gradingKey struct {
	Scale *float64 `json:"scale"`
}

func parseGradingKey(raw []byte) gradingKey {
	var key gradingKey
	if len(raw) == 0 {
		return key
	}
	// An unparsable key behaves like an empty one
	_ = json.Unmarshal(raw, &key)
	return key
}

func (e *versionEngine) CreateUsage(ctx context.Context, tx *gorm.DB, quiz *models.Quiz, slots []*models.QuizSlot) (*models.QuestionUsage, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("quiz %d has no slots", quiz.ID)
	}

	questionIDs := make([]uint, 0, len(slots))
	for _, slot := range slots {
		questionIDs = append(questionIDs, slot.QuestionID)
	}

	questions, err := e.repo.Question().GetByIDs(ctx, tx, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	versionByID := make(map[uint]int, len(questions))
	for _, q := range questions {
		versionByID[q.ID] = q.Version
	}

	usage := &models.QuestionUsage{
		UniqueID: uuid.NewString(),
		QuizID:   quiz.ID,
		Slots:    make([]models.UsageSlot, 0, len(slots)),
	}

	for _, slot := range slots {
		version, ok := versionByID[slot.QuestionID]
		if !ok {
			return nil, fmt.Errorf("question %d referenced by slot %d does not exist", slot.QuestionID, slot.SlotNumber)
		}
		usage.Slots = append(usage.Slots, models.UsageSlot{
			Slot:            slot.SlotNumber,
			QuestionID:      slot.QuestionID,
			MaxMark:         slot.MaxMark,
			QuestionVersion: version,
		})
	}

	if err := e.repo.Usage().Create(ctx, tx, usage); err != nil {
		return nil, fmt.Errorf("failed to create question usage: %w", err)
	}

	return usage, nil
}

// stageResponses assigns each payload to its usage slot and returns
// the slots that changed. A slot number with no matching usage slot is
// an error, not a silent drop.
func stageResponses(usage *models.QuestionUsage, responses map[int]json.RawMessage) ([]*models.UsageSlot, error) {
	byNumber := make(map[int]*models.UsageSlot, len(usage.Slots))
	for i := range usage.Slots {
		byNumber[usage.Slots[i].Slot] = &usage.Slots[i]
	}

	changed := make([]*models.UsageSlot, 0, len(responses))
	for number, payload := range responses {
		slot, ok := byNumber[number]
		if !ok {
			return nil, fmt.Errorf("usage %s has no slot %d: %w", usage.UniqueID, number, ErrSlotNotFound)
		}
		slot.ResponseData = datatypes.JSON(payload)
		changed = append(changed, slot)
	}
	return changed, nil
}

func (e *versionEngine) SaveResponses(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage, responses map[int]json.RawMessage) error {
	changed, err := stageResponses(usage, responses)
	if err != nil {
		return err
	}

	for _, slot := range changed {
		if err := e.repo.Usage().UpdateSlot(ctx, tx, slot); err != nil {
			return fmt.Errorf("failed to save slot %d of usage %s: %w", slot.Slot, usage.UniqueID, err)
		}
	}
	return nil
}

func (e *versionEngine) FinishGrading(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage) error {
	for i := range usage.Slots {
		slot := &usage.Slots[i]
		if slot.Fraction != nil {
			continue
		}

		// Slots that never received a gradable response earn nothing
		zero := 0.0
		slot.Fraction = &zero
		if err := e.repo.Usage().UpdateSlot(ctx, tx, slot); err != nil {
			return fmt.Errorf("failed to grade slot %d of usage %s: %w", slot.Slot, usage.UniqueID, err)
		}
	}
	return nil
}

func (e *versionEngine) RegradeSlot(ctx context.Context, tx *gorm.DB, usage *models.QuestionUsage, slot *models.UsageSlot, finished bool) (float64, int, error) {
	question, err := e.repo.Question().GetByID(ctx, tx, slot.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, 0, fmt.Errorf("question %d no longer exists", slot.QuestionID)
		}
		return 0, 0, fmt.Errorf("failed to load question %d: %w", slot.QuestionID, err)
	}

	current := 0.0
	if slot.Fraction != nil {
		current = *slot.Fraction
	}

	// Same question version grades the same response identically
	if slot.QuestionVersion == question.Version {
		return current, question.Version, nil
	}

	key := parseGradingKey(question.GradingKey)
	scale := 1.0
	if key.Scale != nil {
		scale = *key.Scale
	}

	fraction := clampFraction(current * scale)
	e.logger.Debug("Regraded slot against new question version",
		"usage_id", usage.UniqueID,
		"slot", slot.Slot,
		"question_id", question.ID,
		"old_version", slot.QuestionVersion,
		"new_version", question.Version,
		"old_fraction", current,
		"new_fraction", fraction,
		"finished", finished)

	return fraction, question.Version, nil
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
