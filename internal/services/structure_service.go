package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"gorm.io/gorm"
)

// gradeEpsilon is the smallest mark difference treated as a change.
const gradeEpsilon = 1e-7

type structureService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewStructureService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator) StructureService {
	return &structureService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
	}
}

// ===== READ =====

func (s *structureService) GetStructure(ctx context.Context, quizID uint, userID string) (*StructureResponse, error) {
	if err := s.requireManager(ctx, userID, quizID, "read_structure"); err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByIDWithStructure(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	locked, err := s.repo.Attempt().HasRealAttempts(ctx, nil, quizID)
	if err != nil {
		return nil, err
	}

	questionIDs := make([]uint, 0, len(quiz.Slots))
	for _, slot := range quiz.Slots {
		questionIDs = append(questionIDs, slot.QuestionID)
	}
	questions, err := s.repo.Question().GetByIDs(ctx, nil, questionIDs)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[uint]string, len(questions))
	for _, q := range questions {
		nameByID[q.ID] = q.Name
	}

	resp := &StructureResponse{
		QuizID:    quizID,
		Locked:    locked,
		SumGrades: quiz.SumGrades,
	}

	for i := range quiz.Sections {
		section := &quiz.Sections[i]
		sr := &SectionResponse{QuizSection: section}

		last := len(quiz.Slots) // slot number bound, exclusive of next section
		if i+1 < len(quiz.Sections) {
			last = quiz.Sections[i+1].FirstSlot - 1
		}
		for j := range quiz.Slots {
			slot := &quiz.Slots[j]
			if slot.SlotNumber >= section.FirstSlot && slot.SlotNumber <= last {
				sr.Slots = append(sr.Slots, &SlotResponse{
					QuizSlot:     slot,
					QuestionName: nameByID[slot.QuestionID],
				})
			}
			if slot.Page > resp.PageCount {
				resp.PageCount = slot.Page
			}
		}
		resp.Sections = append(resp.Sections, sr)
	}

	return resp, nil
}

// ===== SLOT OPERATIONS =====

func (s *structureService) MoveSlot(ctx context.Context, quizID, slotID uint, req *MoveSlotRequest, userID string) error {
	s.logger.Info("Moving slot",
		"quiz_id", quizID,
		"slot_id", slotID,
		"after_slot", req.AfterSlotNumber,
		"page", req.Page,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if err := s.requireEditable(ctx, userID, quizID, "move_slot"); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		slots, err := s.repo.Slot().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		moving := findSlotByID(slots, slotID)
		if moving == nil {
			return ErrSlotNotFound
		}
		if req.AfterSlotNumber > len(slots) {
			return NewValidationError("after_slot_number", "beyond the last slot", req.AfterSlotNumber)
		}

		sections, err := s.repo.Section().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}

		old := moving.SlotNumber
		target := req.AfterSlotNumber + 1
		if req.AfterSlotNumber >= old {
			target = req.AfterSlotNumber
		}

		if target != old {
			if size := sectionSizeAt(sections, len(slots), old); size == 1 {
				return ErrLastSlotInSection
			}
		}

		mapping := slotMoveMapping(old, target)

		if len(mapping) > 0 {
			if err := s.repo.Slot().Renumber(ctx, tx, quizID, mapping); err != nil {
				return err
			}
			// Section boundaries inside the rotated range follow their
			// first slot. The first section is pinned to slot 1.
			if target < old {
				after := target - 1
				if after < 1 {
					after = 1
				}
				err = s.repo.Section().ShiftFirstSlots(ctx, tx, quizID, after, old+1, 1)
			} else {
				err = s.repo.Section().ShiftFirstSlots(ctx, tx, quizID, old, target+2, -1)
			}
			if err != nil {
				return err
			}
		}

		// Reload in new order, pin the moved slot's page, then close
		// any page gaps the move opened.
		slots, err = s.repo.Slot().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		pages := make(map[int]int, len(slots))
		for _, slot := range slots {
			page := slot.Page
			if slot.ID == slotID {
				page = req.Page
			}
			pages[slot.SlotNumber] = page
		}
		return s.repo.Slot().UpdatePages(ctx, tx, quizID, compactPages(slots, pages))
	})
}

func (s *structureService) RemoveSlot(ctx context.Context, quizID, slotID uint, userID string) error {
	s.logger.Info("Removing slot", "quiz_id", quizID, "slot_id", slotID, "user_id", userID)

	if err := s.requireEditable(ctx, userID, quizID, "remove_slot"); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		slots, err := s.repo.Slot().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		removing := findSlotByID(slots, slotID)
		if removing == nil {
			return ErrSlotNotFound
		}

		sections, err := s.repo.Section().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if len(slots) > 1 && sectionSizeAt(sections, len(slots), removing.SlotNumber) == 1 {
			return ErrLastSlotInSection
		}

		if err := s.repo.Slot().Delete(ctx, tx, removing.ID); err != nil {
			return err
		}
		if err := s.repo.Slot().ShiftDownAfter(ctx, tx, quizID, removing.SlotNumber); err != nil {
			return err
		}
		if err := s.repo.Section().ShiftFirstSlotsGreaterThan(ctx, tx, quizID, removing.SlotNumber, -1); err != nil {
			return err
		}

		remaining, err := s.repo.Slot().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		pages := make(map[int]int, len(remaining))
		for _, slot := range remaining {
			pages[slot.SlotNumber] = slot.Page
		}
		if err := s.repo.Slot().UpdatePages(ctx, tx, quizID, compactPages(remaining, pages)); err != nil {
			return err
		}

		return s.repo.Quiz().UpdateSumGrades(ctx, tx, quizID, totalMaxMarks(remaining))
	})
}

// UpdateSlotMaxMark is allowed even once attempts exist; the new mark
// is pushed into every stored usage so a later regrade can settle the
// grades.
func (s *structureService) UpdateSlotMaxMark(ctx context.Context, quizID, slotID uint, req *SetSlotMaxMarkRequest, userID string) error {
	s.logger.Info("Updating slot max mark",
		"quiz_id", quizID,
		"slot_id", slotID,
		"max_mark", req.MaxMark,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if err := s.requireManager(ctx, userID, quizID, "update_max_mark"); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		slot, err := s.repo.Slot().GetByID(ctx, tx, slotID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSlotNotFound
			}
			return err
		}
		if slot.QuizID != quizID {
			return ErrSlotNotFound
		}
		if math.Abs(slot.MaxMark-req.MaxMark) < gradeEpsilon {
			return nil
		}

		if err := s.repo.Slot().SetMaxMark(ctx, tx, slotID, req.MaxMark); err != nil {
			return err
		}
		if err := s.repo.Usage().SetMaxMarkForQuizSlot(ctx, tx, quizID, slot.SlotNumber, req.MaxMark); err != nil {
			return err
		}

		slots, err := s.repo.Slot().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		return s.repo.Quiz().UpdateSumGrades(ctx, tx, quizID, totalMaxMarks(slots))
	})
}

func (s *structureService) SetRequirePrevious(ctx context.Context, quizID, slotID uint, require bool, userID string) error {
	if err := s.requireEditable(ctx, userID, quizID, "set_require_previous"); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		slot, err := s.repo.Slot().GetByID(ctx, tx, slotID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSlotNotFound
			}
			return err
		}
		if slot.QuizID != quizID {
			return ErrSlotNotFound
		}
		if slot.SlotNumber == 1 && require {
			return NewValidationError("require_previous", "the first slot has no previous slot", require)
		}
		slot.RequirePrevious = require
		return s.repo.Slot().Update(ctx, tx, slot)
	})
}

// ===== SECTION OPERATIONS =====

func (s *structureService) AddSectionHeading(ctx context.Context, quizID uint, req *AddSectionRequest, userID string) (*SectionResponse, error) {
	s.logger.Info("Adding section heading",
		"quiz_id", quizID,
		"page", req.Page,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireEditable(ctx, userID, quizID, "add_section"); err != nil {
		return nil, err
	}

	var section *models.QuizSection
	err := s.db.Transaction(func(tx *gorm.DB) error {
		slots, err := s.repo.Slot().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}

		firstSlot := 0
		for _, slot := range slots {
			if slot.Page == req.Page {
				firstSlot = slot.SlotNumber
				break
			}
		}
		if firstSlot == 0 {
			return ErrPageNotFound
		}

		sections, err := s.repo.Section().GetByQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		for _, existing := range sections {
			if existing.FirstSlot == firstSlot {
				return NewValidationError("page", "a section already starts at this page", req.Page)
			}
		}

		section = &models.QuizSection{
			QuizID:    quizID,
			FirstSlot: firstSlot,
			Heading:   req.Heading,
		}
		return s.repo.Section().Create(ctx, tx, section)
	})
	if err != nil {
		return nil, err
	}

	return &SectionResponse{QuizSection: section}, nil
}

// UpdateSection edits heading and shuffle; both stay editable after
// attempts exist since neither changes what was asked.
func (s *structureService) UpdateSection(ctx context.Context, quizID, sectionID uint, req *UpdateSectionRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if err := s.requireManager(ctx, userID, quizID, "update_section"); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		section, err := s.repo.Section().GetByID(ctx, tx, sectionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSectionNotFound
			}
			return err
		}
		if section.QuizID != quizID {
			return ErrSectionNotFound
		}

		if req.Heading != nil {
			section.Heading = *req.Heading
		}
		if req.ShuffleQuestions != nil {
			section.ShuffleQuestions = *req.ShuffleQuestions
		}
		return s.repo.Section().Update(ctx, tx, section)
	})
}

func (s *structureService) RemoveSectionHeading(ctx context.Context, quizID, sectionID uint, userID string) error {
	s.logger.Info("Removing section heading",
		"quiz_id", quizID,
		"section_id", sectionID,
		"user_id", userID)

	if err := s.requireEditable(ctx, userID, quizID, "remove_section"); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		section, err := s.repo.Section().GetByID(ctx, tx, sectionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSectionNotFound
			}
			return err
		}
		if section.QuizID != quizID {
			return ErrSectionNotFound
		}
		if section.FirstSlot == 1 {
			return ErrFirstSectionFixed
		}
		// Its slots fall through to the previous section
		return s.repo.Section().Delete(ctx, tx, section.ID)
	})
}

// ===== HELPERS =====

func (s *structureService) requireManager(ctx context.Context, userID string, quizID uint, action string) error {
	canManage, err := canManageQuiz(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if !canManage {
		return NewPermissionError(userID, quizID, "quiz", action, "requires a teacher role")
	}
	return nil
}

// requireEditable gates structural edits: manager role plus no real
// attempts yet.
func (s *structureService) requireEditable(ctx context.Context, userID string, quizID uint, action string) error {
	if err := s.requireManager(ctx, userID, quizID, action); err != nil {
		return err
	}

	if _, err := s.repo.Quiz().GetByID(ctx, nil, quizID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return err
	}

	locked, err := s.repo.Attempt().HasRealAttempts(ctx, nil, quizID)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if locked {
		return ErrStructureLocked
	}
	return nil
}

// slotMoveMapping returns the old→new slot number mapping that moves
// slot number old to target as a single rotation. Everything outside
// [min(old,target), max(old,target)] keeps its number.
func slotMoveMapping(old, target int) map[int]int {
	mapping := map[int]int{}
	if target < old {
		for n := target; n < old; n++ {
			mapping[n] = n + 1
		}
		mapping[old] = target
	} else if target > old {
		for n := old + 1; n <= target; n++ {
			mapping[n] = n - 1
		}
		mapping[old] = target
	}
	return mapping
}

func findSlotByID(slots []*models.QuizSlot, id uint) *models.QuizSlot {
	for _, slot := range slots {
		if slot.ID == id {
			return slot
		}
	}
	return nil
}

// sectionSizeAt returns the slot count of the section containing the
// given slot number.
func sectionSizeAt(sections []*models.QuizSection, numSlots, slotNumber int) int {
	if len(sections) == 0 {
		return numSlots
	}

	sorted := make([]*models.QuizSection, len(sections))
	copy(sorted, sections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FirstSlot < sorted[j].FirstSlot })

	for i, section := range sorted {
		last := numSlots
		if i+1 < len(sorted) {
			last = sorted[i+1].FirstSlot - 1
		}
		if slotNumber >= section.FirstSlot && slotNumber <= last {
			return last - section.FirstSlot + 1
		}
	}
	return numSlots
}

// compactPages renumbers pages densely from 1 while keeping the page
// boundaries implied by the proposed assignment. slots must be in
// slot-number order; pages maps slot number to its proposed page.
// Only entries that differ from the stored page are returned.
func compactPages(slots []*models.QuizSlot, pages map[int]int) map[int]int {
	changed := make(map[int]int)

	currentPage := 0
	lastRaw := -1
	for _, slot := range slots {
		raw := pages[slot.SlotNumber]
		if raw != lastRaw {
			currentPage++
			lastRaw = raw
		}
		if slot.Page != currentPage {
			changed[slot.SlotNumber] = currentPage
		}
	}
	return changed
}

func totalMaxMarks(slots []*models.QuizSlot) float64 {
	total := 0.0
	for _, slot := range slots {
		total += slot.MaxMark
	}
	return total
}
