package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/events"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"gorm.io/gorm"
)

type regradeService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	engine    QuestionEngine
	publisher events.EventPublisher
}

func NewRegradeService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, v *validator.Validator, engine QuestionEngine, publisher events.EventPublisher) RegradeService {
	return &regradeService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: v,
		engine:    engine,
		publisher: publisher,
	}
}

// Regrade re-marks the selected attempts of a quiz. Each attempt is
// its own transaction, so a failure mid-batch leaves earlier attempts
// settled and later ones untouched; the batch reports per-attempt
// errors instead of aborting.
func (s *regradeService) Regrade(ctx context.Context, quizID uint, req *RegradeRequest, userID string) (*RegradeReport, error) {
	s.logger.Info("Starting regrade",
		"quiz_id", quizID,
		"dry_run", req.DryRun,
		"users", len(req.UserIDs),
		"attempts", len(req.AttemptIDs),
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	attempts, err := s.repo.Attempt().GetRealAttempts(ctx, nil, quizID, req.UserIDs, req.AttemptIDs)
	if err != nil {
		return nil, err
	}
	attempts = regradableAttempts(attempts)
	if len(attempts) == 0 {
		return nil, ErrNothingToRegrade
	}

	// A new pass restarts the bookkeeping for its scope
	usageIDs := make([]string, 0, len(attempts))
	for _, a := range attempts {
		usageIDs = append(usageIDs, a.QuestionUsageID)
	}
	if err := s.repo.Regrade().DeleteByUsageIDs(ctx, nil, usageIDs); err != nil {
		return nil, err
	}

	report := &RegradeReport{
		QuizID:        quizID,
		DryRun:        req.DryRun,
		AttemptsTotal: len(attempts),
	}

	for _, attempt := range attempts {
		changes, err := s.regradeAttempt(ctx, attempt, nil, req.DryRun)
		if err != nil {
			report.AttemptsSkipped++
			report.Errors = append(report.Errors, err.Error())
			s.logger.Error("Regrade skipped attempt",
				"attempt_id", attempt.ID, "error", err)
			continue
		}
		report.AttemptsRegraded++
		report.SlotsChanged += len(changes)
		report.Changes = append(report.Changes, changes...)
	}
	report.FinishedAt = time.Now()

	if !req.DryRun {
		s.pushGrades(ctx, quiz, report)
	}
	s.publishFinished(ctx, report)

	s.logger.Info("Regrade finished",
		"quiz_id", quizID,
		"dry_run", req.DryRun,
		"regraded", report.AttemptsRegraded,
		"skipped", report.AttemptsSkipped,
		"slots_changed", report.SlotsChanged)

	return report, nil
}

// RegradeAttemptsNeedingIt resumes from the dry-run bookkeeping: only
// attempts with uncommitted regrade rows are touched, and only the
// recorded slots are re-marked.
func (s *regradeService) RegradeAttemptsNeedingIt(ctx context.Context, quizID uint, userID string) (*RegradeReport, error) {
	s.logger.Info("Regrading attempts needing it", "quiz_id", quizID, "user_id", userID)

	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	pending, err := s.repo.Regrade().NeedingRegrade(ctx, nil, quizID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, ErrNothingToRegrade
	}

	report := &RegradeReport{
		QuizID:        quizID,
		AttemptsTotal: len(pending),
	}

	for usageID, slots := range pending {
		attempt, err := s.repo.Attempt().GetByUsageID(ctx, nil, usageID)
		if err != nil {
			report.AttemptsSkipped++
			report.Errors = append(report.Errors, fmt.Sprintf("usage %s: %v", usageID, err))
			continue
		}

		// Committed rows replace the stale dry-run ones
		if err := s.repo.Regrade().DeleteByUsageIDs(ctx, nil, []string{usageID}); err != nil {
			report.AttemptsSkipped++
			report.Errors = append(report.Errors, err.Error())
			continue
		}

		changes, err := s.regradeAttempt(ctx, attempt, slots, false)
		if err != nil {
			report.AttemptsSkipped++
			report.Errors = append(report.Errors, err.Error())
			s.logger.Error("Regrade skipped attempt",
				"attempt_id", attempt.ID, "error", err)
			continue
		}
		report.AttemptsRegraded++
		report.SlotsChanged += len(changes)
		report.Changes = append(report.Changes, changes...)
	}
	report.FinishedAt = time.Now()

	s.pushGrades(ctx, quiz, report)
	s.publishFinished(ctx, report)

	return report, nil
}

func (s *regradeService) GetSummary(ctx context.Context, quizID uint, userID string) (*RegradeSummary, error) {
	if err := s.requireManager(ctx, userID, quizID); err != nil {
		return nil, err
	}

	if _, err := s.repo.Quiz().GetByID(ctx, nil, quizID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	count, err := s.repo.Regrade().CountAttemptsNeedingRegrade(ctx, nil, quizID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.Regrade().NeedingRegrade(ctx, nil, quizID)
	if err != nil {
		return nil, err
	}

	slots := 0
	for _, list := range pending {
		slots += len(list)
	}

	return &RegradeSummary{
		QuizID:                 quizID,
		AttemptsNeedingRegrade: int64(count),
		PendingSlotChanges:     slots,
	}, nil
}

// ===== PER-ATTEMPT REGRADE =====

// regradeAttempt re-marks one attempt atomically. onlySlots narrows
// the pass to specific slot numbers; nil means all slots. In dry-run
// mode the usage and attempt are never mutated, only RegradeRecord
// rows with Regraded=false are written.
func (s *regradeService) regradeAttempt(ctx context.Context, attempt *models.Attempt, onlySlots []int, dryRun bool) ([]RegradeSlotChange, error) {
	var changes []RegradeSlotChange

	wanted := make(map[int]bool, len(onlySlots))
	for _, n := range onlySlots {
		wanted[n] = true
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		usage, err := s.repo.Usage().GetByUniqueID(ctx, tx, attempt.QuestionUsageID)
		if err != nil {
			return NewRegradeInconsistencyError(attempt.ID, attempt.QuestionUsageID, 0, "usage could not be loaded")
		}

		finished := attempt.State == models.AttemptFinished
		now := time.Now()
		mutated := false

		for i := range usage.Slots {
			slot := &usage.Slots[i]
			if len(wanted) > 0 && !wanted[slot.Slot] {
				continue
			}

			old := 0.0
			if slot.Fraction != nil {
				old = *slot.Fraction
			}

			newFraction, version, err := s.engine.RegradeSlot(ctx, tx, usage, slot, finished)
			if err != nil {
				return NewRegradeInconsistencyError(attempt.ID, usage.UniqueID, slot.Slot, err.Error())
			}

			if math.Abs(newFraction-old) <= gradeEpsilon {
				continue
			}

			record := &models.RegradeRecord{
				QuestionUsageID: usage.UniqueID,
				Slot:            slot.Slot,
				OldFraction:     old,
				NewFraction:     newFraction,
				Regraded:        !dryRun,
				TimeModified:    now,
			}
			if err := s.repo.Regrade().Create(ctx, tx, record); err != nil {
				return err
			}

			changes = append(changes, RegradeSlotChange{
				AttemptID:   attempt.ID,
				UserID:      attempt.UserID,
				Slot:        slot.Slot,
				OldFraction: old,
				NewFraction: newFraction,
			})

			if !dryRun {
				f := newFraction
				slot.Fraction = &f
				slot.QuestionVersion = version
				if err := s.repo.Usage().UpdateSlot(ctx, tx, slot); err != nil {
					return err
				}
				mutated = true
			}
		}

		if mutated {
			sum := sumGrades(usage)
			attempt.SumGrades = &sum
			attempt.TimeModified = now
			return s.repo.Attempt().Update(ctx, tx, attempt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// ===== GRADE SYNC / EVENTS =====

// pushGrades recomputes and publishes the final grade of every user a
// committed regrade touched.
func (s *regradeService) pushGrades(ctx context.Context, quiz *models.Quiz, report *RegradeReport) {
	users := make(map[string]bool)
	for _, change := range report.Changes {
		users[change.UserID] = true
	}

	settings := quiz.ApplyOverride(nil)
	for user := range users {
		finished, err := s.repo.Attempt().GetFinishedByQuizAndUser(ctx, nil, quiz.ID, user)
		if err != nil {
			s.logger.Error("Failed to load attempts for grade push",
				"quiz_id", quiz.ID, "user_id", user, "error", err)
			continue
		}
		raw := overallGrade(quiz.GradingMethod, finished)
		if raw == nil {
			continue
		}

		event, err := events.NewEvent(events.EventGradeUpdated, events.GradeUpdatedPayload{
			QuizID: quiz.ID,
			UserID: user,
			Grade:  scaleGrade(*raw, settings),
		})
		if err != nil {
			continue
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish grade event",
				"quiz_id", quiz.ID, "user_id", user, "error", err)
		}
	}
}

func (s *regradeService) publishFinished(ctx context.Context, report *RegradeReport) {
	event, err := events.NewEvent(events.EventRegradeFinished, events.RegradeFinishedPayload{
		QuizID:           report.QuizID,
		AttemptsRegraded: report.AttemptsRegraded,
		SlotsChanged:     report.SlotsChanged,
		DryRun:           report.DryRun,
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish regrade event",
			"quiz_id", report.QuizID, "error", err)
	}
}

func (s *regradeService) requireManager(ctx context.Context, userID string, quizID uint) error {
	canManage, err := canManageQuiz(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if !canManage {
		return NewPermissionError(userID, quizID, "quiz", "regrade", "requires a teacher role")
	}
	return nil
}

// regradableAttempts keeps finished and overdue attempts; in-progress
// and abandoned ones have nothing stable to re-mark.
func regradableAttempts(attempts []*models.Attempt) []*models.Attempt {
	out := make([]*models.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.State == models.AttemptFinished || a.State == models.AttemptOverdue {
			out = append(out, a)
		}
	}
	return out
}
