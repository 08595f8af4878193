package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/events"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/rules"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/validator"
	"gorm.io/gorm"
)

type attemptService struct {
	repo          repositories.Repository
	db            *gorm.DB
	logger        *slog.Logger
	validator     *validator.Validator
	engine        QuestionEngine
	publisher     events.EventPublisher
	verifications rules.VerificationStore
}

func NewAttemptService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	v *validator.Validator,
	engine QuestionEngine,
	publisher events.EventPublisher,
	verifications rules.VerificationStore,
) AttemptService {
	return &attemptService{
		repo:          repo,
		db:            db,
		logger:        logger,
		validator:     v,
		engine:        engine,
		publisher:     publisher,
		verifications: verifications,
	}
}

// ===== LIFECYCLE =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, userID, clientIP string) (*AttemptResponse, error) {
	s.logger.Info("Starting attempt",
		"quiz_id", req.QuizID,
		"user_id", userID,
		"preview", req.Preview)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	quiz, err := s.repo.Quiz().GetByIDWithStructure(ctx, nil, req.QuizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	if req.Preview {
		canManage, err := canManageQuiz(ctx, s.repo, userID)
		if err != nil {
			return nil, err
		}
		if !canManage {
			return nil, NewPermissionError(userID, quiz.ID, "quiz", "preview", "only teachers may preview")
		}
	}

	chain, settings, err := s.ruleChain(ctx, quiz, userID, clientIP, time.Now())
	if err != nil {
		return nil, err
	}

	// Previews skip the access gate; a teacher checking their own quiz
	// is not bound by windows, attempt limits or passwords.
	if !req.Preview {
		if reasons := chain.PreventAccess(); len(reasons) > 0 {
			return nil, NewAccessDeniedError(userID, quiz.ID, reasons)
		}

		prior, err := s.repo.Attempt().GetByQuizAndUser(ctx, nil, quiz.ID, userID)
		if err != nil {
			return nil, err
		}
		real := realAttempts(prior)

		// A stale open attempt must expire, or block, before a new one
		// starts.
		if last := lastAttempt(real); last != nil && !last.State.IsFinal() {
			if err := s.expireInTransaction(ctx, last.ID, chain, settings); err != nil {
				return nil, err
			}
			refreshed, err := s.repo.Attempt().GetByID(ctx, nil, last.ID)
			if err != nil {
				return nil, err
			}
			if !refreshed.State.IsFinal() {
				return nil, ErrAttemptInProgress
			}
		}

		if reasons := chain.PreventNewAttempt(len(real), lastAttempt(real)); len(reasons) > 0 {
			return nil, NewAccessDeniedError(userID, quiz.ID, reasons)
		}

		if chain.IsPreflightCheckRequired(ctx) {
			if len(req.PreflightData) == 0 {
				return nil, ErrPreflightRequired
			}
			if err := chain.ValidatePreflight(ctx, req.PreflightData); err != nil {
				return nil, err
			}
			if err := chain.NotifyPreflightCheckPassed(ctx); err != nil {
				return nil, err
			}
		}
	}

	var attempt *models.Attempt
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Starting any attempt discards lingering previews for this user
		if err := s.repo.Attempt().DeletePreviews(ctx, tx, quiz.ID, userID); err != nil {
			return err
		}

		count, err := s.repo.Attempt().CountByQuizAndUser(ctx, tx, quiz.ID, userID)
		if err != nil {
			return err
		}

		slots := make([]*models.QuizSlot, 0, len(quiz.Slots))
		for i := range quiz.Slots {
			slots = append(slots, &quiz.Slots[i])
		}

		usage, err := s.engine.CreateUsage(ctx, tx, quiz, slots)
		if err != nil {
			return err
		}

		now := time.Now()
		attempt = &models.Attempt{
			QuizID:          quiz.ID,
			UserID:          userID,
			AttemptNumber:   count + 1,
			State:           models.AttemptInProgress,
			QuestionUsageID: usage.UniqueID,
			TimeStart:       now,
			TimeModified:    now,
			CurrentPage:     1,
			Preview:         req.Preview,
		}

		if end, ok := chain.EndTime(attempt); ok {
			attempt.TimeCheckState = &end
		}

		return s.repo.Attempt().Create(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	s.publishAttemptEvent(ctx, events.EventAttemptStarted, attempt)
	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"user_id", userID,
		"attempt_number", attempt.AttemptNumber)

	return s.toResponse(attempt, chain), nil
}

func (s *attemptService) SaveAttempt(ctx context.Context, attemptID uint, req *SaveAttemptRequest, userID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	chain, settings, err := s.ruleChain(ctx, &attempt.Quiz, userID, "", time.Now())
	if err != nil {
		return nil, err
	}

	var saved *models.Attempt
	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			return err
		}

		// Expiry runs before the save is considered, so responses
		// arriving after the grace window land on a closed attempt and
		// are rejected instead of stored
		if _, err := s.applyExpiry(ctx, tx, current, chain, settings); err != nil {
			return err
		}
		if current.State.IsFinal() {
			return NewAttemptStateError(current.ID, current.State, "save")
		}

		if !current.Preview {
			if reasons := chain.PreventAccess(); len(reasons) > 0 {
				return NewAccessDeniedError(userID, current.QuizID, reasons)
			}
		}

		usage, err := s.repo.Usage().GetByUniqueID(ctx, tx, current.QuestionUsageID)
		if err != nil {
			return fmt.Errorf("failed to load usage %s: %w", current.QuestionUsageID, err)
		}
		if err := s.engine.SaveResponses(ctx, tx, usage, req.Responses); err != nil {
			return err
		}

		current.TimeModified = time.Now()
		if err := s.repo.Attempt().Update(ctx, tx, current); err != nil {
			return err
		}
		saved = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt responses saved",
		"attempt_id", attemptID,
		"user_id", userID,
		"slots", len(req.Responses))

	return s.toResponse(saved, chain), nil
}

func (s *attemptService) SubmitAndFinish(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "user_id", userID)

	attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	chain, settings, err := s.ruleChain(ctx, &attempt.Quiz, userID, "", time.Now())
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		// A pending time-based transition lands before the submission is
		// considered. A submit arriving after the grace window abandons
		// here and gets the closed error below.
		if _, err := s.applyExpiry(ctx, tx, current, chain, settings); err != nil {
			return err
		}
		if current.State.IsFinal() {
			return NewAttemptStateError(current.ID, current.State, "submit")
		}

		// Explicit submission wins over the deadline: IN_PROGRESS and
		// OVERDUE both finish here while the attempt is still open.
		return s.finishAttempt(ctx, tx, current, settings, time.Now())
	})
	if err != nil {
		return nil, err
	}

	if err := chain.CurrentAttemptFinished(ctx); err != nil {
		s.logger.Warn("Failed to clear preflight state", "attempt_id", attemptID, "error", err)
	}

	finished, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}

	s.publishAttemptEvent(ctx, events.EventAttemptSubmitted, finished)
	s.publishGradeUpdate(ctx, finished.QuizID, userID, settings)

	s.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"user_id", userID,
		"sum_grades", finished.SumGrades)

	return s.toResponse(finished, chain), nil
}

func (s *attemptService) Abandon(ctx context.Context, attemptID uint, userID string) error {
	s.logger.Info("Abandoning attempt", "attempt_id", attemptID, "user_id", userID)

	attempt, err := s.repo.Attempt().GetByIDWithQuiz(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return err
	}

	if attempt.UserID != userID {
		canManage, err := canManageQuiz(ctx, s.repo, userID)
		if err != nil {
			return err
		}
		if !canManage {
			return NewPermissionError(userID, attemptID, "attempt", "abandon", "not owned by user")
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if current.State.IsFinal() {
			return NewAttemptStateError(current.ID, current.State, "abandon")
		}

		// Forced abandonment bypasses deadline logic entirely
		now := time.Now()
		current.State = models.AttemptAbandoned
		current.TimeFinish = &now
		current.TimeModified = now
		current.TimeCheckState = nil
		return s.repo.Attempt().Update(ctx, tx, current)
	})
	if err != nil {
		return err
	}

	if err := s.verifications.Clear(ctx, attempt.QuizID, attempt.UserID); err != nil {
		s.logger.Warn("Failed to clear preflight state", "attempt_id", attemptID, "error", err)
	}

	abandoned, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err == nil {
		s.publishAttemptEvent(ctx, events.EventAttemptStateChanged, abandoned)
	}

	return nil
}

// ===== ACCESS =====

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.loadVisibleAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	chain, settings, err := s.ruleChain(ctx, &attempt.Quiz, attempt.UserID, "", time.Now())
	if err != nil {
		return nil, err
	}

	// Time-based transitions are evaluated lazily on every read
	if !attempt.State.IsFinal() {
		if err := s.expireInTransaction(ctx, attempt.ID, chain, settings); err != nil {
			return nil, err
		}
		attempt, err = s.repo.Attempt().GetByIDWithQuiz(ctx, nil, attemptID)
		if err != nil {
			return nil, err
		}
	}

	return s.toResponse(attempt, chain), nil
}

func (s *attemptService) GetTimer(ctx context.Context, attemptID uint, userID string) (*TimerResponse, error) {
	attempt, err := s.loadVisibleAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	chain, _, err := s.ruleChain(ctx, &attempt.Quiz, attempt.UserID, "", time.Now())
	if err != nil {
		return nil, err
	}

	resp := &TimerResponse{
		AttemptID: attempt.ID,
		State:     attempt.State,
	}
	if attempt.State.IsFinal() {
		return resp, nil
	}

	if end, ok := chain.EndTime(attempt); ok {
		left := int64(time.Until(end).Seconds())
		if left < 0 {
			left = 0
		}
		resp.EndTime = &end
		resp.TimeLeft = &left
	}
	return resp, nil
}

func (s *attemptService) List(ctx context.Context, quizID uint, req *ListAttemptsRequest, userID string) (*AttemptListResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.Quiz().GetByID(ctx, nil, quizID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	canManage, err := canManageQuiz(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	filters := listFilters(req, userID, canManage)

	attempts, total, err := s.repo.Attempt().List(ctx, nil, quizID, filters)
	if err != nil {
		return nil, err
	}

	responses := make([]*AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		responses = append(responses, &AttemptResponse{
			Attempt:   a,
			CanSubmit: !a.State.IsFinal(),
			CanResume: a.State == models.AttemptInProgress,
		})
	}

	return &AttemptListResponse{
		Attempts: responses,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

func (s *attemptService) GetAccessInfo(ctx context.Context, quizID uint, userID, clientIP string) (*AccessInfoResponse, error) {
	quiz, err := s.repo.Quiz().GetByID(ctx, nil, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	chain, settings, err := s.ruleChain(ctx, quiz, userID, clientIP, time.Now())
	if err != nil {
		return nil, err
	}

	prior, err := s.repo.Attempt().GetByQuizAndUser(ctx, nil, quizID, userID)
	if err != nil {
		return nil, err
	}
	real := realAttempts(prior)
	last := lastAttempt(real)

	// Bring a stale open attempt up to date before reporting on it
	if last != nil && !last.State.IsFinal() {
		if err := s.expireInTransaction(ctx, last.ID, chain, settings); err != nil {
			return nil, err
		}
		last, err = s.repo.Attempt().GetByID(ctx, nil, last.ID)
		if err != nil {
			return nil, err
		}
	}

	resp := &AccessInfoResponse{
		QuizID:            quizID,
		RuleDescriptions:  chain.Descriptions(),
		PreventAccess:     chain.PreventAccess(),
		PreventNewAttempt: chain.PreventNewAttempt(len(real), last),
		IsFinished:        chain.IsFinished(len(real), last),
		PreflightRequired: chain.IsPreflightCheckRequired(ctx),
		NumAttempts:       len(real),
		MaxAttempts:       settings.MaxAttempts,
	}

	if settings.MaxAttempts > 0 {
		remaining := settings.MaxAttempts - len(real)
		if remaining < 0 {
			remaining = 0
		}
		resp.AttemptsRemaining = &remaining
	}
	if last != nil && !last.State.IsFinal() {
		id := last.ID
		resp.UnfinishedAttempt = &id
	}

	return resp, nil
}

func (s *attemptService) CheckPreflight(ctx context.Context, req *PreflightCheckRequest, userID, clientIP string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	quiz, err := s.repo.Quiz().GetByID(ctx, nil, req.QuizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuizNotFound
		}
		return err
	}

	chain, _, err := s.ruleChain(ctx, quiz, userID, clientIP, time.Now())
	if err != nil {
		return err
	}

	if !chain.IsPreflightCheckRequired(ctx) {
		return nil
	}
	if err := chain.ValidatePreflight(ctx, req.Data); err != nil {
		return err
	}
	return chain.NotifyPreflightCheckPassed(ctx)
}

// ===== NAVIGATION =====

func (s *attemptService) Navigate(ctx context.Context, attemptID uint, req *NavigateRequest, userID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	chain, settings, err := s.ruleChain(ctx, &attempt.Quiz, userID, "", time.Now())
	if err != nil {
		return nil, err
	}

	slots, err := s.repo.Slot().GetByQuiz(ctx, nil, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	lastPage := 0
	for _, slot := range slots {
		if slot.Page > lastPage {
			lastPage = slot.Page
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			return err
		}

		// Expiry runs before the navigation is considered, so a late
		// request cannot touch an attempt that should be closed
		if _, err := s.applyExpiry(ctx, tx, current, chain, settings); err != nil {
			return err
		}
		if current.State.IsFinal() {
			return NewAttemptStateError(current.ID, current.State, "navigate")
		}

		if reasons := chain.PreventAccess(); len(reasons) > 0 {
			return NewAccessDeniedError(userID, current.QuizID, reasons)
		}

		if req.Page > lastPage {
			return ErrPageNotFound
		}

		if settings.NavigationMethod == models.NavigationSequential {
			if req.Page != current.CurrentPage && req.Page != current.CurrentPage+1 {
				return ErrOutOfSequenceAccess
			}
		}

		current.CurrentPage = req.Page
		current.TimeModified = time.Now()
		return s.repo.Attempt().Update(ctx, tx, current)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(updated, chain), nil
}

// ===== BACKGROUND MAINTENANCE =====

// ProcessExpiredAttempts walks open attempts whose check time has
// passed and applies the pending transition. Safe to run repeatedly;
// attempts that already moved on are skipped.
func (s *attemptService) ProcessExpiredAttempts(ctx context.Context, limit int) (int, error) {
	now := time.Now()
	expired, err := s.repo.Attempt().GetExpired(ctx, nil, now, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, attempt := range expired {
		quiz, err := s.repo.Quiz().GetByID(ctx, nil, attempt.QuizID)
		if err != nil {
			s.logger.Error("Failed to load quiz for expired attempt",
				"attempt_id", attempt.ID, "quiz_id", attempt.QuizID, "error", err)
			continue
		}

		chain, settings, err := s.ruleChain(ctx, quiz, attempt.UserID, "", now)
		if err != nil {
			s.logger.Error("Failed to build rule chain for expired attempt",
				"attempt_id", attempt.ID, "error", err)
			continue
		}

		if err := s.expireInTransaction(ctx, attempt.ID, chain, settings); err != nil {
			s.logger.Error("Failed to expire attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}

		updated, err := s.repo.Attempt().GetByID(ctx, nil, attempt.ID)
		if err != nil {
			continue
		}
		if updated.State != attempt.State {
			s.publishAttemptEvent(ctx, events.EventAttemptStateChanged, updated)
			if updated.State == models.AttemptFinished {
				s.publishGradeUpdate(ctx, updated.QuizID, updated.UserID, settings)
			}
			processed++
		}
	}

	if processed > 0 {
		s.logger.Info("Processed expired attempts", "count", processed, "scanned", len(expired))
	}
	return processed, nil
}
