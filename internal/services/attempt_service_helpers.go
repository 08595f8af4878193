package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/events"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-attempt-service/internal/rules"
	"gorm.io/gorm"
)

// ===== RULE CHAIN CONSTRUCTION =====

// ruleChain builds the access rule chain for one (quiz, user) pair.
// The user's override is folded into the settings first, so every
// rule sees the effective values.
func (s *attemptService) ruleChain(ctx context.Context, quiz *models.Quiz, userID, clientIP string, now time.Time) (*rules.Chain, models.EffectiveSettings, error) {
	override, err := s.repo.Override().GetByQuizAndUser(ctx, nil, quiz.ID, userID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, models.EffectiveSettings{}, fmt.Errorf("failed to load override: %w", err)
	}
	settings := quiz.ApplyOverride(override)

	canIgnore := false
	user, err := s.repo.User().GetByID(ctx, userID)
	if err == nil {
		canIgnore = user.CanIgnoreTimeLimits()
	} else if !repositories.IsNotFoundError(err) {
		return nil, models.EffectiveSettings{}, fmt.Errorf("failed to load user: %w", err)
	}

	chain := rules.NewChain(rules.RuleContext{
		Settings:            settings,
		UserID:              userID,
		Now:                 now,
		CanIgnoreTimeLimits: canIgnore,
		ClientIP:            clientIP,
		Verifications:       s.verifications,
	})
	return chain, settings, nil
}

// ===== ATTEMPT LOADING =====

// loadOwnedAttempt fetches an attempt the user must own.
func (s *attemptService) loadOwnedAttempt(ctx context.Context, attemptID uint, userID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithQuiz(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "access", "not owned by user")
	}
	return attempt, nil
}

// loadVisibleAttempt fetches an attempt the user may read: their own,
// or any attempt when they manage quizzes.
func (s *attemptService) loadVisibleAttempt(ctx context.Context, attemptID uint, userID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithQuiz(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.UserID != userID {
		canManage, err := canManageQuiz(ctx, s.repo, userID)
		if err != nil {
			return nil, err
		}
		if !canManage {
			return nil, NewPermissionError(userID, attemptID, "attempt", "read", "not owned by user")
		}
	}
	return attempt, nil
}

func realAttempts(attempts []*models.Attempt) []*models.Attempt {
	real := make([]*models.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if !a.Preview {
			real = append(real, a)
		}
	}
	return real
}

func lastAttempt(attempts []*models.Attempt) *models.Attempt {
	if len(attempts) == 0 {
		return nil
	}
	return attempts[len(attempts)-1]
}

// ===== TIME-BASED TRANSITIONS =====

type timingAction int

const (
	timingNone timingAction = iota
	timingSetCheckState
	timingFinish
	timingOverdue
	timingAbandon
)

// evaluateTiming decides the next lifecycle step for an unfinished
// attempt, given the deadline the rule chain imposes. The returned
// time is the new check state, or the finish timestamp for
// timingFinish. It is pure so the same inputs always yield the same
// step, which makes redundant expiry checks harmless.
func evaluateTiming(settings models.EffectiveSettings, attempt *models.Attempt, deadline time.Time, hasDeadline bool, now time.Time) (timingAction, *time.Time) {
	if attempt.State.IsFinal() {
		return timingNone, nil
	}

	if !hasDeadline {
		if attempt.TimeCheckState != nil {
			return timingSetCheckState, nil
		}
		return timingNone, nil
	}

	graceEnd := deadline.Add(time.Duration(settings.GracePeriod) * time.Second)

	switch attempt.State {
	case models.AttemptInProgress:
		if now.Before(deadline) {
			if attempt.TimeCheckState == nil || !attempt.TimeCheckState.Equal(deadline) {
				return timingSetCheckState, &deadline
			}
			return timingNone, nil
		}
		switch settings.OverdueHandling {
		case models.OverdueAutoSubmit:
			// The finish is backdated to the deadline so a late sweep
			// does not inflate the recorded duration.
			return timingFinish, &deadline
		case models.OverdueGracePeriod:
			if !now.Before(graceEnd) {
				return timingAbandon, nil
			}
			return timingOverdue, &graceEnd
		default: // autoabandon
			return timingAbandon, nil
		}

	case models.AttemptOverdue:
		if !now.Before(graceEnd) {
			return timingAbandon, nil
		}
		if attempt.TimeCheckState == nil || !attempt.TimeCheckState.Equal(graceEnd) {
			return timingSetCheckState, &graceEnd
		}
		return timingNone, nil
	}

	return timingNone, nil
}

// listFilters converts a list request into repository filters. Users
// without manage rights are pinned to their own non-preview attempts
// regardless of what the request asked for.
func listFilters(req *ListAttemptsRequest, userID string, canManage bool) repositories.AttemptFilters {
	filters := repositories.AttemptFilters{
		StateGroup:      repositories.AttemptStateGroup(req.StateGroup),
		IncludePreviews: req.IncludePreviews,
		DateFrom:        req.DateFrom,
		DateTo:          req.DateTo,
		Limit:           req.Limit,
		Offset:          req.Offset,
		SortBy:          req.SortBy,
		SortOrder:       req.SortOrder,
	}
	if req.State != "" {
		state := models.AttemptState(req.State)
		filters.State = &state
	}
	if req.UserID != "" {
		requested := req.UserID
		filters.UserID = &requested
	}
	if !canManage {
		own := userID
		filters.UserID = &own
		filters.IncludePreviews = false
	}
	return filters
}

// applyExpiry evaluates and applies any pending time-based transition
// on the attempt, mutating it in place. Returns whether anything
// changed.
func (s *attemptService) applyExpiry(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, chain *rules.Chain, settings models.EffectiveSettings) (bool, error) {
	now := time.Now()
	deadline, hasDeadline := chain.EndTime(attempt)

	action, checkState := evaluateTiming(settings, attempt, deadline, hasDeadline, now)
	switch action {
	case timingNone:
		return false, nil

	case timingSetCheckState:
		attempt.TimeCheckState = checkState
		return true, s.repo.Attempt().Update(ctx, tx, attempt)

	case timingFinish:
		return true, s.finishAttempt(ctx, tx, attempt, settings, *checkState)

	case timingOverdue:
		attempt.State = models.AttemptOverdue
		attempt.TimeCheckState = checkState
		attempt.TimeModified = now
		return true, s.repo.Attempt().Update(ctx, tx, attempt)

	case timingAbandon:
		attempt.State = models.AttemptAbandoned
		attempt.TimeFinish = &now
		attempt.TimeModified = now
		attempt.TimeCheckState = nil
		return true, s.repo.Attempt().Update(ctx, tx, attempt)
	}

	return false, nil
}

// expireInTransaction re-reads the attempt inside its own transaction
// and applies any pending expiry there, serializing against other
// lifecycle mutations of the same attempt.
func (s *attemptService) expireInTransaction(ctx context.Context, attemptID uint, chain *rules.Chain, settings models.EffectiveSettings) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.Attempt().GetByID(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		_, err = s.applyExpiry(ctx, tx, current, chain, settings)
		return err
	})
}

// ===== GRADING =====

// finishAttempt grades the usage, totals the marks and moves the
// attempt to finished. finishedAt is the submission time, or the
// deadline when the transition is an autosubmit. Runs inside the
// caller's transaction.
func (s *attemptService) finishAttempt(ctx context.Context, tx *gorm.DB, attempt *models.Attempt, settings models.EffectiveSettings, finishedAt time.Time) error {
	usage, err := s.repo.Usage().GetByUniqueID(ctx, tx, attempt.QuestionUsageID)
	if err != nil {
		return fmt.Errorf("failed to load usage %s: %w", attempt.QuestionUsageID, err)
	}

	if err := s.engine.FinishGrading(ctx, tx, usage); err != nil {
		return err
	}

	sum := sumGrades(usage)
	attempt.State = models.AttemptFinished
	attempt.TimeFinish = &finishedAt
	attempt.TimeModified = time.Now()
	attempt.TimeCheckState = nil
	attempt.SumGrades = &sum

	return s.repo.Attempt().Update(ctx, tx, attempt)
}

// sumGrades totals fraction * max mark across a usage's slots.
func sumGrades(usage *models.QuestionUsage) float64 {
	total := 0.0
	for _, slot := range usage.Slots {
		if slot.Fraction != nil {
			total += *slot.Fraction * slot.MaxMark
		}
	}
	return total
}

// overallGrade reduces a user's finished attempts to a single raw
// grade according to the quiz grading method. Attempts without a
// grade are ignored; nil means no gradable attempt exists.
func overallGrade(method models.GradingMethod, attempts []*models.Attempt) *float64 {
	var graded []*models.Attempt
	for _, a := range attempts {
		if a.SumGrades != nil && !a.Preview {
			graded = append(graded, a)
		}
	}
	if len(graded) == 0 {
		return nil
	}

	var grade float64
	switch method {
	case models.GradeFirst:
		grade = *graded[0].SumGrades
	case models.GradeLast:
		grade = *graded[len(graded)-1].SumGrades
	case models.GradeAverage:
		sum := 0.0
		for _, a := range graded {
			sum += *a.SumGrades
		}
		grade = sum / float64(len(graded))
	default: // highest; a later equal attempt wins the tie
		grade = *graded[0].SumGrades
		for _, a := range graded[1:] {
			if *a.SumGrades >= grade {
				grade = *a.SumGrades
			}
		}
	}
	return &grade
}

// scaleGrade converts a raw sum of marks to the quiz's grade scale.
func scaleGrade(sum float64, settings models.EffectiveSettings) float64 {
	if settings.SumGrades <= 0 {
		return 0
	}
	return sum / settings.SumGrades * settings.MaxGrade
}

// publishGradeUpdate recomputes the user's final quiz grade and pushes
// it to the grade book topic. Called after the owning transaction has
// committed; failures are logged, not propagated.
func (s *attemptService) publishGradeUpdate(ctx context.Context, quizID uint, userID string, settings models.EffectiveSettings) {
	finished, err := s.repo.Attempt().GetFinishedByQuizAndUser(ctx, nil, quizID, userID)
	if err != nil {
		s.logger.Error("Failed to load finished attempts for grade update",
			"quiz_id", quizID, "user_id", userID, "error", err)
		return
	}

	raw := overallGrade(settings.GradingMethod, finished)
	if raw == nil {
		return
	}
	grade := scaleGrade(*raw, settings)

	event, err := events.NewEvent(events.EventGradeUpdated, events.GradeUpdatedPayload{
		QuizID: quizID,
		UserID: userID,
		Grade:  grade,
	})
	if err != nil {
		s.logger.Error("Failed to build grade event", "quiz_id", quizID, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish grade event",
			"quiz_id", quizID, "user_id", userID, "error", err)
	}
}

// ===== EVENTS / RESPONSES =====

func (s *attemptService) publishAttemptEvent(ctx context.Context, eventType string, attempt *models.Attempt) {
	event, err := events.NewEvent(eventType, events.AttemptEventPayload{
		AttemptID:     attempt.ID,
		QuizID:        attempt.QuizID,
		UserID:        attempt.UserID,
		AttemptNumber: attempt.AttemptNumber,
		State:         string(attempt.State),
		SumGrades:     attempt.SumGrades,
	})
	if err != nil {
		s.logger.Error("Failed to build attempt event", "attempt_id", attempt.ID, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt event",
			"attempt_id", attempt.ID, "type", eventType, "error", err)
	}
}

func (s *attemptService) toResponse(attempt *models.Attempt, chain *rules.Chain) *AttemptResponse {
	resp := &AttemptResponse{
		Attempt:   attempt,
		CanSubmit: !attempt.State.IsFinal(),
		CanResume: attempt.State == models.AttemptInProgress,
	}

	if !attempt.State.IsFinal() {
		if end, ok := chain.EndTime(attempt); ok {
			left := int64(time.Until(end).Seconds())
			if left < 0 {
				left = 0
			}
			resp.EndTime = &end
			resp.TimeLeft = &left
		}
	}
	return resp
}
