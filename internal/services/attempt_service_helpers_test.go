package services

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

func gracePeriodSettings(grace int, handling models.OverdueHandling) models.EffectiveSettings {
	return models.EffectiveSettings{
		Quiz: models.Quiz{
			ID:              1,
			TimeLimit:       1800,
			GracePeriod:     grace,
			OverdueHandling: handling,
		},
	}
}

func TestEvaluateTiming_GracePeriodLifecycle(t *testing.T) {
	// timelimit 1800s, grace 600s, attempt starts at t=0:
	// before 1800 the attempt runs; from 1800 it goes overdue with
	// check state 2400; from 2400 it is abandoned.
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(1800 * time.Second)
	graceEnd := start.Add(2400 * time.Second)
	settings := gracePeriodSettings(600, models.OverdueGracePeriod)

	tests := []struct {
		name      string
		state     models.AttemptState
		now       time.Time
		want      timingAction
		wantCheck *time.Time
	}{
		{name: "running", state: models.AttemptInProgress, now: start.Add(time.Minute), want: timingSetCheckState, wantCheck: &deadline},
		{name: "deadline passed", state: models.AttemptInProgress, now: deadline.Add(time.Second), want: timingOverdue, wantCheck: &graceEnd},
		{name: "overdue inside grace", state: models.AttemptOverdue, now: deadline.Add(time.Minute), want: timingSetCheckState, wantCheck: &graceEnd},
		{name: "grace elapsed from inprogress", state: models.AttemptInProgress, now: graceEnd, want: timingAbandon},
		{name: "grace elapsed from overdue", state: models.AttemptOverdue, now: graceEnd.Add(time.Second), want: timingAbandon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := &models.Attempt{State: tt.state, TimeStart: start}
			action, check := evaluateTiming(settings, attempt, deadline, true, tt.now)
			if action != tt.want {
				t.Fatalf("evaluateTiming() action = %v, want %v", action, tt.want)
			}
			switch {
			case tt.wantCheck == nil && check != nil:
				t.Errorf("check state = %v, want nil", check)
			case tt.wantCheck != nil && (check == nil || !check.Equal(*tt.wantCheck)):
				t.Errorf("check state = %v, want %v", check, tt.wantCheck)
			}
		})
	}
}

func TestEvaluateTiming_OverdueHandlingModes(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(1800 * time.Second)
	past := deadline.Add(time.Second)

	tests := []struct {
		name     string
		handling models.OverdueHandling
		want     timingAction
	}{
		{name: "autosubmit finishes", handling: models.OverdueAutoSubmit, want: timingFinish},
		{name: "autoabandon abandons", handling: models.OverdueAutoAbandon, want: timingAbandon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt := &models.Attempt{State: models.AttemptInProgress, TimeStart: start}
			action, _ := evaluateTiming(gracePeriodSettings(0, tt.handling), attempt, deadline, true, past)
			if action != tt.want {
				t.Errorf("evaluateTiming() action = %v, want %v", action, tt.want)
			}
		})
	}
}

func TestEvaluateTiming_AutosubmitBackdatesFinish(t *testing.T) {
	// The sweep may run long after the deadline; the finish timestamp
	// must still be the deadline, not the sweep time.
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(1800 * time.Second)
	late := deadline.Add(3 * time.Hour)

	attempt := &models.Attempt{State: models.AttemptInProgress, TimeStart: start}
	action, finishedAt := evaluateTiming(gracePeriodSettings(0, models.OverdueAutoSubmit), attempt, deadline, true, late)
	if action != timingFinish {
		t.Fatalf("evaluateTiming() action = %v, want timingFinish", action)
	}
	if finishedAt == nil || !finishedAt.Equal(deadline) {
		t.Errorf("finish timestamp = %v, want %v", finishedAt, deadline)
	}
}

func TestLateSubmissionRejectedAfterExpiry(t *testing.T) {
	// A submit arriving after the grace window first lands the pending
	// abandon transition; the now-final attempt then rejects the
	// submission with a state error.
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(1800 * time.Second)
	graceEnd := start.Add(2400 * time.Second)
	settings := gracePeriodSettings(600, models.OverdueGracePeriod)

	attempt := &models.Attempt{
		ID:             7,
		State:          models.AttemptOverdue,
		TimeStart:      start,
		TimeCheckState: &graceEnd,
	}

	submitTime := graceEnd.Add(2 * time.Hour)
	action, _ := evaluateTiming(settings, attempt, deadline, true, submitTime)
	if action != timingAbandon {
		t.Fatalf("evaluateTiming() action = %v, want timingAbandon", action)
	}

	attempt.State = models.AttemptAbandoned
	attempt.TimeFinish = &submitTime
	attempt.TimeCheckState = nil

	if !attempt.State.IsFinal() {
		t.Fatal("abandoned attempt must be final")
	}
	err := NewAttemptStateError(attempt.ID, attempt.State, "submit")
	if err.Error() != "attempt 7 is abandoned, cannot submit" {
		t.Errorf("unexpected state error: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		req         ListAttemptsRequest
		userID      string
		canManage   bool
		wantState   *models.AttemptState
		wantUserID  *string
		wantPreview bool
	}{
		{
			name:        "empty state and user stay unset for managers",
			req:         ListAttemptsRequest{IncludePreviews: true},
			userID:      "teacher-1",
			canManage:   true,
			wantPreview: true,
		},
		{
			name:       "explicit state and user are passed through",
			req:        ListAttemptsRequest{State: "finished", UserID: "u2", DateFrom: &from},
			userID:     "teacher-1",
			canManage:  true,
			wantState:  statePtr(models.AttemptFinished),
			wantUserID: strp("u2"),
		},
		{
			name:        "students are pinned to their own attempts",
			req:         ListAttemptsRequest{UserID: "u2", IncludePreviews: true},
			userID:      "u1",
			canManage:   false,
			wantUserID:  strp("u1"),
			wantPreview: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := listFilters(&tt.req, tt.userID, tt.canManage)

			switch {
			case tt.wantState == nil && got.State != nil:
				t.Errorf("State = %v, want nil", *got.State)
			case tt.wantState != nil && (got.State == nil || *got.State != *tt.wantState):
				t.Errorf("State = %v, want %v", got.State, *tt.wantState)
			}
			switch {
			case tt.wantUserID == nil && got.UserID != nil:
				t.Errorf("UserID = %v, want nil", *got.UserID)
			case tt.wantUserID != nil && (got.UserID == nil || *got.UserID != *tt.wantUserID):
				t.Errorf("UserID = %v, want %v", got.UserID, *tt.wantUserID)
			}
			if got.IncludePreviews != tt.wantPreview {
				t.Errorf("IncludePreviews = %v, want %v", got.IncludePreviews, tt.wantPreview)
			}
		})
	}
}

func statePtr(s models.AttemptState) *models.AttemptState { return &s }
func strp(s string) *string                               { return &s }

func TestEvaluateTiming_Idempotent(t *testing.T) {
	// Once the pending transition has been applied, evaluating again
	// with the same clock must be a no-op.
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(1800 * time.Second)
	settings := gracePeriodSettings(600, models.OverdueGracePeriod)
	now := deadline.Add(time.Minute)

	attempt := &models.Attempt{State: models.AttemptInProgress, TimeStart: start}
	action, check := evaluateTiming(settings, attempt, deadline, true, now)
	if action != timingOverdue {
		t.Fatalf("first evaluation action = %v, want timingOverdue", action)
	}

	attempt.State = models.AttemptOverdue
	attempt.TimeCheckState = check
	if again, _ := evaluateTiming(settings, attempt, deadline, true, now); again != timingNone {
		t.Errorf("second evaluation action = %v, want timingNone", again)
	}
}

func TestEvaluateTiming_FinalStatesUntouched(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	deadline := start.Add(time.Hour)

	for _, state := range []models.AttemptState{models.AttemptFinished, models.AttemptAbandoned} {
		attempt := &models.Attempt{State: state, TimeStart: start}
		if action, _ := evaluateTiming(gracePeriodSettings(0, models.OverdueAutoSubmit), attempt, deadline, true, deadline.Add(time.Hour)); action != timingNone {
			t.Errorf("state %s: action = %v, want timingNone", state, action)
		}
	}
}

func TestEvaluateTiming_NoDeadlineClearsCheckState(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stale := start.Add(time.Hour)
	attempt := &models.Attempt{
		State:          models.AttemptInProgress,
		TimeStart:      start,
		TimeCheckState: &stale,
	}
	action, check := evaluateTiming(gracePeriodSettings(0, models.OverdueAutoSubmit), attempt, time.Time{}, false, start)
	if action != timingSetCheckState || check != nil {
		t.Errorf("evaluateTiming() = (%v, %v), want (timingSetCheckState, nil)", action, check)
	}
}

func f(v float64) *float64 { return &v }

func TestSumGrades(t *testing.T) {
	usage := &models.QuestionUsage{
		Slots: []models.UsageSlot{
			{Slot: 1, MaxMark: 2, Fraction: f(0.5)},
			{Slot: 2, MaxMark: 3, Fraction: f(1)},
			{Slot: 3, MaxMark: 5, Fraction: nil},
		},
	}
	if got := sumGrades(usage); got != 4 {
		t.Errorf("sumGrades() = %v, want 4", got)
	}
}

func TestOverallGrade(t *testing.T) {
	attempts := []*models.Attempt{
		{AttemptNumber: 1, SumGrades: f(6)},
		{AttemptNumber: 2, SumGrades: f(8)},
		{AttemptNumber: 3, SumGrades: f(8)},
		{AttemptNumber: 4, SumGrades: f(4)},
	}

	tests := []struct {
		name   string
		method models.GradingMethod
		want   float64
	}{
		{name: "first", method: models.GradeFirst, want: 6},
		{name: "last", method: models.GradeLast, want: 4},
		{name: "average", method: models.GradeAverage, want: 6.5},
		{name: "highest", method: models.GradeHighest, want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overallGrade(tt.method, attempts)
			if got == nil || *got != tt.want {
				t.Errorf("overallGrade(%s) = %v, want %v", tt.method, got, tt.want)
			}
		})
	}

	t.Run("previews and ungraded attempts are ignored", func(t *testing.T) {
		mixed := []*models.Attempt{
			{AttemptNumber: 1, SumGrades: f(9), Preview: true},
			{AttemptNumber: 2, SumGrades: nil},
			{AttemptNumber: 3, SumGrades: f(5)},
		}
		got := overallGrade(models.GradeHighest, mixed)
		if got == nil || *got != 5 {
			t.Errorf("overallGrade() = %v, want 5", got)
		}
	})

	t.Run("nothing gradable", func(t *testing.T) {
		if got := overallGrade(models.GradeHighest, []*models.Attempt{{Preview: true, SumGrades: f(1)}}); got != nil {
			t.Errorf("overallGrade() = %v, want nil", got)
		}
	})
}

func TestScaleGrade(t *testing.T) {
	settings := models.EffectiveSettings{Quiz: models.Quiz{SumGrades: 20, MaxGrade: 10}}
	if got := scaleGrade(15, settings); got != 7.5 {
		t.Errorf("scaleGrade(15) = %v, want 7.5", got)
	}
	empty := models.EffectiveSettings{Quiz: models.Quiz{SumGrades: 0, MaxGrade: 10}}
	if got := scaleGrade(15, empty); got != 0 {
		t.Errorf("scaleGrade() with zero total = %v, want 0", got)
	}
}

func TestRealAttemptsAndLastAttempt(t *testing.T) {
	attempts := []*models.Attempt{
		{AttemptNumber: 1},
		{AttemptNumber: 2, Preview: true},
		{AttemptNumber: 3},
	}
	real := realAttempts(attempts)
	if len(real) != 2 {
		t.Fatalf("realAttempts() kept %d attempts, want 2", len(real))
	}
	if last := lastAttempt(real); last == nil || last.AttemptNumber != 3 {
		t.Errorf("lastAttempt() = %v, want attempt 3", last)
	}
	if lastAttempt(nil) != nil {
		t.Error("lastAttempt(nil) should be nil")
	}
}
