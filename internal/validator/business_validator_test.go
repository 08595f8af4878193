package validator

import (
	"strings"
	"testing"
	"time"
)

func ip(i int) *int { return &i }

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestValidateQuizTiming(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		timeOpen  *time.Time
		timeClose *time.Time
		timeLimit int
		wantField string
	}{
		{
			name:      "open before close is valid",
			timeOpen:  ts("2026-03-01T09:00:00Z"),
			timeClose: ts("2026-03-01T10:00:00Z"),
			timeLimit: 1800,
		},
		{
			name:      "close equal to open fails",
			timeOpen:  ts("2026-03-01T09:00:00Z"),
			timeClose: ts("2026-03-01T09:00:00Z"),
			wantField: "time_close",
		},
		{
			name:      "close before open fails",
			timeOpen:  ts("2026-03-01T10:00:00Z"),
			timeClose: ts("2026-03-01T09:00:00Z"),
			wantField: "time_close",
		},
		{
			name:      "negative time limit fails",
			timeLimit: -60,
			wantField: "time_limit",
		},
		{
			name:      "no bounds and zero limit is valid",
			timeLimit: 0,
		},
		{
			name:      "only open set is valid",
			timeOpen:  ts("2026-03-01T09:00:00Z"),
			timeLimit: 600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateQuizTiming(tt.timeOpen, tt.timeClose, tt.timeLimit)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if !errs.HasField(tt.wantField) {
				t.Fatalf("expected error on field %q, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidateOverride(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       OverrideCreateRequest
		wantField string
	}{
		{
			name: "single field override is valid",
			req:  OverrideCreateRequest{UserID: "u1", Attempts: ip(3)},
		},
		{
			name:      "empty override is rejected",
			req:       OverrideCreateRequest{UserID: "u1"},
			wantField: "override",
		},
		{
			name: "close before open is rejected",
			req: OverrideCreateRequest{
				UserID:    "u1",
				TimeOpen:  ts("2026-03-01T10:00:00Z"),
				TimeClose: ts("2026-03-01T09:00:00Z"),
			},
			wantField: "time_close",
		},
		{
			name: "negative time limit is rejected",
			req: OverrideCreateRequest{
				UserID:    "u1",
				TimeLimit: ip(-30),
			},
			wantField: "timelimit",
		},
		{
			name:      "missing user id is rejected",
			req:       OverrideCreateRequest{Password: strPtr("letmein")},
			wantField: "userid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateOverride(&tt.req)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if !errs.HasField(tt.wantField) {
				t.Fatalf("expected error on field %q, got %v", tt.wantField, errs)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

type quizSettingsProbe struct {
	Title           string `validate:"quiz_title"`
	GradingMethod   string `validate:"grading_method"`
	OverdueHandling string `validate:"overdue_handling"`
	Navigation      string `validate:"navigation_method"`
	GracePeriod     int    `validate:"grace_period"`
}

func validProbe() quizSettingsProbe {
	return quizSettingsProbe{
		Title:           "Midterm quiz",
		GradingMethod:   "highest",
		OverdueHandling: "graceperiod",
		Navigation:      "free",
		GracePeriod:     0,
	}
}

func TestDomainRules(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		mutate    func(*quizSettingsProbe)
		wantField string
	}{
		{
			name:   "valid settings pass",
			mutate: func(p *quizSettingsProbe) {},
		},
		{
			name:      "blank title fails",
			mutate:    func(p *quizSettingsProbe) { p.Title = "   " },
			wantField: "title",
		},
		{
			name:      "overlong title fails",
			mutate:    func(p *quizSettingsProbe) { p.Title = strings.Repeat("x", 256) },
			wantField: "title",
		},
		{
			name:      "unknown grading method fails",
			mutate:    func(p *quizSettingsProbe) { p.GradingMethod = "median" },
			wantField: "gradingmethod",
		},
		{
			name:      "unknown overdue handling fails",
			mutate:    func(p *quizSettingsProbe) { p.OverdueHandling = "panic" },
			wantField: "overduehandling",
		},
		{
			name:      "unknown navigation method fails",
			mutate:    func(p *quizSettingsProbe) { p.Navigation = "random" },
			wantField: "navigation",
		},
		{
			name:      "grace period below a minute fails",
			mutate:    func(p *quizSettingsProbe) { p.GracePeriod = 30 },
			wantField: "graceperiod",
		},
		{
			name:   "grace period of a minute passes",
			mutate: func(p *quizSettingsProbe) { p.GracePeriod = 60 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := validProbe()
			tt.mutate(&probe)

			err := v.Validate(probe)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			errs, ok := err.(ValidationErrors)
			if !ok {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if !errs.HasField(tt.wantField) {
				t.Fatalf("expected error on field %q, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestFutureDateRule(t *testing.T) {
	v := New()

	type probe struct {
		Deadline *time.Time `validate:"omitempty,future_date"`
	}

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	if err := v.Validate(probe{}); err != nil {
		t.Fatalf("nil pointer should pass: %v", err)
	}
	if err := v.Validate(probe{Deadline: &future}); err != nil {
		t.Fatalf("future date should pass: %v", err)
	}
	if err := v.Validate(probe{Deadline: &past}); err == nil {
		t.Fatal("past date should fail")
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	single := ValidationErrors{{Field: "page", Message: "must be at least 1"}}
	if got := single.Error(); got != "page: must be at least 1" {
		t.Fatalf("unexpected message: %q", got)
	}

	multi := ValidationErrors{
		{Field: "page", Message: "must be at least 1"},
		{Field: "quiz_id", Message: "is required"},
	}
	msg := multi.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "quiz_id: is required") {
		t.Fatalf("unexpected message: %q", msg)
	}

	if multi.HasField("missing") {
		t.Fatal("HasField should be false for unknown field")
	}
}

func TestValidateRequestDTOs(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		input     interface{}
		wantField string
	}{
		{
			name:  "valid start request",
			input: StartAttemptRequest{QuizID: 7},
		},
		{
			name:      "start request needs quiz id",
			input:     StartAttemptRequest{},
			wantField: "quizid",
		},
		{
			name:      "navigate page must be positive",
			input:     NavigateRequest{Page: 0},
			wantField: "page",
		},
		{
			name:      "list limit capped at 200",
			input:     ListAttemptsRequest{Limit: 500},
			wantField: "limit",
		},
		{
			name:      "list state must be known",
			input:     ListAttemptsRequest{State: "paused"},
			wantField: "state",
		},
		{
			name:  "move slot to front is allowed",
			input: MoveSlotRequest{AfterSlotNumber: 0, Page: 1},
		},
		{
			name:      "move slot needs a page",
			input:     MoveSlotRequest{AfterSlotNumber: 2},
			wantField: "page",
		},
		{
			name:      "section heading cannot start on page one",
			input:     AddSectionRequest{Page: 1},
			wantField: "page",
		},
		{
			name:      "negative max mark rejected",
			input:     SetSlotMaxMarkRequest{MaxMark: -1},
			wantField: "maxmark",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			errs, ok := err.(ValidationErrors)
			if !ok {
				t.Fatalf("expected ValidationErrors, got %T (%v)", err, err)
			}
			if !errs.HasField(tt.wantField) {
				t.Fatalf("expected error on field %q, got %v", tt.wantField, errs)
			}
		})
	}
}
