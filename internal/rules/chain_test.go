package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

func settingsWith(mutate func(*models.EffectiveSettings)) models.EffectiveSettings {
	s := models.EffectiveSettings{
		Quiz: models.Quiz{
			ID:              1,
			Title:           "Weekly check",
			OverdueHandling: models.OverdueAutoSubmit,
			GradingMethod:   models.GradeHighest,
			MaxGrade:        10,
		},
	}
	if mutate != nil {
		mutate(&s)
	}
	return s
}

func TestChain_PreventNewAttempt_AttemptCount(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		maxAttempts int
		prev        int
		blocked     bool
	}{
		{name: "unlimited never blocks", maxAttempts: 0, prev: 50, blocked: false},
		{name: "below limit", maxAttempts: 2, prev: 1, blocked: false},
		{name: "at limit", maxAttempts: 2, prev: 2, blocked: true},
		{name: "above limit", maxAttempts: 2, prev: 3, blocked: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewChain(RuleContext{
				Settings: settingsWith(func(s *models.EffectiveSettings) {
					s.MaxAttempts = tt.maxAttempts
				}),
				UserID: "u1",
				Now:    now,
			})
			reasons := chain.PreventNewAttempt(tt.prev, nil)
			if got := len(reasons) > 0; got != tt.blocked {
				t.Fatalf("PreventNewAttempt() blocked = %v, want %v (reasons %v)", got, tt.blocked, reasons)
			}
			if finished := chain.IsFinished(tt.prev, nil); finished != tt.blocked {
				t.Errorf("IsFinished() = %v, want %v", finished, tt.blocked)
			}
		})
	}
}

func TestChain_PreventNewAttempt_FirstObjectionWins(t *testing.T) {
	// Attempt count and password both apply; the cheap count check
	// must object before the password prompt would.
	chain := NewChain(RuleContext{
		Settings: settingsWith(func(s *models.EffectiveSettings) {
			s.MaxAttempts = 1
			s.Password = "X7k9aa"
		}),
		UserID:        "u1",
		Now:           time.Now(),
		Verifications: NewMemoryVerificationStore(),
	})

	reasons := chain.PreventNewAttempt(1, nil)
	if len(reasons) != 1 {
		t.Fatalf("expected exactly one reason, got %v", reasons)
	}
	if !strings.Contains(reasons[0], "limit is 1") {
		t.Errorf("expected the attempt-count reason first, got %q", reasons[0])
	}
}

func TestChain_EndTime_LaterOfLimitAndClose(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempt := &models.Attempt{TimeStart: start, State: models.AttemptInProgress}

	tests := []struct {
		name      string
		timeLimit int
		closeIn   time.Duration
		want      time.Time
	}{
		{name: "close after limit wins", timeLimit: 1800, closeIn: time.Hour, want: start.Add(time.Hour)},
		{name: "limit after close wins", timeLimit: 7200, closeIn: time.Hour, want: start.Add(2 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closeAt := start.Add(tt.closeIn)
			chain := NewChain(RuleContext{
				Settings: settingsWith(func(s *models.EffectiveSettings) {
					s.TimeLimit = tt.timeLimit
					s.TimeClose = &closeAt
				}),
				UserID: "u1",
				Now:    start,
			})
			end, ok := chain.EndTime(attempt)
			if !ok {
				t.Fatal("EndTime() ok = false, want an end time")
			}
			if !end.Equal(tt.want) {
				t.Errorf("EndTime() = %v, want %v", end, tt.want)
			}
		})
	}
}

func TestChain_EndTime_NoBounds(t *testing.T) {
	chain := NewChain(RuleContext{
		Settings: settingsWith(nil),
		UserID:   "u1",
		Now:      time.Now(),
	})
	if _, ok := chain.EndTime(&models.Attempt{TimeStart: time.Now()}); ok {
		t.Error("EndTime() imposed a bound with no time limit and no close date")
	}
}

func TestChain_EndTime_IgnoreTimeLimits(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	chain := NewChain(RuleContext{
		Settings: settingsWith(func(s *models.EffectiveSettings) {
			s.TimeLimit = 1800
		}),
		UserID:              "u1",
		Now:                 start,
		CanIgnoreTimeLimits: true,
	})
	if _, ok := chain.EndTime(&models.Attempt{TimeStart: start}); ok {
		t.Error("time limit applied to a user who may ignore time limits")
	}
}

func TestChain_OpenClose(t *testing.T) {
	open := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	closeAt := open.Add(2 * time.Hour)

	tests := []struct {
		name     string
		now      time.Time
		blocked  bool
		finished bool
	}{
		{name: "before open", now: open.Add(-time.Minute), blocked: true},
		{name: "inside window", now: open.Add(time.Hour), blocked: false},
		{name: "after close", now: closeAt.Add(time.Minute), blocked: true, finished: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewChain(RuleContext{
				Settings: settingsWith(func(s *models.EffectiveSettings) {
					s.TimeOpen = &open
					s.TimeClose = &closeAt
				}),
				UserID: "u1",
				Now:    tt.now,
			})
			if got := len(chain.PreventAccess()) > 0; got != tt.blocked {
				t.Errorf("PreventAccess() blocked = %v, want %v", got, tt.blocked)
			}
			if got := chain.IsFinished(0, nil); got != tt.finished {
				t.Errorf("IsFinished() = %v, want %v", got, tt.finished)
			}
		})
	}
}

func TestChain_DelayBetweenAttempts(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	finishedAt := now.Add(-30 * time.Second)
	last := &models.Attempt{
		State:      models.AttemptFinished,
		TimeFinish: &finishedAt,
	}

	chain := NewChain(RuleContext{
		Settings: settingsWith(func(s *models.EffectiveSettings) {
			s.DelayAttempt1 = 60
		}),
		UserID: "u1",
		Now:    now,
	})

	if reasons := chain.PreventNewAttempt(1, last); len(reasons) == 0 {
		t.Error("expected a delay objection 30s after the first attempt finished")
	}

	laterChain := NewChain(RuleContext{
		Settings: settingsWith(func(s *models.EffectiveSettings) {
			s.DelayAttempt1 = 60
		}),
		UserID: "u1",
		Now:    now.Add(time.Minute),
	})
	if reasons := laterChain.PreventNewAttempt(1, last); len(reasons) != 0 {
		t.Errorf("delay still objects after it elapsed: %v", reasons)
	}
}

func TestChain_PasswordPreflight(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVerificationStore()
	rc := RuleContext{
		Settings: settingsWith(func(s *models.EffectiveSettings) {
			s.Password = "X7k9rQ2m"
			s.ExtraPasswords = []string{"override-pass"}
		}),
		UserID:        "u1",
		Now:           time.Now(),
		Verifications: store,
	}

	chain := NewChain(rc)

	if !chain.IsPreflightCheckRequired(ctx) {
		t.Fatal("password quiz must require a preflight check before first access")
	}

	t.Run("wrong password", func(t *testing.T) {
		err := chain.ValidatePreflight(ctx, map[string]string{PreflightPasswordField: "nope"})
		var pf *PreflightError
		if !errors.As(err, &pf) {
			t.Fatalf("expected a PreflightError, got %v", err)
		}
		if pf.Field != PreflightPasswordField {
			t.Errorf("error field = %q, want %q", pf.Field, PreflightPasswordField)
		}
	})

	t.Run("override password accepted", func(t *testing.T) {
		if err := chain.ValidatePreflight(ctx, map[string]string{PreflightPasswordField: "override-pass"}); err != nil {
			t.Fatalf("override password rejected: %v", err)
		}
	})

	t.Run("correct password verifies until attempt finishes", func(t *testing.T) {
		if err := chain.ValidatePreflight(ctx, map[string]string{PreflightPasswordField: "X7k9rQ2m"}); err != nil {
			t.Fatalf("correct password rejected: %v", err)
		}
		if err := chain.NotifyPreflightCheckPassed(ctx); err != nil {
			t.Fatalf("NotifyPreflightCheckPassed() error = %v", err)
		}

		// A fresh chain for the same user must not re-prompt.
		if NewChain(rc).IsPreflightCheckRequired(ctx) {
			t.Fatal("user re-prompted for the password after verifying")
		}

		if err := chain.CurrentAttemptFinished(ctx); err != nil {
			t.Fatalf("CurrentAttemptFinished() error = %v", err)
		}
		if !NewChain(rc).IsPreflightCheckRequired(ctx) {
			t.Fatal("verification must be cleared once the attempt finishes")
		}
	})
}

func TestChain_Descriptions(t *testing.T) {
	chain := NewChain(RuleContext{
		Settings: settingsWith(func(s *models.EffectiveSettings) {
			s.MaxAttempts = 3
			s.TimeLimit = 1800
			s.Password = "secret"
		}),
		UserID:        "u1",
		Now:           time.Now(),
		Verifications: NewMemoryVerificationStore(),
	})
	descriptions := chain.Descriptions()
	if len(descriptions) != 3 {
		t.Fatalf("Descriptions() = %v, want 3 entries", descriptions)
	}
}

func TestAddressInSubnets(t *testing.T) {
	tests := []struct {
		name    string
		address string
		subnets []string
		want    bool
	}{
		{name: "exact ip", address: "10.0.0.5", subnets: []string{"10.0.0.5"}, want: true},
		{name: "cidr match", address: "192.168.1.77", subnets: []string{"192.168.1.0/24"}, want: true},
		{name: "cidr miss", address: "192.168.2.77", subnets: []string{"192.168.1.0/24"}, want: false},
		{name: "dotted prefix", address: "10.20.3.4", subnets: []string{"10.20."}, want: true},
		{name: "second entry matches", address: "172.16.0.9", subnets: []string{"10.0.0.0/8", "172.16.0.0/12"}, want: true},
		{name: "unparsable address", address: "not-an-ip", subnets: []string{"10.0.0.0/8"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := addressInSubnets(tt.address, tt.subnets); got != tt.want {
				t.Errorf("addressInSubnets(%q, %v) = %v, want %v", tt.address, tt.subnets, got, tt.want)
			}
		})
	}
}
