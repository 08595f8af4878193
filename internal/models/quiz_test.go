package models

import (
	"testing"
	"time"
)

func TestApplyOverride(t *testing.T) {
	open := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	closeAt := open.Add(time.Hour)
	laterClose := open.Add(2 * time.Hour)
	limit := 900
	attempts := 5
	password := "override-pass"
	empty := ""

	quiz := Quiz{
		ID:          42,
		Title:       "Midterm",
		TimeOpen:    &open,
		TimeClose:   &closeAt,
		TimeLimit:   1800,
		MaxAttempts: 2,
		Password:    "base-pass",
	}

	tests := []struct {
		name     string
		override *UserOverride
		check    func(t *testing.T, eff EffectiveSettings)
	}{
		{
			name:     "nil override keeps quiz settings",
			override: nil,
			check: func(t *testing.T, eff EffectiveSettings) {
				if eff.TimeLimit != 1800 || eff.MaxAttempts != 2 {
					t.Fatalf("settings changed without an override: %+v", eff)
				}
				if len(eff.ExtraPasswords) != 0 {
					t.Fatalf("unexpected extra passwords: %v", eff.ExtraPasswords)
				}
			},
		},
		{
			name:     "nil fields fall through",
			override: &UserOverride{QuizID: 42, UserID: "u1"},
			check: func(t *testing.T, eff EffectiveSettings) {
				if eff.TimeLimit != 1800 || eff.MaxAttempts != 2 || !eff.TimeClose.Equal(closeAt) {
					t.Fatalf("empty override must not change anything: %+v", eff)
				}
			},
		},
		{
			name: "set fields replace quiz values",
			override: &UserOverride{
				TimeClose: &laterClose,
				TimeLimit: &limit,
				Attempts:  &attempts,
			},
			check: func(t *testing.T, eff EffectiveSettings) {
				if !eff.TimeClose.Equal(laterClose) {
					t.Fatalf("time_close not overridden: %v", eff.TimeClose)
				}
				if eff.TimeLimit != 900 || eff.MaxAttempts != 5 {
					t.Fatalf("limit/attempts not overridden: %+v", eff)
				}
				if !eff.TimeOpen.Equal(open) {
					t.Fatal("time_open should fall through")
				}
			},
		},
		{
			name:     "override password is added, base kept",
			override: &UserOverride{Password: &password},
			check: func(t *testing.T, eff EffectiveSettings) {
				if eff.Password != "base-pass" {
					t.Fatalf("base password lost: %q", eff.Password)
				}
				if len(eff.ExtraPasswords) != 1 || eff.ExtraPasswords[0] != "override-pass" {
					t.Fatalf("extra passwords = %v", eff.ExtraPasswords)
				}
			},
		},
		{
			name:     "empty override password is ignored",
			override: &UserOverride{Password: &empty},
			check: func(t *testing.T, eff EffectiveSettings) {
				if len(eff.ExtraPasswords) != 0 {
					t.Fatalf("empty password must not be added: %v", eff.ExtraPasswords)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, quiz.ApplyOverride(tt.override))
		})
	}
}

func TestAttemptStateIsFinal(t *testing.T) {
	tests := []struct {
		state AttemptState
		final bool
	}{
		{AttemptInProgress, false},
		{AttemptOverdue, false},
		{AttemptFinished, true},
		{AttemptAbandoned, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsFinal(); got != tt.final {
				t.Fatalf("IsFinal(%s) = %v, want %v", tt.state, got, tt.final)
			}
		})
	}
}
