// Package rules implements the access checks that gate quiz attempts:
// open/close window, time limit, delay between attempts, IP subnet,
// attempt count and password preflight. Each rule decides on
// construction whether it applies to the quiz at all; inapplicable
// rules are simply absent from the chain.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// RuleContext carries everything a rule may consult. One context is
// built per (quiz, user) access and shared by the whole chain.
type RuleContext struct {
	Settings            models.EffectiveSettings
	UserID              string
	Now                 time.Time
	CanIgnoreTimeLimits bool
	ClientIP            string
	Verifications       VerificationStore
}

// Rule is one access restriction. Return values use the zero value
// for "no objection": an empty string from PreventNewAttempt or
// PreventAccess means the rule allows it.
type Rule interface {
	// Description is shown to users on the quiz view page.
	Description() string

	// PreventNewAttempt reports why starting another attempt is not
	// allowed, given the number of previous (non-preview) attempts
	// and the most recent one.
	PreventNewAttempt(numPrevAttempts int, lastAttempt *models.Attempt) string

	// PreventAccess reports why the quiz cannot be accessed at all
	// right now.
	PreventAccess() string

	// IsFinished reports whether, as far as this rule is concerned,
	// the user is done with the quiz for good.
	IsFinished(numPrevAttempts int, lastAttempt *models.Attempt) bool

	// EndTime returns the instant this rule forces the attempt to end,
	// if it imposes one.
	EndTime(attempt *models.Attempt) (time.Time, bool)

	// IsPreflightCheckRequired reports whether the user must pass a
	// check before entering the attempt.
	IsPreflightCheckRequired(ctx context.Context) bool

	// ValidatePreflight checks the submitted preflight form data.
	ValidatePreflight(ctx context.Context, data map[string]string) error

	// NotifyPreflightCheckPassed records that the check succeeded so
	// the user is not re-prompted mid-attempt.
	NotifyPreflightCheckPassed(ctx context.Context) error

	// CurrentAttemptFinished clears any per-attempt state the rule
	// keeps once the attempt reaches a final state.
	CurrentAttemptFinished(ctx context.Context) error
}

// BaseRule provides no-op defaults so each rule only implements the
// hooks it cares about.
type BaseRule struct {
	rc RuleContext
}

func (b BaseRule) Description() string                               { return "" }
func (b BaseRule) PreventNewAttempt(int, *models.Attempt) string     { return "" }
func (b BaseRule) PreventAccess() string                             { return "" }
func (b BaseRule) IsFinished(int, *models.Attempt) bool              { return false }
func (b BaseRule) EndTime(*models.Attempt) (time.Time, bool)         { return time.Time{}, false }
func (b BaseRule) IsPreflightCheckRequired(context.Context) bool     { return false }
func (b BaseRule) ValidatePreflight(context.Context, map[string]string) error {
	return nil
}
func (b BaseRule) NotifyPreflightCheckPassed(context.Context) error { return nil }
func (b BaseRule) CurrentAttemptFinished(context.Context) error     { return nil }

// PreflightError is a field-level failure of a preflight check.
type PreflightError struct {
	Field   string
	Message string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Factory builds a rule for the given context, or returns nil when
// the rule does not apply to this quiz.
type Factory func(rc RuleContext) Rule

// factories lists every known rule in evaluation order. Cheap
// checks run before ones that prompt the user.
var factories = []Factory{
	NewOpenCloseRule,
	NewAttemptCountRule,
	NewDelayBetweenAttemptsRule,
	NewTimeLimitRule,
	NewIPAddressRule,
	NewPasswordRule,
}
