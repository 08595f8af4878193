package rules

import (
	"fmt"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// attemptCountRule limits how many attempts each user may make.
type attemptCountRule struct {
	BaseRule
	maxAttempts int
}

func NewAttemptCountRule(rc RuleContext) Rule {
	if rc.Settings.MaxAttempts <= 0 {
		return nil
	}
	return &attemptCountRule{
		BaseRule:    BaseRule{rc: rc},
		maxAttempts: rc.Settings.MaxAttempts,
	}
}

func (r *attemptCountRule) Description() string {
	return fmt.Sprintf("Attempts allowed: %d", r.maxAttempts)
}

func (r *attemptCountRule) PreventNewAttempt(numPrevAttempts int, _ *models.Attempt) string {
	if numPrevAttempts >= r.maxAttempts {
		return fmt.Sprintf("No more attempts are allowed; the limit is %d", r.maxAttempts)
	}
	return ""
}

func (r *attemptCountRule) IsFinished(numPrevAttempts int, _ *models.Attempt) bool {
	return numPrevAttempts >= r.maxAttempts
}
