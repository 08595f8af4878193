package rules

import (
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// timeLimitRule ends each attempt a fixed duration after it starts.
type timeLimitRule struct {
	BaseRule
	limit time.Duration
}

func NewTimeLimitRule(rc RuleContext) Rule {
	if rc.Settings.TimeLimit <= 0 || rc.CanIgnoreTimeLimits {
		return nil
	}
	return &timeLimitRule{
		BaseRule: BaseRule{rc: rc},
		limit:    time.Duration(rc.Settings.TimeLimit) * time.Second,
	}
}

func (r *timeLimitRule) Description() string {
	return fmt.Sprintf("Time limit: %s", r.limit)
}

func (r *timeLimitRule) EndTime(attempt *models.Attempt) (time.Time, bool) {
	if attempt == nil {
		return time.Time{}, false
	}
	return attempt.TimeStart.Add(r.limit), true
}
