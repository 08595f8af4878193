package rules

import (
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// delayBetweenAttemptsRule enforces a waiting period after each
// finished attempt before the next one may start.
type delayBetweenAttemptsRule struct {
	BaseRule
	delay1 time.Duration // after the first attempt
	delay2 time.Duration // after the second and later attempts
	now    time.Time
}

func NewDelayBetweenAttemptsRule(rc RuleContext) Rule {
	if rc.Settings.DelayAttempt1 <= 0 && rc.Settings.DelayAttempt2 <= 0 {
		return nil
	}
	return &delayBetweenAttemptsRule{
		BaseRule: BaseRule{rc: rc},
		delay1:   time.Duration(rc.Settings.DelayAttempt1) * time.Second,
		delay2:   time.Duration(rc.Settings.DelayAttempt2) * time.Second,
		now:      rc.Now,
	}
}

func (r *delayBetweenAttemptsRule) Description() string {
	if r.delay1 > 0 && r.delay2 > 0 {
		return fmt.Sprintf("You must wait %s before your second attempt and %s before later attempts", r.delay1, r.delay2)
	}
	if r.delay1 > 0 {
		return fmt.Sprintf("You must wait %s before your second attempt", r.delay1)
	}
	return fmt.Sprintf("You must wait %s between attempts", r.delay2)
}

func (r *delayBetweenAttemptsRule) PreventNewAttempt(numPrevAttempts int, lastAttempt *models.Attempt) string {
	if numPrevAttempts == 0 || lastAttempt == nil || lastAttempt.TimeFinish == nil {
		return ""
	}

	var delay time.Duration
	switch {
	case numPrevAttempts == 1 && r.delay1 > 0:
		delay = r.delay1
	case numPrevAttempts > 1 && r.delay2 > 0:
		delay = r.delay2
	default:
		return ""
	}

	nextStart := lastAttempt.TimeFinish.Add(delay)
	if r.now.Before(nextStart) {
		return fmt.Sprintf("You must wait before starting another attempt; you may try again at %s",
			nextStart.Format(time.RFC1123))
	}
	return ""
}
