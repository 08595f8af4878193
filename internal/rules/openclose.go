package rules

import (
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// openCloseRule enforces the quiz open and close window.
type openCloseRule struct {
	BaseRule
	timeOpen  *time.Time
	timeClose *time.Time
	now       time.Time
}

func NewOpenCloseRule(rc RuleContext) Rule {
	if rc.Settings.TimeOpen == nil && rc.Settings.TimeClose == nil {
		return nil
	}
	return &openCloseRule{
		BaseRule:  BaseRule{rc: rc},
		timeOpen:  rc.Settings.TimeOpen,
		timeClose: rc.Settings.TimeClose,
		now:       rc.Now,
	}
}

func (r *openCloseRule) Description() string {
	switch {
	case r.timeOpen != nil && r.timeClose != nil:
		return fmt.Sprintf("This quiz is available from %s to %s",
			r.timeOpen.Format(time.RFC1123), r.timeClose.Format(time.RFC1123))
	case r.timeOpen != nil:
		return fmt.Sprintf("This quiz opens at %s", r.timeOpen.Format(time.RFC1123))
	default:
		return fmt.Sprintf("This quiz closes at %s", r.timeClose.Format(time.RFC1123))
	}
}

func (r *openCloseRule) PreventAccess() string {
	if r.timeOpen != nil && r.now.Before(*r.timeOpen) {
		return "This quiz is not open yet"
	}
	if r.timeClose != nil && r.now.After(*r.timeClose) {
		return "This quiz has closed"
	}
	return ""
}

func (r *openCloseRule) PreventNewAttempt(int, *models.Attempt) string {
	return r.PreventAccess()
}

func (r *openCloseRule) IsFinished(int, *models.Attempt) bool {
	return r.timeClose != nil && r.now.After(*r.timeClose)
}

func (r *openCloseRule) EndTime(*models.Attempt) (time.Time, bool) {
	if r.timeClose == nil {
		return time.Time{}, false
	}
	return *r.timeClose, true
}
