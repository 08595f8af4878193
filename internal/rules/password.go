package rules

import (
	"context"
	"crypto/subtle"
)

// PreflightPasswordField is the form field the password preflight
// check reads and reports errors against.
const PreflightPasswordField = "quizpassword"

// passwordRule requires a password before the attempt can be entered.
// Override passwords issued to other users are accepted too, so a
// teacher can hand out an alternative password without changing the
// main one.
type passwordRule struct {
	BaseRule
	password       string
	extraPasswords []string
	quizID         uint
	userID         string
	store          VerificationStore
}

func NewPasswordRule(rc RuleContext) Rule {
	if rc.Settings.Password == "" {
		return nil
	}
	return &passwordRule{
		BaseRule:       BaseRule{rc: rc},
		password:       rc.Settings.Password,
		extraPasswords: rc.Settings.ExtraPasswords,
		quizID:         rc.Settings.ID,
		userID:         rc.UserID,
		store:          rc.Verifications,
	}
}

func (r *passwordRule) Description() string {
	return "To attempt this quiz you need to know the quiz password"
}

func (r *passwordRule) IsPreflightCheckRequired(ctx context.Context) bool {
	if r.store == nil {
		return true
	}
	return !r.store.IsVerified(ctx, r.quizID, r.userID)
}

func (r *passwordRule) ValidatePreflight(_ context.Context, data map[string]string) error {
	submitted := data[PreflightPasswordField]
	if equalPassword(submitted, r.password) {
		return nil
	}
	for _, extra := range r.extraPasswords {
		if equalPassword(submitted, extra) {
			return nil
		}
	}
	return &PreflightError{
		Field:   PreflightPasswordField,
		Message: "The password entered was incorrect",
	}
}

func (r *passwordRule) NotifyPreflightCheckPassed(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.MarkVerified(ctx, r.quizID, r.userID)
}

func (r *passwordRule) CurrentAttemptFinished(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.store.Clear(ctx, r.quizID, r.userID)
}

func equalPassword(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
