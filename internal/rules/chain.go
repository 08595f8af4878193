package rules

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
)

// Chain is the ordered set of rules that apply to one quiz for one
// user at one moment. Build a fresh chain per access check; rules
// capture "now" at construction.
type Chain struct {
	rc    RuleContext
	rules []Rule
}

// NewChain instantiates every applicable rule for the context.
func NewChain(rc RuleContext) *Chain {
	chain := &Chain{rc: rc}
	for _, factory := range factories {
		if rule := factory(rc); rule != nil {
			chain.rules = append(chain.rules, rule)
		}
	}
	return chain
}

// Descriptions collects the user-visible restriction summaries.
func (c *Chain) Descriptions() []string {
	var out []string
	for _, rule := range c.rules {
		if d := rule.Description(); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// PreventNewAttempt reports why a new attempt may not start. Rules
// run in registration order and the first objection wins, so cheap
// checks like the attempt count fire before the password prompt. An
// empty result means the attempt is allowed.
func (c *Chain) PreventNewAttempt(numPrevAttempts int, lastAttempt *models.Attempt) []string {
	for _, rule := range c.rules {
		if reason := rule.PreventNewAttempt(numPrevAttempts, lastAttempt); reason != "" {
			return []string{reason}
		}
	}
	return nil
}

// PreventAccess collects every reason the quiz cannot be accessed
// right now.
func (c *Chain) PreventAccess() []string {
	var reasons []string
	for _, rule := range c.rules {
		if reason := rule.PreventAccess(); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	return reasons
}

// IsFinished reports whether any rule considers the user permanently
// done with this quiz.
func (c *Chain) IsFinished(numPrevAttempts int, lastAttempt *models.Attempt) bool {
	for _, rule := range c.rules {
		if rule.IsFinished(numPrevAttempts, lastAttempt) {
			return true
		}
	}
	return false
}

// EndTime returns the instant the attempt must end: the latest of the
// end times the rules impose, so a time limit never cuts an attempt
// shorter than the close date allows. ok is false when no rule imposes
// an end time.
func (c *Chain) EndTime(attempt *models.Attempt) (time.Time, bool) {
	var end time.Time
	found := false
	for _, rule := range c.rules {
		t, ok := rule.EndTime(attempt)
		if !ok {
			continue
		}
		if !found || t.After(end) {
			end = t
			found = true
		}
	}
	return end, found
}

// TimeLeft returns the remaining time for the attempt, if any rule
// bounds it.
func (c *Chain) TimeLeft(attempt *models.Attempt, now time.Time) (time.Duration, bool) {
	end, ok := c.EndTime(attempt)
	if !ok {
		return 0, false
	}
	return end.Sub(now), true
}

// IsPreflightCheckRequired reports whether any rule still needs a
// preflight check from this user.
func (c *Chain) IsPreflightCheckRequired(ctx context.Context) bool {
	for _, rule := range c.rules {
		if rule.IsPreflightCheckRequired(ctx) {
			return true
		}
	}
	return false
}

// ValidatePreflight runs the submitted form data through every rule
// needing a check; the first failure is returned.
func (c *Chain) ValidatePreflight(ctx context.Context, data map[string]string) error {
	for _, rule := range c.rules {
		if !rule.IsPreflightCheckRequired(ctx) {
			continue
		}
		if err := rule.ValidatePreflight(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// NotifyPreflightCheckPassed records a successful check with every
// rule that required one.
func (c *Chain) NotifyPreflightCheckPassed(ctx context.Context) error {
	for _, rule := range c.rules {
		if err := rule.NotifyPreflightCheckPassed(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CurrentAttemptFinished lets every rule drop per-attempt state.
func (c *Chain) CurrentAttemptFinished(ctx context.Context) error {
	for _, rule := range c.rules {
		if err := rule.CurrentAttemptFinished(ctx); err != nil {
			return err
		}
	}
	return nil
}
