package validator

import (
	"reflect"
	"strings"
	"time"

	"github.com/SAP-F-2025/quiz-attempt-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator handles struct and business rule validation
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all domain rules registered
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerDomainRules()

	return v
}

// Validate validates any struct and returns nil or ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateQuizTiming checks that a quiz window is internally consistent
func (v *Validator) ValidateQuizTiming(timeOpen, timeClose *time.Time, timeLimit int) ValidationErrors {
	var errors ValidationErrors

	if timeOpen != nil && timeClose != nil && !timeClose.After(*timeOpen) {
		errors = append(errors, ValidationError{
			Field:   "time_close",
			Message: "must be after time_open",
			Value:   timeClose,
			Rule:    "timing",
		})
	}

	if timeLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "time_limit",
			Message: "cannot be negative",
			Value:   timeLimit,
			Rule:    "timing",
		})
	}

	return errors
}

// ValidateOverride checks override fields against the quiz they modify
func (v *Validator) ValidateOverride(req *OverrideCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errs := v.validate.Struct(req)
	errors = append(errors, ToValidationErrors(errs)...)

	errors = append(errors, v.ValidateQuizTiming(req.TimeOpen, req.TimeClose, intOrZero(req.TimeLimit))...)

	if !req.HasAnyValue() {
		errors = append(errors, ValidationError{
			Field:   "override",
			Message: "must set at least one of time_open, time_close, time_limit, attempts, password",
			Rule:    "business_logic",
		})
	}

	return errors
}

func (v *Validator) registerDomainRules() {
	bv := v.validate

	bv.RegisterValidation("grading_method", func(fl validator.FieldLevel) bool {
		method := models.GradingMethod(fl.Field().String())
		switch method {
		case models.GradeHighest, models.GradeAverage, models.GradeFirst, models.GradeLast:
			return true
		}
		return false
	})

	bv.RegisterValidation("overdue_handling", func(fl validator.FieldLevel) bool {
		handling := models.OverdueHandling(fl.Field().String())
		switch handling {
		case models.OverdueAutoSubmit, models.OverdueGracePeriod, models.OverdueAutoAbandon:
			return true
		}
		return false
	})

	bv.RegisterValidation("navigation_method", func(fl validator.FieldLevel) bool {
		method := models.NavigationMethod(fl.Field().String())
		return method == models.NavigationFree || method == models.NavigationSequential
	})

	bv.RegisterValidation("quiz_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 255
	})

	// Grace period must be zero or at least one minute
	bv.RegisterValidation("grace_period", func(fl validator.FieldLevel) bool {
		grace := fl.Field().Int()
		return grace == 0 || grace >= 60
	})

	bv.RegisterValidation("future_date", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.Ptr && field.IsNil() {
			return true
		}

		var t time.Time
		if field.Kind() == reflect.Ptr {
			t = field.Elem().Interface().(time.Time)
		} else {
			t = field.Interface().(time.Time)
		}
		return t.After(time.Now())
	})
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
