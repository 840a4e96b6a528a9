package validator

import (
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize availability validator", "error", err)
	}

	log.Info("Availability validator initialized successfully")

	return &AvailabilityValidator{
		validate: v,
		logger:   log,
	}
}

// Validate checks field formats, then that the dates and clock times make a
// usable recurrence anchor.
func (v *AvailabilityValidator) Validate(a *model.Availability) error {
	if err := validation.Struct(v.validate, a); err != nil {
		return err
	}

	if _, err := a.Reference(); err != nil {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "EndTime",
				Message: err.Error(),
			},
		}
	}

	if a.RecurUntil != "" && a.RecurUntil < a.StartDate {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "RecurUntil",
				Message: "recur_until must not be before start_date",
			},
		}
	}

	return nil
}

func (v *AvailabilityValidator) ValidateUpdate(update *model.AvailabilityUpdate) error {
	if err := validation.Struct(v.validate, update); err != nil {
		return err
	}

	if update.RecurUntil != nil && *update.RecurUntil != "" {
		if err := v.validate.Var(*update.RecurUntil, "datetime=2006-01-02"); err != nil {
			return validation.ValidationErrors{
				validation.ValidationError{
					Field:   "RecurUntil",
					Message: "RecurUntil must be a date in 2006-01-02 format",
				},
			}
		}
	}

	return nil
}
