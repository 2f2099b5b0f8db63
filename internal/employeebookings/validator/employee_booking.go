package validator

import (
	"errors"
	"fmt"
	"resledger/pkg/logger"
	"resledger/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type EmployeeBookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewEmployeeBookingValidator(log *logger.Logger) *EmployeeBookingValidator {
	v := validator.New()

	log.Debug("Employee booking validator initialized successfully")

	return &EmployeeBookingValidator{
		validate: v,
		logger:   log,
	}
}

func (v *EmployeeBookingValidator) Validate(booking *model.EmployeeBooking) error {
	var validationErrors ValidationErrors

	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		validationErrors = v.translateValidationErrors(validationErrs)
	}

	// time.Time is a struct, so the required tag alone does not reject zero values.
	if booking.From.IsZero() {
		validationErrors = append(validationErrors, ValidationError{Field: "From", Message: "from_datetime is required"})
	}
	if booking.To.IsZero() {
		validationErrors = append(validationErrors, ValidationError{Field: "To", Message: "to_datetime is required"})
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

func (v *EmployeeBookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "required_if":
			message = fmt.Sprintf("%s is required when %s", err.Field(), strings.Replace(err.Param(), " ", " is ", 1))
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
