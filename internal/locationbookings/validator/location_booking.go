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

type LocationBookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLocationBookingValidator(log *logger.Logger) *LocationBookingValidator {
	v := validator.New()

	log.Debug("Location booking validator initialized successfully")

	return &LocationBookingValidator{
		validate: v,
		logger:   log,
	}
}

func (v *LocationBookingValidator) Validate(booking *model.LocationBooking) error {
	var validationErrors ValidationErrors

	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		for _, fe := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Message: translate(fe),
			})
		}
	}

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

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", fe.Field(), fe.Param())
	default:
		return fe.Error()
	}
}
