package dispatch

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// optionsValidator wraps go-playground/validator for Options.
type optionsValidator struct {
	validate *validator.Validate
}

func newOptionsValidator() *optionsValidator {
	return &optionsValidator{validate: validator.New()}
}

// Check returns an InvalidOptions DispatchError describing the first
// failing field.
func (v *optionsValidator) Check(opts *Options) error {
	err := v.validate.Struct(opts)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return NewInvalidOptionsError(getErrorMessage(fe), fe.Field())
	}
	return NewInvalidOptionsError(err.Error(), "")
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation", fe.Field())
	}
}
