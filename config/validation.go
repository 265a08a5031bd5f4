package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags. The first failing field is
// reported as a *ConfigError with category "invalid".
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewValidationError("config", "configuration is nil")
	}
	err := structValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fe := validationErrors[0]
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field, envVarName(field), field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "gte", "gt":
		return NewValidationError(field, fmt.Sprintf("must be %s %s", comparison(fe.Tag()), fe.Param()))
	case "url":
		return NewValidationError(field, "must be an absolute URL")
	default:
		return NewValidationError(field, fmt.Sprintf("failed %s validation", fe.Tag()))
	}
}

// fieldPath drops the root struct name: "Config.dispatch.numretries" becomes
// "dispatch.numretries".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// envVarName maps a koanf key to the environment variable that sets it.
func envVarName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func comparison(tag string) string {
	if tag == "gt" {
		return "greater than"
	}
	return "at least"
}
