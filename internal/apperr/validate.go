package apperr

import (
	"errors"
	"strings"

	validatorengine "github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// StructValidator turns go-playground field errors into ValidationErrors.
type StructValidator struct {
	Validator *validatorengine.Validate
}

func NewStructValidator() *StructValidator {
	return &StructValidator{Validator: validatorengine.New()}
}

// ValidateStruct returns nil, a single *ValidationError, or a multierror of them.
func (v *StructValidator) ValidateStruct(data any) error {
	err := v.Validator.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validatorengine.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var result *multierror.Error
	for _, fe := range fieldErrs {
		result = multierror.Append(result, &ValidationError{
			Field:  lowerFirst(fe.Field()),
			Reason: describe(fe),
		})
	}
	if len(result.Errors) == 1 {
		return result.Errors[0]
	}
	return result
}

func describe(fe validatorengine.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must not be empty"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "failed " + fe.Tag()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
