package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/asrkit/errors"
)

var (
	structValidator *validator.Validate
	validatorOnce   sync.Once
)

// getValidator returns the singleton struct validator instance.
func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())

		// Prefer json tag names in error messages.
		structValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return toSnakeCase(fld.Name)
			}
			return name
		})
	})
	return structValidator
}

// Validate validates a struct using its validate tags. It returns an AppError
// with per-field details when validation fails.
func Validate(s any) error {
	if err := getValidator().Struct(s); err != nil {
		var invalid *validator.InvalidValidationError
		if stderrors.As(err, &invalid) {
			return errors.Internal(err)
		}

		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.Validation(err.Error())
		}

		fields := make([]FieldError, 0, len(verrs))
		messages := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fieldErr := FieldError{
				Field:   fe.Field(),
				Message: formatFieldError(fe),
			}
			fields = append(fields, fieldErr)
			messages = append(messages, fmt.Sprintf("%s: %s", fieldErr.Field, fieldErr.Message))
		}

		appErr := errors.Validation(strings.Join(messages, "; "))
		appErr.Details = map[string]any{
			"fields": fields,
		}
		return appErr
	}
	return nil
}

// formatFieldError converts a validator field error into a readable message.
func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "uri":
		return "must be a valid URI"
	case "file":
		return "must be an existing file path"
	case "dive":
		return "contains an invalid element"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// toSnakeCase converts CamelCase field names to snake_case.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
