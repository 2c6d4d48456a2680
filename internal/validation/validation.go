// Package validation wraps go-playground/validator with json field names and apperr output.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/spinsight/internal/apperr"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates s and reports the first failing field as a validation error.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("invalid validation target: %w", err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation(err.Error())
	}

	first := fieldErrs[0]
	return apperr.Validation(message(first.Field(), first.Tag(), first.Param()))
}

func message(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "email":
		return fmt.Sprintf("field '%s' must be a valid email address", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, param)
	case "len":
		return fmt.Sprintf("field '%s' must be exactly %s characters long", field, param)
	case "numeric":
		return fmt.Sprintf("field '%s' must contain digits only", field)
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of [%s]", field, param)
	default:
		return fmt.Sprintf("field '%s' failed on '%s'", field, tag)
	}
}
