package delivery

import (
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/adanyl0v/go-tasks/internal/models"
)

// NewValidator returns a validator reading the same "binding" tags gin does.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	RegisterJSONFieldNames(v)
	return v
}

// RegisterJSONFieldNames makes field errors report the json name of a field.
func RegisterJSONFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
}

// ValidationError converts a binding or validation failure into an
// invalid input error that names the first offending field.
func ValidationError(err error) error {
	if errors.Is(err, io.EOF) {
		return models.NewError(models.ErrorKindInvalidInput, "request body is required")
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return models.NewError(models.ErrorKindInvalidInput, "invalid request: %v", err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return models.NewError(models.ErrorKindInvalidInput, "%s is required", fe.Field())
	case "max":
		return models.NewError(models.ErrorKindInvalidInput, "%s cannot exceed %s characters", fe.Field(), fe.Param())
	default:
		return models.NewError(models.ErrorKindInvalidInput, "%s is invalid", fe.Field())
	}
}
