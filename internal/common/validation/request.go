package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"car-advisor/internal/common/errors"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. Field names in messages follow json tags.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs struct tag validation and reports failures as a VALIDATION_FAILED error.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewValidationError(err.Error())
	}

	messages := make([]string, len(fieldErrs))
	fields := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		messages[i] = describe(fe)
		fields[i] = fe.Namespace()
	}

	stdErr := errors.NewValidationError(strings.Join(messages, "; "))
	stdErr.Message = messages[0]
	stdErr.Metadata = map[string]interface{}{"fields": fields}
	return stdErr
}

var messageTemplates = map[string]string{
	"required":           "%s is required",
	"uuid":               "%s must be a valid UUID",
	"url":                "%s must be a valid URL",
	"bcp47_language_tag": "%s must be a language tag such as en or it",
}

var messageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must have at least %s items or characters",
	"max":   "%s must have at most %s items or characters",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func describe(fe validator.FieldError) string {
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := messageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
