package app

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate decodes the JSON body into target and checks its
// validate tags. Failures come back as a DomainError ready for writeError.
func decodeAndValidate(r *http.Request, target any) error {
	if err := decodeBody(r, target); err != nil {
		return domainError(http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
	}
	return validateStruct(target)
}

func validateStruct(target any) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return domainError(http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
	}
	fields := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		fields[fieldPath(fe)] = fe.Tag()
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request failed validation", map[string]any{"fields": fields})
}

// fieldPath drops the root struct name from the namespace, so
// "ChecklistUpdateInput.items[0].templateId" becomes "items[0].templateId".
func fieldPath(fe validator.FieldError) string {
	namespace := fe.Namespace()
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return fe.Field()
}
