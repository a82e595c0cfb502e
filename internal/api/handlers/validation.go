package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

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
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return entities.Role(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("facility_type", func(fl validator.FieldLevel) bool {
		_, ok := entities.ParseFacilityType(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("trimmed_min", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len([]rune(strings.TrimSpace(fl.Field().String()))) >= n
	})
	return v
}

// fieldMessages holds the user-facing message for a failed field rule,
// keyed by "<field>.<tag>"
var fieldMessages = map[string]string{
	"email.required":       "Please enter a valid email address",
	"email.email":          "Please enter a valid email address",
	"password.required":    "Password must be at least 6 characters",
	"password.min":         "Password must be at least 6 characters",
	"location.required":    "Please enter your event location",
	"location.trimmed_min": "Location must be at least 3 characters",
	"name.trimmed_min":     "Name must be at least 2 characters",
	"role.required":        "Please select a role",
	"role.role":            "Please select a role",
	"type.facility_type":   "Unknown facility type",
	"page.min":             "Page must be at least 1",
	"page.required":        "Page must be at least 1",
	"page_size.min":        "Page size must be at least 1",
	"page_size.required":   "Page size must be at least 1",
}

// validateForm runs the struct's validate tags and reports the first
// failure as a VALIDATION error
func validateForm(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewValidationError("invalid request")
	}
	fe := fieldErrs[0]
	if message, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return apperrors.NewValidationError(message)
	}
	return apperrors.NewValidationError(fmt.Sprintf("%s is invalid", fe.Field()))
}

// decodeForm decodes a JSON body into form and validates it
func decodeForm(r *http.Request, form interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(form); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is required")
		}
		return apperrors.NewValidationError("invalid request body")
	}
	return validateForm(form)
}
