package ruleparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// FieldError points at one invalid constraint parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult reports whether a constraint is structurally sound.
type ValidationResult struct {
	IsValid bool         `json:"is_valid"`
	Errors  []FieldError `json:"errors,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the parameters of a decoded constraint.
func Validate(c models.Constraint) ValidationResult {
	if c == nil {
		return invalid(FieldError{Field: "type", Message: "is required"})
	}
	err := engine().Struct(models.Deref(c))
	if err == nil {
		return ValidationResult{IsValid: true}
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(FieldError{Field: "parameters", Message: err.Error()})
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: "parameters." + fe.Field(), Message: message(fe)})
	}
	return invalid(out...)
}

// ValidateEnvelope decodes and validates a raw {type, parameters} payload,
// reporting unknown kinds and wrongly typed parameters as field errors.
func ValidateEnvelope(env models.ConstraintEnvelope) (models.Constraint, ValidationResult) {
	if env.Type == "" {
		return nil, invalid(FieldError{Field: "type", Message: "is required"})
	}
	if _, ok := models.NewConstraint(env.Type); !ok {
		return nil, invalid(FieldError{Field: "type", Message: fmt.Sprintf("unknown constraint type %q", env.Type)})
	}
	c, err := models.DecodeConstraint(env)
	if err != nil {
		field := "parameters"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = "parameters." + typeErr.Field
			return nil, invalid(FieldError{Field: field, Message: "must be a " + kindName(typeErr.Type.Kind())})
		}
		return nil, invalid(FieldError{Field: field, Message: "must be a JSON object"})
	}
	return c, Validate(c)
}

func invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{IsValid: false, Errors: errs}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func kindName(k reflect.Kind) string {
	switch k {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "number"
	case reflect.Bool:
		return "boolean"
	default:
		return k.String()
	}
}
