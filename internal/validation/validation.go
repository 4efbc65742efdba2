// Package validation wraps validator/v10 with the rules request payloads
// need beyond the built-in tags.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("seat", func(fl validator.FieldLevel) bool {
		return domain.ValidSeat(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and flattens field errors into one readable message.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "seat":
		return fmt.Sprintf("%s %q is not on the seat map", field, fe.Value())
	case "datetime":
		return fmt.Sprintf("%s must be formatted as %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
