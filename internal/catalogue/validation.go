package catalogue

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PayloadValidator checks product payloads and renders violations as flat
// messages in field declaration order.
type PayloadValidator struct {
	validate *validator.Validate
}

// NewPayloadValidator creates a validator that names fields by their JSON name.
func NewPayloadValidator() *PayloadValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &PayloadValidator{validate: v}
}

// Messages returns the violations of payload, or nil when it is valid.
func (p *PayloadValidator) Messages(payload any) ([]string, error) {
	err := p.validate.Struct(payload)
	if err == nil {
		return nil, nil
	}

	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return nil, fmt.Errorf("validate payload: %w", err)
	}

	messages := make([]string, 0, len(violations))
	for _, fe := range violations {
		messages = append(messages, message(fe))
	}
	return messages, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " must be provided"
	case "min":
		return fmt.Sprintf("%s size must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s size must not exceed %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
