package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("dns1123", func(fl validator.FieldLevel) bool {
			return len(validation.IsDNS1123Label(fl.Field().String())) == 0
		})
		_ = v.RegisterValidation("quantity", func(fl validator.FieldLevel) bool {
			_, err := resource.ParseQuantity(fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

// Validate checks a request struct against its validate tags. Failures
// are returned as ErrValidation with one detail per offending field.
func Validate(s any) error {
	if err := validatorInstance().Struct(s); err != nil {
		return validationError(err)
	}
	return nil
}

// ValidateVar checks a single value against a tag expression.
func ValidateVar(field string, value any, tag string) error {
	if err := validatorInstance().Var(value, tag); err != nil {
		return validationError(err, field)
	}
	return nil
}

func validationError(err error, field ...string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ErrValidation.WithCause(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if len(field) > 0 && name == "" {
			name = field[0]
		}
		msgs = append(msgs, fieldMessage(name, fe))
	}
	sort.Strings(msgs)
	return ErrValidation.WithDetails(strings.Join(msgs, "; ")).WithCause(err)
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "dns1123":
		return fmt.Sprintf("%s must be a lowercase RFC 1123 label", field)
	case "quantity":
		return fmt.Sprintf("%s must be a resource quantity such as 500m or 2Gi", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed on '%s'", field, fe.Tag())
	}
}
