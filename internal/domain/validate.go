package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var parameterNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("paramname", func(fl validator.FieldLevel) bool {
			return ValidParameterName(fl.Field().String())
		})
	})
	return validate
}

// ValidParameterName reports whether name matches ^[a-z][a-z0-9_]*$.
func ValidParameterName(name string) bool {
	return parameterNamePattern.MatchString(name)
}

// Validate checks v against its validate tags and returns a Validation error
// listing every failing field.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Validation("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "paramname":
		return fmt.Sprintf("%s must start with a letter and contain only a-z, 0-9, _", field)
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
