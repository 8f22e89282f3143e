package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NewValidator returns a validator with the "basicemail" rule registered and
// JSON tag names used in error messages.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("basicemail", func(fl validator.FieldLevel) bool {
		return validEmail(fl.Field().String())
	})
	return v
}

func validEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// invalidArgument turns the first validator failure into a message that
// names the field, e.g. "password must be at least 8 characters".
func invalidArgument(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return customErrors.NewInvalidArgument(err.Error())
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return customErrors.NewInvalidArgument(field + " is required")
	case "min":
		return customErrors.NewInvalidArgument(fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	case "max":
		return customErrors.NewInvalidArgument(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return customErrors.NewInvalidArgument("invalid " + field)
	}
}
