package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var couponCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// New creates a new validator instance with custom validations registered.
//
//   - notblank rejects whitespace-only strings.
//   - couponcode accepts letters, digits, '-' and '_', ignoring surrounding
//     whitespace which is trimmed before storage.
func New() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return couponCodePattern.MatchString(strings.TrimSpace(str))
	})

	return v
}
