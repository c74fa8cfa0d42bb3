package domain

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Validate checks struct tags and returns a *ValidationError on failure.
func Validate(v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}
