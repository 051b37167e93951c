package http

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate   = newValidator()
	nonBlankRe = regexp.MustCompile(`\S`)
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Date in "2006-01-02" form
	_ = v.RegisterValidation("dateonly", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})

	// Not empty and not only whitespace
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonBlankRe.MatchString(fl.Field().String())
	})

	return v
}
