package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/wwu-chemlab/chemlab/core"
)

var (
	termTag  = "term"
	termText = "term must look like FALL2026 (WINTER, SPRING, SUMMER or FALL followed by the year)"
)

// InitValidators registers the course validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(termTag, func(fl validator.FieldLevel) bool {
		return IsValidTerm(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, termTag, termText)
}
