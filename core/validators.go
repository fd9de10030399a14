package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field is required"

	ageTag   = "age"
	ageText  = "age must be a non-negative whole number"
	ageRegex = regexp.MustCompile(`^\d+$`)

	looseEmailTag   = "loose_email"
	looseEmailText  = "enter a valid email address"
	looseEmailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Instantiate the validator for use.
func init() {
	Validate = validator.New()

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = Validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(notBlankTag, notBlankText)

	_ = Validate.RegisterValidation(ageTag, ageValidation)
	RegisterCustomTranslation(ageTag, ageText)

	_ = Validate.RegisterValidation(looseEmailTag, looseEmailValidation)
	RegisterCustomTranslation(looseEmailTag, looseEmailText)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateErrors maps each failed field to its english message.
func TranslateErrors(errs validator.ValidationErrors) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[vErr.Field()] = vErr.Translate(Translator)
	}
	return fldErrs
}

// Custom Global Validators

// notBlankValidation rejects empty and whitespace-only strings.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ageValidation only allows a string of digits: a non-negative whole number.
func ageValidation(fl validator.FieldLevel) bool {
	return ageRegex.MatchString(fl.Field().String())
}

// looseEmailValidation requires one "@" and a "." in the domain part; nothing stricter.
func looseEmailValidation(fl validator.FieldLevel) bool {
	return looseEmailRegex.MatchString(fl.Field().String())
}

// IsValidAge reports whether s is accepted by the "age" tag.
func IsValidAge(s string) bool { return ageRegex.MatchString(s) }

// IsValidEmail reports whether s is accepted by the "loose_email" tag.
func IsValidEmail(s string) bool { return looseEmailRegex.MatchString(s) }
