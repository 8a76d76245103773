package service

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/edu-admin-console/internal/models"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

const (
	complexPasswordTag  = "complexpassword"
	notBlankTag         = "notblank"
	marksWithinRangeTag = "marks_within_range"
	minPasswordLength   = 8
)

// FormValidator validates request forms before anything is sent upstream.
type FormValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewFormValidator registers the console's custom rules and English messages.
func NewFormValidator() *FormValidator {
	validate := validator.New()

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(complexPasswordTag, complexPasswordValidation)
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	validate.RegisterStructValidation(markStructValidation, models.UpdateMarkRequest{})

	v := &FormValidator{validate: validate, translator: translator}
	v.registerMessages()
	return v
}

func (v *FormValidator) registerMessages() {
	messages := map[string]string{
		complexPasswordTag:  "{0} must be at least 8 characters and include upper and lower case letters, a number and a symbol",
		notBlankTag:         "{0} cannot be blank",
		marksWithinRangeTag: "{0} cannot exceed max_marks",
	}
	for tag, text := range messages {
		_ = v.validate.RegisterTranslation(tag, v.translator,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, err := t.T(fe.Tag(), fe.Field())
				if err != nil {
					return fe.Error()
				}
				return msg
			},
		)
	}
}

// Struct validates req and returns a VALIDATION_ERROR whose details map each
// offending field to a readable message.
func (v *FormValidator) Struct(req interface{}) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	fields := make(map[string]interface{}, len(fieldErrs))
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := fe.Translate(v.translator)
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
			messages = append(messages, msg)
		}
	}
	return appErrors.WithDetails(
		appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, strings.Join(messages, "; ")),
		map[string]interface{}{"fields": fields},
	)
}

// PasswordIsComplex reports whether password satisfies the account password policy.
func PasswordIsComplex(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

func complexPasswordValidation(fl validator.FieldLevel) bool {
	return PasswordIsComplex(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(fl.Field().String()) != ""
}

func markStructValidation(sl validator.StructLevel) {
	req, ok := sl.Current().Interface().(models.UpdateMarkRequest)
	if !ok || req.MarksObtained == nil || req.MaxMarks == nil {
		return
	}
	if *req.MarksObtained > *req.MaxMarks {
		sl.ReportError(req.MarksObtained, "marks_obtained", "MarksObtained", marksWithinRangeTag, "")
	}
}
