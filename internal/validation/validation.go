// Package validation wraps go-playground/validator with English messages,
// the domain's custom tags and the password policy.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pmezard/go-difflib/difflib"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag    = "notblank"
	cefrTag        = "cefr"
	moduleTag      = "ielts_module"
	qtypeTag       = "question_type"
	usernameTag    = "username"
	isUsernameRune = func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
	}

	customMessages = map[string]string{
		notBlankTag: "this field cannot be blank",
		cefrTag:     "must be one of A1, A2, B1, B2, C1, C2",
		moduleTag:   "must be one of reading, listening, writing, speaking",
		qtypeTag:    "unknown question type",
		usernameTag: "may only contain letters, digits, '.', '_' and '-'",
	}

	// password policy
	pwdMinLen = 8
	pwdMaxSim = .7
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// report JSON field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation(cefrTag, func(fl validator.FieldLevel) bool {
		return models.ValidCEFRLevel(fl.Field().String())
	})
	_ = validate.RegisterValidation(moduleTag, func(fl validator.FieldLevel) bool {
		return models.Module(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(qtypeTag, func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation(usernameTag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && strings.IndexFunc(s, func(r rune) bool { return !isUsernameRune(r) }) < 0
	})

	registerFn := func(ut.Translator) error { return nil }
	for tag := range customMessages {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	return customMessages[fe.Tag()]
}

// Struct validates v against its `validate` tags. Failures come back as an
// apperr validation error listing each field.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := fields[field]; !seen {
			fields[field] = fe.Translate(translator)
		}
	}
	return apperr.ValidationFields("Invalid input", fields)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return apperr.Validation("Invalid input", apperr.FieldError{Field: "email", Message: "email is required"})
	}
	if strings.ContainsAny(email, " \t") || validate.Var(email, "email") != nil {
		return apperr.Validation("Invalid input", apperr.FieldError{Field: "email", Message: "invalid email format"})
	}
	return nil
}

// ValidatePassword applies the password policy: at least 8 characters, not
// entirely numeric, and not too similar to the username or email.
func ValidatePassword(password string, userAttrs ...string) error {
	fail := func(msg string) error {
		return apperr.Validation("Invalid input", apperr.FieldError{Field: "password", Message: msg})
	}

	if len(password) < pwdMinLen {
		return fail(fmt.Sprintf("password must contain at least %d characters", pwdMinLen))
	}
	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return fail("password cannot be entirely numeric")
	}

	lower := strings.ToLower(password)
	for _, attr := range userAttrs {
		if attr == "" {
			continue
		}
		attr = strings.ToLower(attr)
		if local, _, found := strings.Cut(attr, "@"); found {
			attr = local
		}
		ratio := difflib.NewMatcher(strings.Split(lower, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= pwdMaxSim {
			return fail("password cannot be similar to your username or email")
		}
	}
	return nil
}
