// Package validate checks options structs at startup. Fields are reported by their `env`
// tag so a message names the variable to fix
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/hashicorp/go-multierror"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
)

var (
	once  sync.Once
	vd    *validator.Validate
	trans ut.Translator
)

func engine() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		loc := en.New()
		trans, _ = ut.New(loc, loc).GetTranslator("en")

		vd = validator.New(validator.WithRequiredStructEnabled())
		vd.RegisterTagNameFunc(envName)
		_ = en_translations.RegisterDefaultTranslations(vd, trans)

		_ = vd.RegisterValidation("url_template", urlTemplate)
		message("url_template", "{0} must contain exactly one %s placeholder")
		message("min", "{0} must be at least {1}")
		message("max", "{0} must be at most {1}")
	})
	return vd, trans
}

// envName is the env variable behind a field, or the Go name when there is none
func envName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

// urlTemplate accepts a string with exactly one verb, and that verb is %s
func urlTemplate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.Count(s, "%") == 1 && strings.Contains(s, "%s")
}

func message(tag, text string) {
	_ = vd.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Struct validates s. Each failing field is a Validation error carrying the field's env name;
// more than one comes back as a *multierror.Error
func Struct(s any) error {
	v, tr := engine()
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "validate")
	}

	var merr *multierror.Error
	for _, fe := range verrs {
		merr = multierror.Append(merr, perr.WithField(perr.New(perr.ErrorCodeValidation, fe.Translate(tr)), fe.Field()))
	}
	if merr.Len() == 1 {
		return merr.Errors[0]
	}
	return merr
}

// Fields lists the env names err complains about, in struct order
func Fields(err error) []string {
	errs := []error{err}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	}
	var out []string
	for _, e := range errs {
		if pe, ok := perr.As(e); ok && pe.Field() != "" {
			out = append(out, pe.Field())
		}
	}
	return out
}

// MustStruct panics through the logger when s is invalid
func MustStruct(component string, s any) {
	if err := Struct(s); err != nil {
		logger.Get().Panic().Str("component", component).Strs("fields", Fields(err)).Err(err).Msg("invalid options")
	}
}
