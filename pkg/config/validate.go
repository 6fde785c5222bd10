package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ErrInvalidSettings wraps every validation failure returned by Validate
var ErrInvalidSettings = errors.New("invalid settings")

var (
	vOnce  sync.Once
	vCheck *validator.Validate
	vTrans ut.Translator
)

func validatorInstance() (*validator.Validate, ut.Translator) {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// report fields by the variable that sets them
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if tag := fld.Tag.Get("env"); tag != "" {
				return tag
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		vCheck, vTrans = v, trans
	})
	return vCheck, vTrans
}

// Validate checks the settings before any connection is opened. Every
// failing field is reported, sorted by name.
func (s Settings) Validate() error {
	v, trans := validatorInstance()
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(msgs, "; "))
}
