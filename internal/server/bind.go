package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

// queryValidator returns the shared validator; messages use query parameter names.
func queryValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := queryName(fld); name != "" {
				return name
			}
			return fld.Name
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)
		vSvc = &validatorSvc{validate: v, translator: trans}
	})
	return vSvc
}

func queryName(fld reflect.StructField) string {
	tag := fld.Tag.Get("query")
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "-" {
		return ""
	}
	return tag
}

// bindQuery fills the string and float64 fields of dst from r's query parameters
// by their `query` tag, then validates dst.
func bindQuery(r *http.Request, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind: want pointer to struct, got %T", dst)
	}
	q := r.URL.Query()
	sv := rv.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		name := queryName(st.Field(i))
		if name == "" || !q.Has(name) {
			continue
		}
		raw := strings.TrimSpace(q.Get(name))
		f := sv.Field(i)
		switch f.Kind() {
		case reflect.String:
			f.SetString(raw)
		case reflect.Float64:
			if raw == "" {
				continue
			}
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("%s must be a number", name)
			}
			f.SetFloat(n)
		}
	}

	svc := queryValidator()
	if err := svc.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(verrs[0].Translate(svc.translator))
		}
		return err
	}
	return nil
}
