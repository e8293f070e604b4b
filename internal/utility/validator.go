package utility

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator plugs validator/v10 into echo's c.Validate.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator reports fields by their json names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// ValidationDetails flattens validator errors into field -> failed rule.
func ValidationDetails(err error) map[string]string {
	details := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		details["request"] = err.Error()
		return details
	}
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		details[fe.Field()] = rule
	}
	return details
}
