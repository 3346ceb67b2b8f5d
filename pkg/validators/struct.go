package validators

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected input field, named by its json tag
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}

		return name
	})

	v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return PasswordValidator(fl.Field().String()) == nil
	})

	v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return EmailValidator(fl.Field().String()) == nil
	})

	return v
}

// Struct validates s against its `validate` tags. A nil result means the
// input is acceptable
func Struct(s any) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}

	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Bool {
			return fmt.Sprintf("%s must be accepted", fe.Field())
		}
		return fmt.Sprintf("%s is required", fe.Field())
	case "address", "email":
		return EmailValidator(fmt.Sprint(fe.Value())).Error()
	case "password":
		return PasswordValidator(fmt.Sprint(fe.Value())).Error()
	case "eqfield":
		return "passwords do not match"
	case "e164":
		return "invalid phone number provided"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}

	return fmt.Sprintf("%s is invalid", fe.Field())
}
