package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RegisterValidators installs custom binding validators on gin's
// validator engine. Safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("decimal", validDecimal)
}

// validDecimal accepts strings that parse as a decimal number.
// Empty strings pass; pair with required when the field is mandatory.
func validDecimal(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}
