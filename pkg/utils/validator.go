package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	upiRegex     = regexp.MustCompile(`^[\w.-]+@[a-zA-Z]+$`)
	ifscRegex    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// RegisterValidators teaches a validator about decimal amounts and the
// "upi" and "ifsc" tags used by request payloads.
// Decimal fields are validated as float64, so gt=0 and friends work on them.
// Field errors are reported under their json names.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("upi", func(fl validator.FieldLevel) bool {
		return IsUPIID(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("ifsc", func(fl validator.FieldLevel) bool {
		return IsIFSCCode(fl.Field().String())
	})
}

func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

// IsUPIID reports whether s looks like a UPI virtual payment address (name@bank)
func IsUPIID(s string) bool {
	return upiRegex.MatchString(s)
}

// IsIFSCCode reports whether s is an 11 character IFSC code
func IsIFSCCode(s string) bool {
	return ifscRegex.MatchString(s)
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
