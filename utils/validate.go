package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the validate tags on a request struct and flattens
// field errors into a single client-facing message.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var parts []string
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
