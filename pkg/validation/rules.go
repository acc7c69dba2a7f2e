// Package validation provides custom jellydator/validation rules shared by
// every DTO in the Users and Orders HTTP layers.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/ordersync/platform/pkg/platformerrors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// WrapValidationError wraps a jellydator/validation error as
// platformerrors.ErrValidation so httpapi.WriteError maps it to 400.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return platformerrors.Wrap(platformerrors.ErrValidation, err.Error())
}

// Email validates email format.
var Email = validation.NewStringRuleWithError(
	func(s string) bool { return emailRegex.MatchString(s) },
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool { return strings.TrimSpace(s) != "" },
	validation.NewError("validation_not_blank", "must not be blank"),
)
