// Package validate checks form and request payloads before they reach the network.
// It is used by the session manager, the user store, and the web UI.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/me/authapp/pkg/model"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// labels maps struct field names to what a user sees.
var labels = map[string]string{
	"Email":           "Email",
	"Password":        "Password",
	"CurrentPassword": "Current password",
	"NewPassword":     "New password",
	"Roles":           "Role",
}

// Error carries per-field messages. It unwraps to model.ErrValidation.
type Error struct {
	Fields map[string]string
	order  []string
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.order))
	for _, f := range e.order {
		msgs = append(msgs, e.Fields[f])
	}
	return strings.Join(msgs, "; ")
}

// First returns the first field message.
func (e *Error) First() string {
	if len(e.order) == 0 {
		return ""
	}
	return e.Fields[e.order[0]]
}

func (e *Error) Unwrap() error { return model.ErrValidation }

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		name := fieldName(fe)
		if _, seen := out.Fields[name]; seen {
			continue
		}
		out.Fields[name] = message(fe)
		out.order = append(out.order, name)
	}
	return out
}

// Message returns the text to show for a validation failure.
func Message(err error) string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.First()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func message(fe validator.FieldError) string {
	name := fieldName(fe)
	label, ok := labels[name]
	if !ok {
		label = name
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return label + " is invalid"
	}
}

// fieldName strips slice indexes such as Roles[0].
func fieldName(fe validator.FieldError) string {
	name := fe.StructField()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}
