package paravision

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for a parameter file kind outside the fixed set.
	ErrUnknownKind = errors.New("unknown parameter file kind")

	// ErrMissingField marks a required parameter that is not declared.
	ErrMissingField = errors.New("missing parameter")

	// ErrFieldType marks a parameter whose value has an unexpected encoding.
	ErrFieldType = errors.New("unexpected parameter type")
)

// FieldError names the parameter responsible for a failure.
type FieldError struct {
	Kind  error
	File  Kind
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	if e == nil {
		return ""
	}
	where := e.Field
	if e.File != "" {
		where = fmt.Sprintf("%s[%s]", e.File, e.Field)
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), where)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind.Error(), where, e.Msg)
}

func (e *FieldError) Unwrap() error { return e.Kind }

func missing(file Kind, field string) error {
	return &FieldError{Kind: ErrMissingField, File: file, Field: field}
}

func mistyped(file Kind, field, want string, got Value) error {
	return &FieldError{
		Kind:  ErrFieldType,
		File:  file,
		Field: field,
		Msg:   fmt.Sprintf("want %s, got %s %q", want, got.Type, got.String()),
	}
}
