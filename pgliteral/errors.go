package pgliteral

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by ErrorKind.
const (
	KindTypeMismatch              = "type_mismatch"
	KindMalformedArray            = "malformed_array"
	KindMalformedValue            = "malformed_value"
	KindUnsupportedDimensionality = "unsupported_dimensionality"
	KindUnsupportedType           = "unsupported_type"
	KindOther                     = "other"
)

// TypeMismatchError is returned when a decoder is handed a value whose
// declared type it does not accept. It always points at a dispatch bug.
type TypeMismatchError struct {
	Expected []string
	Actual   Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot decode %s as one of [%s]", e.Actual, strings.Join(e.Expected, ", "))
}

// MalformedArrayError is returned when the binary array header or element
// stream is structurally invalid.
type MalformedArrayError struct {
	Reason string
}

func (e *MalformedArrayError) Error() string {
	return "malformed array: " + e.Reason
}

// MalformedValueError is returned when a value's bytes do not match the
// binary encoding of its type.
type MalformedValueError struct {
	Type   string
	Reason string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed %s value: %s", e.Type, e.Reason)
}

// UnsupportedDimensionalityError is returned for arrays with more than one
// dimension.
type UnsupportedDimensionalityError struct {
	Dimensions int
}

func (e *UnsupportedDimensionalityError) Error() string {
	return fmt.Sprintf("array contains too many dimensions: %d (only one is supported)", e.Dimensions)
}

// UnsupportedTypeError is returned for types without a decoder, such as oid.
type UnsupportedTypeError struct {
	Name string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("type %s not supported", e.Name)
}

func malformed(typ, format string, args ...any) error {
	return &MalformedValueError{Type: typ, Reason: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies err into one of the Kind* constants.
func ErrorKind(err error) string {
	var (
		mismatch *TypeMismatchError
		array    *MalformedArrayError
		value    *MalformedValueError
		dims     *UnsupportedDimensionalityError
		typ      *UnsupportedTypeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mismatch):
		return KindTypeMismatch
	case errors.As(err, &array):
		return KindMalformedArray
	case errors.As(err, &value):
		return KindMalformedValue
	case errors.As(err, &dims):
		return KindUnsupportedDimensionality
	case errors.As(err, &typ):
		return KindUnsupportedType
	default:
		return KindOther
	}
}
