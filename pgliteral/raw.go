package pgliteral

// RawValue pairs an undecoded binary column value with its declared type.
//
// A RawValue borrows its bytes from the row buffer it was taken from. It is
// only valid until that buffer is released or reused by the row source, so
// it must not be retained past the call that produced the row.
type RawValue struct {
	bytes []byte
	typ   Type
}

// NewRawValue wraps src without copying it.
func NewRawValue(typ Type, src []byte) RawValue {
	return RawValue{bytes: src, typ: typ}
}

// AcceptsAnyType reports true: a RawValue wraps bytes of any type opaquely.
func (RawValue) AcceptsAnyType() bool { return true }

// Type returns the declared type.
func (r RawValue) Type() Type { return r.typ }

// Bytes returns the borrowed bytes.
func (r RawValue) Bytes() []byte { return r.bytes }

// Decode interprets raw with dec. The declared type must be accepted by dec.
func Decode[T any](raw RawValue, dec Decoder[T]) (T, error) {
	if !dec.Accepts(raw.typ) {
		var zero T
		return zero, &TypeMismatchError{Expected: dec.Names(), Actual: raw.typ}
	}
	return dec.Decode(raw.bytes)
}
