package pgliteral

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Dimension is one axis of an array value.
type Dimension struct {
	Size       int32
	LowerBound int32
}

// Array is a parsed binary array value. The header is decoded eagerly;
// elements are handed out lazily by Elements, borrowing from the original
// bytes.
//
// The binary layout is:
//
//	int32  ndim
//	int32  has nulls (0 or 1)
//	uint32 element type OID
//	ndim × (int32 size, int32 lower bound)
//	per element: int32 length (-1 for NULL) followed by length bytes
type Array struct {
	elemType Type
	elemOID  uint32
	hasNulls bool
	dims     []Dimension
	slots    int
	elements []byte
	iterated bool
}

const arrayHeaderLen = 12

// NewArray parses the array envelope of raw. The element stream is walked
// once to check it holds exactly one slot per element, but no element is
// decoded.
func NewArray(raw RawValue) (*Array, error) {
	typ := raw.Type()
	if !typ.IsArray() {
		return nil, &TypeMismatchError{Expected: []string{"array"}, Actual: typ}
	}
	src := raw.Bytes()
	if len(src) < arrayHeaderLen {
		return nil, &MalformedArrayError{Reason: fmt.Sprintf("header needs %d bytes, got %d", arrayHeaderLen, len(src))}
	}

	ndim := int32(binary.BigEndian.Uint32(src))
	flags := int32(binary.BigEndian.Uint32(src[4:]))
	elemOID := binary.BigEndian.Uint32(src[8:])
	rp := arrayHeaderLen

	if ndim < 0 {
		return nil, &MalformedArrayError{Reason: fmt.Sprintf("negative dimension count %d", ndim)}
	}
	if flags != 0 && flags != 1 {
		return nil, &MalformedArrayError{Reason: fmt.Sprintf("invalid flags %d", flags)}
	}
	if typ.Elem.OID != 0 && elemOID != typ.Elem.OID {
		return nil, &MalformedArrayError{Reason: fmt.Sprintf("element OID %d does not match declared %s (%d)", elemOID, typ.Elem.Name, typ.Elem.OID)}
	}
	if len(src)-rp < int(ndim)*8 {
		return nil, &MalformedArrayError{Reason: fmt.Sprintf("truncated header for %d dimensions", ndim)}
	}

	arr := &Array{
		elemType: *typ.Elem,
		elemOID:  elemOID,
		hasNulls: flags == 1,
		dims:     make([]Dimension, ndim),
	}

	slots := 0
	if ndim > 0 {
		slots = 1
	}
	for i := range arr.dims {
		size := int32(binary.BigEndian.Uint32(src[rp:]))
		lower := int32(binary.BigEndian.Uint32(src[rp+4:]))
		rp += 8
		if size < 0 {
			return nil, &MalformedArrayError{Reason: fmt.Sprintf("negative size %d for dimension %d", size, i+1)}
		}
		arr.dims[i] = Dimension{Size: size, LowerBound: lower}
		slots *= int(size)
		// Each slot needs at least its length prefix.
		if slots > (len(src)-rp)/4 {
			return nil, &MalformedArrayError{Reason: "element count exceeds data length"}
		}
	}

	arr.slots = slots
	arr.elements = src[rp:]
	if err := arr.validateElements(); err != nil {
		return nil, err
	}
	return arr, nil
}

func (a *Array) validateElements() error {
	rp := 0
	nulls := false
	for i := 0; i < a.slots; i++ {
		n, next, err := readElementLen(a.elements, rp)
		if err != nil {
			return err
		}
		if n < 0 {
			nulls = true
			rp = next
			continue
		}
		rp = next + int(n)
	}
	if rp != len(a.elements) {
		return &MalformedArrayError{Reason: fmt.Sprintf("%d trailing bytes after %d elements", len(a.elements)-rp, a.slots)}
	}
	if nulls && !a.hasNulls {
		return &MalformedArrayError{Reason: "NULL element in array without null flag"}
	}
	return nil
}

// readElementLen reads the length prefix at rp and returns the length and
// the offset of the element data. It fails when the prefix or data is truncated.
func readElementLen(src []byte, rp int) (int32, int, error) {
	if len(src)-rp < 4 {
		return 0, 0, &MalformedArrayError{Reason: "truncated element length"}
	}
	n := int32(binary.BigEndian.Uint32(src[rp:]))
	rp += 4
	if n < -1 {
		return 0, 0, &MalformedArrayError{Reason: fmt.Sprintf("invalid element length %d", n)}
	}
	if n > 0 && int(n) > len(src)-rp {
		return 0, 0, &MalformedArrayError{Reason: fmt.Sprintf("element length %d exceeds remaining %d bytes", n, len(src)-rp)}
	}
	return n, rp, nil
}

// HasNulls reports whether the header flags NULL elements.
func (a *Array) HasNulls() bool { return a.hasNulls }

// ElementType returns the declared element type.
func (a *Array) ElementType() Type { return a.elemType }

// ElementOID returns the element type OID recorded in the header.
func (a *Array) ElementOID() uint32 { return a.elemOID }

// NDims returns the number of dimensions.
func (a *Array) NDims() int { return len(a.dims) }

// Len returns the total number of element slots, NULLs included.
func (a *Array) Len() int { return a.slots }

// Dimensions returns a copy of the dimension list. It may be called any
// number of times and does not affect Elements.
func (a *Array) Dimensions() []Dimension {
	dims := make([]Dimension, len(a.dims))
	copy(dims, a.dims)
	return dims
}

// Elements returns a single-pass cursor over the element slots in storage
// order. Only the first call yields elements; later calls return an
// exhausted cursor. Parse the RawValue again to traverse twice.
func (a *Array) Elements() *ArrayValues {
	if a.iterated {
		return &ArrayValues{elemType: a.elemType}
	}
	a.iterated = true
	return &ArrayValues{elemType: a.elemType, src: a.elements, remaining: a.slots}
}

// ArrayValues iterates over array element slots.
//
//	values := arr.Elements()
//	for values.Next() {
//		raw, ok := values.Value()
//		...
//	}
//	if err := values.Err(); err != nil { ... }
type ArrayValues struct {
	elemType  Type
	src       []byte
	rp        int
	remaining int
	cur       RawValue
	valid     bool
	err       error
}

// Next advances to the next slot.
func (it *ArrayValues) Next() bool {
	if it.err != nil || it.remaining == 0 {
		return false
	}
	n, next, err := readElementLen(it.src, it.rp)
	if err != nil {
		it.err = err
		return false
	}
	it.remaining--
	if n < 0 {
		it.rp = next
		it.cur = RawValue{}
		it.valid = false
		return true
	}
	end := next + int(n)
	it.cur = NewRawValue(it.elemType, it.src[next:end:end])
	it.valid = true
	it.rp = end
	return true
}

// Value returns the current element; ok is false for NULL.
func (it *ArrayValues) Value() (RawValue, bool) {
	return it.cur, it.valid
}

// Err returns the error that stopped iteration, if any.
func (it *ArrayValues) Err() error { return it.err }

// DecodeArray decodes every element of arr with dec. The element stream is
// consumed.
func DecodeArray[T any](arr *Array, dec Decoder[T]) ([]Nullable[T], error) {
	if arr.iterated {
		return nil, errors.New("array elements already consumed")
	}
	out := make([]Nullable[T], 0, arr.Len())
	values := arr.Elements()
	for values.Next() {
		raw, ok := values.Value()
		if !ok {
			out = append(out, Nullable[T]{})
			continue
		}
		v, err := Decode(raw, dec)
		if err != nil {
			return nil, err
		}
		out = append(out, Nullable[T]{Value: v, Valid: true})
	}
	if err := values.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
