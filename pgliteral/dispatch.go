package pgliteral

import "fmt"

// codec serializes values of one family of types.
type codec interface {
	scalar(raw RawValue) (string, error)
	array(arr *Array) (string, error)
}

type typedCodec[T any] struct {
	dec    Decoder[T]
	format func(T, Type) string
}

func (c typedCodec[T]) scalar(raw RawValue) (string, error) {
	v, err := Decode(raw, c.dec)
	if err != nil {
		return "", err
	}
	return c.format(v, raw.Type()), nil
}

func (c typedCodec[T]) array(arr *Array) (string, error) {
	values, err := DecodeArray(arr, c.dec)
	if err != nil {
		return "", err
	}
	return FormatArray(values, arr.ElementType(), c.format), nil
}

func newCodec[T any](dec Decoder[T], format func(T, Type) string) codec {
	return typedCodec[T]{dec: dec, format: format}
}

var codecs = func() map[string]codec {
	m := make(map[string]codec)
	register := func(c codec, names ...string) {
		for _, name := range names {
			m[name] = c
		}
	}
	register(newCodec(TextDecoder, FormatText), TextDecoder.Names()...)
	register(newCodec(BoolDecoder, FormatBool), "bool")
	register(newCodec(CharDecoder, FormatChar), "char")
	register(newCodec(Int2Decoder, FormatInt2), "int2")
	register(newCodec(Int4Decoder, FormatInt4), "int4")
	register(newCodec(Int8Decoder, FormatInt8), "int8")
	register(newCodec(Float4Decoder, FormatFloat4), "float4")
	register(newCodec(Float8Decoder, FormatFloat8), "float8")
	register(newCodec(UUIDDecoder, FormatUUID), "uuid")
	register(newCodec(DateDecoder, FormatDate), "date")
	register(newCodec(TimestampDecoder, FormatTimestamp), "timestamp")
	register(newCodec(TimestamptzDecoder, FormatTimestamptz), "timestamptz")
	register(newCodec(JSONDecoder, FormatJSON), "json")
	register(newCodec(JSONBDecoder, FormatJSON), "jsonb")
	register(newCodec(ByteaDecoder, FormatBytea), "bytea")
	return m
}()

// Supported reports whether values of t can be serialized.
func Supported(t Type) bool {
	switch t.Kind {
	case SimpleKind:
		_, ok := codecs[t.Name]
		return ok
	case ArrayKind:
		return t.Elem != nil && t.Elem.Kind == SimpleKind && Supported(*t.Elem)
	default:
		return false
	}
}

func lookupCodec(t Type) (codec, error) {
	// oid has a binary encoding, but a literal of it is only meaningful
	// in the source database.
	if t.Name == "oid" {
		return nil, &UnsupportedTypeError{Name: t.Name}
	}
	c, ok := codecs[t.Name]
	if !ok {
		return nil, &UnsupportedTypeError{Name: t.Name}
	}
	return c, nil
}

// Serialize decodes value according to t and returns it as a SQL literal.
// A nil value is SQL NULL and serializes to NULL for every type.
//
// value is only read during the call and is not retained.
func Serialize(t Type, value []byte) (string, error) {
	if value == nil {
		return Null, nil
	}
	raw := NewRawValue(t, value)

	switch t.Kind {
	case SimpleKind:
		c, err := lookupCodec(t)
		if err != nil {
			return "", err
		}
		return c.scalar(raw)

	case ArrayKind:
		if t.Elem == nil {
			return "", &UnsupportedTypeError{Name: t.Name}
		}
		if t.Elem.Kind != SimpleKind {
			return "", &UnsupportedTypeError{Name: t.Elem.String()}
		}
		c, err := lookupCodec(*t.Elem)
		if err != nil {
			return "", err
		}
		arr, err := NewArray(raw)
		if err != nil {
			return "", err
		}
		if arr.NDims() > 1 {
			return "", &UnsupportedDimensionalityError{Dimensions: arr.NDims()}
		}
		return c.array(arr)

	default:
		return "", fmt.Errorf("unknown type kind %s for %s", t.Kind, t.Name)
	}
}
