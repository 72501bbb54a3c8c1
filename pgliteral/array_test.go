package pgliteral

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolArrayType() Type {
	return ArrayType("_bool", SimpleType("bool").WithOID(OidBool)).WithOID(OidBoolArray)
}

func TestNewArrayEnvelope(t *testing.T) {
	src := encodeList(OidBool, []byte{1}, nil, []byte{0})
	arr, err := NewArray(NewRawValue(boolArrayType(), src))
	require.NoError(t, err)

	assert.True(t, arr.HasNulls())
	assert.Equal(t, "bool", arr.ElementType().Name)
	assert.Equal(t, OidBool, arr.ElementOID())
	assert.Equal(t, 1, arr.NDims())
	assert.Equal(t, 3, arr.Len())
	assert.Equal(t, []Dimension{{Size: 3, LowerBound: 1}}, arr.Dimensions())
	// Dimensions is restartable and independent of the element cursor.
	assert.Equal(t, arr.Dimensions(), arr.Dimensions())
}

func TestArrayElementsSinglePass(t *testing.T) {
	src := encodeList(OidBool, []byte{1}, nil, []byte{0})
	arr, err := NewArray(NewRawValue(boolArrayType(), src))
	require.NoError(t, err)

	values := arr.Elements()
	var got []*bool
	for values.Next() {
		raw, ok := values.Value()
		if !ok {
			got = append(got, nil)
			continue
		}
		assert.Equal(t, "bool", raw.Type().Name)
		v, err := Decode(raw, BoolDecoder)
		require.NoError(t, err)
		got = append(got, &v)
	}
	require.NoError(t, values.Err())
	require.Len(t, got, 3)
	assert.True(t, *got[0])
	assert.Nil(t, got[1])
	assert.False(t, *got[2])

	again := arr.Elements()
	assert.False(t, again.Next(), "second traversal must be exhausted")

	_, err = DecodeArray(arr, BoolDecoder)
	assert.Error(t, err)

	// Re-deriving from the original value allows a new traversal.
	arr, err = NewArray(NewRawValue(boolArrayType(), src))
	require.NoError(t, err)
	decoded, err := DecodeArray(arr, BoolDecoder)
	require.NoError(t, err)
	assert.Equal(t, []Nullable[bool]{{Value: true, Valid: true}, {}, {Value: false, Valid: true}}, decoded)
}

func TestArrayElementsBorrow(t *testing.T) {
	src := encodeList(OidText, []byte("abc"))
	arr, err := NewArray(NewRawValue(ArrayType("_text", SimpleType("text")), src))
	require.NoError(t, err)

	values := arr.Elements()
	require.True(t, values.Next())
	raw, ok := values.Value()
	require.True(t, ok)
	assert.Same(t, &src[len(src)-3], &raw.Bytes()[0])
}

func TestNewArrayEmpty(t *testing.T) {
	for name, src := range map[string][]byte{
		"zero dimensions":     encodeArray(OidInt4, nil, nil),
		"one empty dimension": encodeArray(OidInt4, []Dimension{{Size: 0, LowerBound: 1}}, nil),
	} {
		t.Run(name, func(t *testing.T) {
			arr, err := NewArray(NewRawValue(ArrayType("_int4", SimpleType("int4")), src))
			require.NoError(t, err)
			assert.Equal(t, 0, arr.Len())
			assert.False(t, arr.Elements().Next())
		})
	}
}

func TestNewArrayMultiDimensional(t *testing.T) {
	src := encodeArray(OidInt4,
		[]Dimension{{Size: 2, LowerBound: 1}, {Size: 2, LowerBound: 1}},
		[][]byte{be32(1), be32(2), be32(3), be32(4)})
	arr, err := NewArray(NewRawValue(ArrayType("_int4", SimpleType("int4")), src))
	require.NoError(t, err)
	assert.Equal(t, 2, arr.NDims())
	assert.Equal(t, 4, arr.Len())
}

func TestNewArrayMalformed(t *testing.T) {
	valid := encodeList(OidInt4, be32(1), be32(2))
	noNullFlag := encodeList(OidInt4, be32(1), nil)
	noNullFlag[7] = 0

	tests := []struct {
		name string
		src  []byte
	}{
		{"empty", []byte{}},
		{"short header", valid[:8]},
		{"truncated dimensions", valid[:16]},
		{"negative ndim", append(be32(-1), valid[4:]...)},
		{"bad flags", append(append(be32(1), be32(7)...), valid[8:]...)},
		{"too few elements", valid[:len(valid)-8]},
		{"truncated element", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0)},
		{"too many slots", encodeArray(OidInt4, []Dimension{{Size: 3, LowerBound: 1}}, [][]byte{be32(1), be32(2)})},
		{"negative size", encodeArray(OidInt4, []Dimension{{Size: -1, LowerBound: 1}}, nil)},
		{"invalid element length", append(append([]byte{}, valid[:20]...), be32(-2)...)},
		{"null without flag", noNullFlag},
		{"element OID mismatch", encodeList(OidInt8, be64(1))},
	}

	typ := ArrayType("_int4", SimpleType("int4").WithOID(OidInt4)).WithOID(OidInt4Array)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArray(NewRawValue(typ, tt.src))
			var malformed *MalformedArrayError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, KindMalformedArray, ErrorKind(err))
		})
	}
}

func TestNewArrayRequiresArrayType(t *testing.T) {
	_, err := NewArray(NewRawValue(SimpleType("int4"), encodeList(OidInt4)))
	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestDecodeArrayElementFailure(t *testing.T) {
	src := encodeList(OidInt4, be32(1), []byte{1, 2})
	arr, err := NewArray(NewRawValue(ArrayType("_int4", SimpleType("int4")), src))
	require.NoError(t, err)

	_, err = DecodeArray(arr, Int4Decoder)
	var malformed *MalformedValueError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "int4", malformed.Type)
}

func TestDecodeArrayElementTypeMismatch(t *testing.T) {
	src := encodeList(OidInt4, be32(1))
	arr, err := NewArray(NewRawValue(ArrayType("_int4", SimpleType("int4")), src))
	require.NoError(t, err)

	_, err = DecodeArray(arr, Int8Decoder)
	assert.Equal(t, KindTypeMismatch, ErrorKind(err))
}
