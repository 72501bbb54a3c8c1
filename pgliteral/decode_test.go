package pgliteral

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodersAccept(t *testing.T) {
	tests := []struct {
		name    string
		accepts func(Type) bool
		typ     Type
		want    bool
	}{
		{"text accepts text", TextDecoder.Accepts, SimpleType("text"), true},
		{"text accepts varchar", TextDecoder.Accepts, SimpleType("varchar"), true},
		{"text accepts bpchar", TextDecoder.Accepts, SimpleType("bpchar"), true},
		{"text accepts name", TextDecoder.Accepts, SimpleType("name"), true},
		{"text accepts unknown", TextDecoder.Accepts, SimpleType("unknown"), true},
		{"text rejects uuid", TextDecoder.Accepts, SimpleType("uuid"), false},
		{"text rejects text array", TextDecoder.Accepts, ArrayType("_text", SimpleType("text")), false},
		{"uuid accepts uuid", UUIDDecoder.Accepts, SimpleType("uuid"), true},
		{"int4 rejects int8", Int4Decoder.Accepts, SimpleType("int8"), false},
		{"json rejects jsonb", JSONDecoder.Accepts, SimpleType("jsonb"), false},
		{"jsonb accepts jsonb", JSONBDecoder.Accepts, SimpleType("jsonb"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.accepts(tt.typ))
		})
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	raw := NewRawValue(SimpleType("int8"), be64(1))
	_, err := Decode(raw, Int4Decoder)

	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, []string{"int4"}, mismatch.Expected)
	assert.Equal(t, "int8", mismatch.Actual.Name)
	assert.Equal(t, KindTypeMismatch, ErrorKind(err))
}

func TestRawValueBorrows(t *testing.T) {
	buf := []byte("hello")
	raw := NewRawValue(SimpleType("text"), buf)
	assert.True(t, raw.AcceptsAnyType())
	assert.Same(t, &buf[0], &raw.Bytes()[0])
}

func TestDecodeScalars(t *testing.T) {
	t.Run("int2", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("int2"), be16(-42)), Int2Decoder)
		require.NoError(t, err)
		assert.Equal(t, int16(-42), v)
	})
	t.Run("int4", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("int4"), be32(65537)), Int4Decoder)
		require.NoError(t, err)
		assert.Equal(t, int32(65537), v)
	})
	t.Run("int8", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("int8"), be64(4294967297)), Int8Decoder)
		require.NoError(t, err)
		assert.Equal(t, int64(4294967297), v)
	})
	t.Run("char", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("char"), []byte{'a'}), CharDecoder)
		require.NoError(t, err)
		assert.Equal(t, int8(97), v)
	})
	t.Run("float4", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("float4"), f32(3.142)), Float4Decoder)
		require.NoError(t, err)
		assert.Equal(t, float32(3.142), v)
	})
	t.Run("float8 NaN", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("float8"), f64(math.NaN())), Float8Decoder)
		require.NoError(t, err)
		assert.True(t, math.IsNaN(v))
	})
	t.Run("bool", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("bool"), []byte{1}), BoolDecoder)
		require.NoError(t, err)
		assert.True(t, v)
	})
	t.Run("uuid", func(t *testing.T) {
		u := uuid.MustParse("3c8bc504-5281-471b-bd3d-0aa82da7c6c1")
		v, err := Decode(NewRawValue(SimpleType("uuid"), u[:]), UUIDDecoder)
		require.NoError(t, err)
		assert.Equal(t, u, v)
	})
	t.Run("date", func(t *testing.T) {
		want := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
		v, err := Decode(NewRawValue(SimpleType("date"), dateBytes(want)), DateDecoder)
		require.NoError(t, err)
		assert.True(t, want.Equal(v.Time))
		assert.Equal(t, pgtype.Finite, v.InfinityModifier)
	})
	t.Run("date before epoch", func(t *testing.T) {
		want := time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC)
		v, err := Decode(NewRawValue(SimpleType("date"), be32(-1)), DateDecoder)
		require.NoError(t, err)
		assert.True(t, want.Equal(v.Time))
	})
	t.Run("timestamptz", func(t *testing.T) {
		want := time.Date(2020, time.January, 1, 1, 30, 0, 123456000, time.UTC)
		v, err := Decode(NewRawValue(SimpleType("timestamptz"), timestampBytes(want)), TimestamptzDecoder)
		require.NoError(t, err)
		assert.True(t, want.Equal(v.Time), "got %s", v.Time)
	})
	t.Run("timestamptz before epoch", func(t *testing.T) {
		want := time.Date(1999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
		v, err := Decode(NewRawValue(SimpleType("timestamptz"), be64(-1)), TimestamptzDecoder)
		require.NoError(t, err)
		assert.True(t, want.Equal(v.Time), "got %s", v.Time)
	})
	t.Run("timestamptz infinity", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("timestamptz"), be64(math.MaxInt64)), TimestamptzDecoder)
		require.NoError(t, err)
		assert.Equal(t, pgtype.Infinity, v.InfinityModifier)
	})
	t.Run("jsonb", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("jsonb"), []byte("\x01{\"b\": 1.50, \"a\": [true, null]}")), JSONBDecoder)
		require.NoError(t, err)
		assert.Equal(t, `{"a":[true,null],"b":1.50}`, v.Text)
		tree, ok := v.Value.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, json.Number("1.50"), tree["b"])
	})
	t.Run("json keeps html characters", func(t *testing.T) {
		v, err := Decode(NewRawValue(SimpleType("json"), []byte(`"<a&b>"`)), JSONDecoder)
		require.NoError(t, err)
		assert.Equal(t, `"<a&b>"`, v.Text)
	})
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		decode func() error
	}{
		{"short int4", func() error { _, err := Int4Decoder.Decode([]byte{0, 1}); return err }},
		{"long int2", func() error { _, err := Int2Decoder.Decode([]byte{0, 1, 2}); return err }},
		{"short int8", func() error { _, err := Int8Decoder.Decode(be32(1)); return err }},
		{"short float8", func() error { _, err := Float8Decoder.Decode(f32(1)); return err }},
		{"bool byte 2", func() error { _, err := BoolDecoder.Decode([]byte{2}); return err }},
		{"empty bool", func() error { _, err := BoolDecoder.Decode([]byte{}); return err }},
		{"uuid 15 bytes", func() error { _, err := UUIDDecoder.Decode(make([]byte, 15)); return err }},
		{"short date", func() error { _, err := DateDecoder.Decode([]byte{0}); return err }},
		{"short timestamptz", func() error { _, err := TimestamptzDecoder.Decode(be32(0)); return err }},
		{"invalid utf8 text", func() error { _, err := TextDecoder.Decode([]byte{0xff, 0xfe}); return err }},
		{"jsonb missing version", func() error { _, err := JSONBDecoder.Decode([]byte{}); return err }},
		{"jsonb version 2", func() error { _, err := JSONBDecoder.Decode([]byte("\x02{}")); return err }},
		{"json syntax", func() error { _, err := JSONDecoder.Decode([]byte(`{"a":`)); return err }},
		{"json trailing", func() error { _, err := JSONDecoder.Decode([]byte(`{} {}`)); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			var malformed *MalformedValueError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, KindMalformedValue, ErrorKind(err))
		})
	}
}
