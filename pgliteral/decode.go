package pgliteral

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Decoder turns the binary wire encoding of one PostgreSQL type into a Go
// value.
type Decoder[T any] interface {
	// Accepts reports whether values declared as t can be decoded.
	Accepts(t Type) bool
	// Names lists the accepted type names.
	Names() []string
	Decode(src []byte) (T, error)
}

// Nullable is a decoded value that may be SQL NULL.
type Nullable[T any] struct {
	Value T
	Valid bool
}

type scalarDecoder[T any] struct {
	names  []string
	decode func(src []byte) (T, error)
}

func (d scalarDecoder[T]) Accepts(t Type) bool {
	return t.Kind == SimpleKind && slices.Contains(d.names, t.Name)
}

func (d scalarDecoder[T]) Names() []string {
	return slices.Clone(d.names)
}

func (d scalarDecoder[T]) Decode(src []byte) (T, error) {
	return d.decode(src)
}

func newDecoder[T any](decode func([]byte) (T, error), names ...string) Decoder[T] {
	return scalarDecoder[T]{names: names, decode: decode}
}

// Decoders for the supported types.
var (
	TextDecoder        = newDecoder(decodeText, "text", "varchar", "bpchar", "name", "unknown")
	BoolDecoder        = newDecoder(decodeBool, "bool")
	CharDecoder        = newDecoder(decodeChar, "char")
	Int2Decoder        = newDecoder(decodeInt2, "int2")
	Int4Decoder        = newDecoder(decodeInt4, "int4")
	Int8Decoder        = newDecoder(decodeInt8, "int8")
	Float4Decoder      = newDecoder(decodeFloat4, "float4")
	Float8Decoder      = newDecoder(decodeFloat8, "float8")
	UUIDDecoder        = newDecoder(decodeUUID, "uuid")
	DateDecoder        = newDecoder(decodeDate, "date")
	TimestampDecoder   = newDecoder(decodeTimestamp, "timestamp")
	TimestamptzDecoder = newDecoder(decodeTimestamptz, "timestamptz")
	JSONDecoder        = newDecoder(decodeJSON, "json")
	JSONBDecoder       = newDecoder(decodeJSONB, "jsonb")
	ByteaDecoder       = newDecoder(decodeBytea, "bytea")
)

func fixedWidth(typ string, src []byte, n int) error {
	if len(src) != n {
		return malformed(typ, "expected %d bytes, got %d", n, len(src))
	}
	return nil
}

func decodeText(src []byte) (string, error) {
	if !utf8.Valid(src) {
		return "", malformed("text", "invalid UTF-8")
	}
	return string(src), nil
}

func decodeBool(src []byte) (bool, error) {
	if err := fixedWidth("bool", src, 1); err != nil {
		return false, err
	}
	switch src[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, malformed("bool", "invalid byte 0x%02x", src[0])
	}
}

func decodeChar(src []byte) (int8, error) {
	if err := fixedWidth("char", src, 1); err != nil {
		return 0, err
	}
	return int8(src[0]), nil
}

func decodeInt2(src []byte) (int16, error) {
	if err := fixedWidth("int2", src, 2); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(src)), nil
}

func decodeInt4(src []byte) (int32, error) {
	if err := fixedWidth("int4", src, 4); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(src)), nil
}

func decodeInt8(src []byte) (int64, error) {
	if err := fixedWidth("int8", src, 8); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(src)), nil
}

func decodeFloat4(src []byte) (float32, error) {
	if err := fixedWidth("float4", src, 4); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(src)), nil
}

func decodeFloat8(src []byte) (float64, error) {
	if err := fixedWidth("float8", src, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(src)), nil
}

func decodeUUID(src []byte) (uuid.UUID, error) {
	u, err := uuid.FromBytes(src)
	if err != nil {
		return uuid.Nil, malformed("uuid", "%v", err)
	}
	return u, nil
}

// PostgreSQL epoch is 2000-01-01, Unix epoch is 1970-01-01
var pgEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const pgEpochSeconds = 946684800

func decodeDate(src []byte) (pgtype.Date, error) {
	if err := fixedWidth("date", src, 4); err != nil {
		return pgtype.Date{}, err
	}
	days := int32(binary.BigEndian.Uint32(src))
	switch days {
	case math.MaxInt32:
		return pgtype.Date{InfinityModifier: pgtype.Infinity, Valid: true}, nil
	case math.MinInt32:
		return pgtype.Date{InfinityModifier: pgtype.NegativeInfinity, Valid: true}, nil
	}
	return pgtype.Date{Time: pgEpoch.AddDate(0, 0, int(days)), Valid: true}, nil
}

// microsToTime converts microseconds since the PostgreSQL epoch without
// overflowing time.Duration for far-off values.
func microsToTime(micros int64) time.Time {
	secs := micros / 1_000_000
	rem := micros % 1_000_000
	if rem < 0 {
		rem += 1_000_000
		secs--
	}
	return time.Unix(secs+pgEpochSeconds, rem*1000).UTC()
}

func decodeTimestamp(src []byte) (pgtype.Timestamp, error) {
	if err := fixedWidth("timestamp", src, 8); err != nil {
		return pgtype.Timestamp{}, err
	}
	micros := int64(binary.BigEndian.Uint64(src))
	switch micros {
	case math.MaxInt64:
		return pgtype.Timestamp{InfinityModifier: pgtype.Infinity, Valid: true}, nil
	case math.MinInt64:
		return pgtype.Timestamp{InfinityModifier: pgtype.NegativeInfinity, Valid: true}, nil
	}
	return pgtype.Timestamp{Time: microsToTime(micros), Valid: true}, nil
}

func decodeTimestamptz(src []byte) (pgtype.Timestamptz, error) {
	if err := fixedWidth("timestamptz", src, 8); err != nil {
		return pgtype.Timestamptz{}, err
	}
	micros := int64(binary.BigEndian.Uint64(src))
	switch micros {
	case math.MaxInt64:
		return pgtype.Timestamptz{InfinityModifier: pgtype.Infinity, Valid: true}, nil
	case math.MinInt64:
		return pgtype.Timestamptz{InfinityModifier: pgtype.NegativeInfinity, Valid: true}, nil
	}
	return pgtype.Timestamptz{Time: microsToTime(micros), Valid: true}, nil
}

// JSON is a decoded json or jsonb value. Numbers are kept as json.Number so
// no precision is lost; Text is the compact encoding with sorted keys.
type JSON struct {
	Value any
	Text  string
}

func parseJSON(typ string, src []byte) (JSON, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return JSON{}, malformed(typ, "%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return JSON{}, malformed(typ, "trailing data after JSON value")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return JSON{}, malformed(typ, "%v", err)
	}
	return JSON{Value: v, Text: strings.TrimSuffix(buf.String(), "\n")}, nil
}

func decodeJSON(src []byte) (JSON, error) {
	return parseJSON("json", src)
}

// jsonb is sent as a version byte followed by the JSON text.
func decodeJSONB(src []byte) (JSON, error) {
	if len(src) == 0 {
		return JSON{}, malformed("jsonb", "missing version byte")
	}
	if src[0] != 1 {
		return JSON{}, malformed("jsonb", "unsupported version %d", src[0])
	}
	return parseJSON("jsonb", src[1:])
}

func decodeBytea(src []byte) ([]byte, error) {
	return src, nil
}
