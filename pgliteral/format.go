package pgliteral

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"
)

// Null is the literal for SQL NULL.
const Null = "NULL"

// QuoteText renders s as a string literal. Single quotes are doubled; when
// s contains a backslash the literal uses the E'' form with backslashes
// doubled, so it reads back the same whatever standard_conforming_strings is.
func QuoteText(s string) string {
	return strings.TrimLeft(pq.QuoteLiteral(s), " ")
}

// CastName returns the name to use after :: for t.
func CastName(t Type) string {
	switch t.Name {
	case "char":
		// Bare char means character(1).
		return `"char"`
	case "unknown":
		return "text"
	default:
		return t.Name
	}
}

// FormatText renders v as a quoted string literal.
func FormatText(v string, _ Type) string {
	return QuoteText(v)
}

// FormatBool renders true or false.
func FormatBool(v bool, _ Type) string {
	if v {
		return "true"
	}
	return "false"
}

// FormatChar renders a "char" byte as a number cast to "char".
func FormatChar(v int8, _ Type) string {
	if v < 0 {
		return "(" + strconv.Itoa(int(v)) + `)::"char"`
	}
	return strconv.Itoa(int(v)) + `::"char"`
}

// FormatInt2 renders v in decimal.
func FormatInt2(v int16, _ Type) string { return strconv.FormatInt(int64(v), 10) }

// FormatInt4 renders v in decimal.
func FormatInt4(v int32, _ Type) string { return strconv.FormatInt(int64(v), 10) }

// FormatInt8 renders v in decimal.
func FormatInt8(v int64, _ Type) string { return strconv.FormatInt(v, 10) }

// formatFloat renders v with the shortest digits that read back exactly.
// Non-finite values are quoted and cast, otherwise an unknown literal next
// to plain numbers in an ARRAY[] resolves as numeric.
func formatFloat(v float64, bitSize int) string {
	cast := "::float8"
	if bitSize == 32 {
		cast = "::float4"
	}
	switch {
	case math.IsNaN(v):
		return "'NaN'" + cast
	case math.IsInf(v, 1):
		return "'Infinity'" + cast
	case math.IsInf(v, -1):
		return "'-Infinity'" + cast
	}
	return strconv.FormatFloat(v, 'f', -1, bitSize)
}

// FormatFloat4 renders a real value.
func FormatFloat4(v float32, _ Type) string { return formatFloat(float64(v), 32) }

// FormatFloat8 renders a double precision value.
func FormatFloat8(v float64, _ Type) string { return formatFloat(v, 64) }

// FormatUUID renders v in its canonical hyphenated form, quoted.
func FormatUUID(v uuid.UUID, _ Type) string {
	return "'" + v.String() + "'"
}

func formatInfinity(m pgtype.InfinityModifier) (string, bool) {
	switch m {
	case pgtype.Infinity:
		return "'infinity'", true
	case pgtype.NegativeInfinity:
		return "'-infinity'", true
	default:
		return "", false
	}
}

// splitEra returns the ISO year as PostgreSQL prints it together with
// whether it is a BC year. Year 0 is 1 BC.
func splitEra(t time.Time) (int, bool) {
	y := t.Year()
	if y <= 0 {
		return 1 - y, true
	}
	return y, false
}

// FormatDate renders v as 'YYYY-MM-DD', with a BC suffix before year 1.
func FormatDate(v pgtype.Date, _ Type) string {
	if lit, ok := formatInfinity(v.InfinityModifier); ok {
		return lit
	}
	y, bc := splitEra(v.Time)
	lit := fmt.Sprintf("%04d-%02d-%02d", y, int(v.Time.Month()), v.Time.Day())
	if bc {
		lit += " BC"
	}
	return "'" + lit + "'"
}

func formatTimestamp(t time.Time, zone bool) string {
	t = t.UTC()
	y, bc := splitEra(t)
	var b strings.Builder
	b.WriteByte('\'')
	fmt.Fprintf(&b, "%04d-%02d-%02dT%02d:%02d:%02d", y, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	if us := t.Nanosecond() / 1000; us != 0 {
		b.WriteByte('.')
		b.WriteString(strings.TrimRight(fmt.Sprintf("%06d", us), "0"))
	}
	if zone {
		b.WriteString("+00:00")
	}
	if bc {
		b.WriteString(" BC")
	}
	b.WriteByte('\'')
	return b.String()
}

// FormatTimestamp renders v in ISO 8601 without a zone.
func FormatTimestamp(v pgtype.Timestamp, _ Type) string {
	if lit, ok := formatInfinity(v.InfinityModifier); ok {
		return lit
	}
	return formatTimestamp(v.Time, false)
}

// FormatTimestamptz renders v in UTC with an explicit +00:00 offset.
func FormatTimestamptz(v pgtype.Timestamptz, _ Type) string {
	if lit, ok := formatInfinity(v.InfinityModifier); ok {
		return lit
	}
	return formatTimestamp(v.Time, true)
}

// FormatJSON renders v followed by a cast to the declared json or jsonb type.
func FormatJSON(v JSON, t Type) string {
	return QuoteText(v.Text) + "::" + CastName(t)
}

// FormatBytea renders v in hex escape form cast to bytea.
func FormatBytea(v []byte, _ Type) string {
	return QuoteText(`\x`+hex.EncodeToString(v)) + "::bytea"
}

// FormatNullable renders NULL for an invalid v and uses format otherwise.
func FormatNullable[T any](v Nullable[T], t Type, format func(T, Type) string) string {
	if !v.Valid {
		return Null
	}
	return format(v.Value, t)
}

// FormatArray renders a one-dimensional array constructor cast to elem[].
func FormatArray[T any](values []Nullable[T], elem Type, format func(T, Type) string) string {
	var b strings.Builder
	b.WriteString("ARRAY[")
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(FormatNullable(v, elem, format))
	}
	b.WriteString("]::")
	b.WriteString(CastName(elem))
	b.WriteString("[]")
	return b.String()
}
