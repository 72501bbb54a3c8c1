package pgliteral

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func be16(v int16) []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(v))
}

func be32(v int32) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(v))
}

func be64(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func f32(v float32) []byte {
	return binary.BigEndian.AppendUint32(nil, math.Float32bits(v))
}

func f64(v float64) []byte {
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(v))
}

func dateBytes(t time.Time) []byte {
	return be32(int32((t.Unix() - pgEpochSeconds) / 86400))
}

func timestampBytes(t time.Time) []byte {
	secs := t.Unix() - pgEpochSeconds
	return be64(secs*1_000_000 + int64(t.Nanosecond()/1000))
}

// encodeArray builds a binary array value. A nil element is NULL.
func encodeArray(elemOID uint32, dims []Dimension, elems [][]byte) []byte {
	hasNulls := int32(0)
	for _, e := range elems {
		if e == nil {
			hasNulls = 1
		}
	}
	buf := be32(int32(len(dims)))
	buf = append(buf, be32(hasNulls)...)
	buf = binary.BigEndian.AppendUint32(buf, elemOID)
	for _, d := range dims {
		buf = append(buf, be32(d.Size)...)
		buf = append(buf, be32(d.LowerBound)...)
	}
	for _, e := range elems {
		if e == nil {
			buf = append(buf, be32(-1)...)
			continue
		}
		buf = append(buf, be32(int32(len(e)))...)
		buf = append(buf, e...)
	}
	return buf
}

func encodeList(elemOID uint32, elems ...[]byte) []byte {
	return encodeArray(elemOID, []Dimension{{Size: int32(len(elems)), LowerBound: 1}}, elems)
}

func mustType(t *testing.T, oid uint32) Type {
	t.Helper()
	typ, ok := TypeForOID(oid)
	require.True(t, ok, "no built-in type for OID %d", oid)
	return typ
}

// unquoteLiteral reverses QuoteText.
func unquoteLiteral(t *testing.T, lit string) string {
	t.Helper()
	escaped := strings.HasPrefix(lit, "E'")
	body := strings.TrimPrefix(lit, "E")
	require.True(t, len(body) >= 2 && body[0] == '\'' && body[len(body)-1] == '\'', "not a string literal: %s", lit)
	body = body[1 : len(body)-1]

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\'':
			require.True(t, i+1 < len(body) && body[i+1] == '\'', "unescaped quote in %s", lit)
			i++
		case c == '\\' && escaped:
			require.True(t, i+1 < len(body), "dangling backslash in %s", lit)
			i++
			c = body[i]
		}
		b.WriteByte(c)
	}
	return b.String()
}
