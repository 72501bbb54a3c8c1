package pgliteral

// PostgreSQL type OIDs
const (
	OidBool        uint32 = 16
	OidBytea       uint32 = 17
	OidChar        uint32 = 18 // "char", single byte
	OidName        uint32 = 19
	OidInt8        uint32 = 20 // bigint
	OidInt2        uint32 = 21 // smallint
	OidInt4        uint32 = 23 // integer
	OidText        uint32 = 25
	OidOid         uint32 = 26
	OidJSON        uint32 = 114
	OidFloat4      uint32 = 700 // real
	OidFloat8      uint32 = 701 // double precision
	OidUnknown     uint32 = 705
	OidBpchar      uint32 = 1042
	OidVarchar     uint32 = 1043
	OidDate        uint32 = 1082
	OidTimestamp   uint32 = 1114
	OidTimestamptz uint32 = 1184
	OidUUID        uint32 = 2950
	OidJSONB       uint32 = 3802

	OidBoolArray        uint32 = 1000
	OidByteaArray       uint32 = 1001
	OidCharArray        uint32 = 1002
	OidNameArray        uint32 = 1003
	OidInt2Array        uint32 = 1005
	OidInt4Array        uint32 = 1007
	OidTextArray        uint32 = 1009
	OidBpcharArray      uint32 = 1014
	OidVarcharArray     uint32 = 1015
	OidInt8Array        uint32 = 1016
	OidFloat4Array      uint32 = 1021
	OidFloat8Array      uint32 = 1022
	OidOidArray         uint32 = 1028
	OidTimestampArray   uint32 = 1115
	OidDateArray        uint32 = 1182
	OidTimestamptzArray uint32 = 1185
	OidJSONArray        uint32 = 199
	OidUUIDArray        uint32 = 2951
	OidJSONBArray       uint32 = 3807
)

// Kind distinguishes scalar types from array types.
type Kind int

const (
	SimpleKind Kind = iota
	ArrayKind
)

func (k Kind) String() string {
	switch k {
	case SimpleKind:
		return "simple"
	case ArrayKind:
		return "array"
	default:
		return "unknown"
	}
}

// Type describes the declared type of a column as reported by the server.
// Elem is set only for Array kinds. OID is zero when unknown.
type Type struct {
	Kind Kind
	Name string
	OID  uint32
	Elem *Type
}

// SimpleType returns a scalar type descriptor.
func SimpleType(name string) Type {
	return Type{Kind: SimpleKind, Name: name}
}

// ArrayType returns an array type descriptor whose elements have type elem.
func ArrayType(name string, elem Type) Type {
	return Type{Kind: ArrayKind, Name: name, Elem: &elem}
}

// WithOID returns a copy of t carrying oid.
func (t Type) WithOID(oid uint32) Type {
	t.OID = oid
	return t
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool {
	return t.Kind == ArrayKind && t.Elem != nil
}

func (t Type) String() string {
	if t.IsArray() {
		return t.Elem.String() + "[]"
	}
	return t.Name
}

type oidEntry struct {
	name    string
	arrayOf uint32
}

// builtinTypes maps the OIDs the server reports for common built-in types.
// Array entries point at their element OID.
var builtinTypes = map[uint32]oidEntry{
	OidBool:        {name: "bool"},
	OidBytea:       {name: "bytea"},
	OidChar:        {name: "char"},
	OidName:        {name: "name"},
	OidInt8:        {name: "int8"},
	OidInt2:        {name: "int2"},
	OidInt4:        {name: "int4"},
	OidText:        {name: "text"},
	OidOid:         {name: "oid"},
	OidJSON:        {name: "json"},
	OidFloat4:      {name: "float4"},
	OidFloat8:      {name: "float8"},
	OidUnknown:     {name: "unknown"},
	OidBpchar:      {name: "bpchar"},
	OidVarchar:     {name: "varchar"},
	OidDate:        {name: "date"},
	OidTimestamp:   {name: "timestamp"},
	OidTimestamptz: {name: "timestamptz"},
	OidUUID:        {name: "uuid"},
	OidJSONB:       {name: "jsonb"},

	OidBoolArray:        {name: "_bool", arrayOf: OidBool},
	OidByteaArray:       {name: "_bytea", arrayOf: OidBytea},
	OidCharArray:        {name: "_char", arrayOf: OidChar},
	OidNameArray:        {name: "_name", arrayOf: OidName},
	OidInt2Array:        {name: "_int2", arrayOf: OidInt2},
	OidInt4Array:        {name: "_int4", arrayOf: OidInt4},
	OidTextArray:        {name: "_text", arrayOf: OidText},
	OidBpcharArray:      {name: "_bpchar", arrayOf: OidBpchar},
	OidVarcharArray:     {name: "_varchar", arrayOf: OidVarchar},
	OidInt8Array:        {name: "_int8", arrayOf: OidInt8},
	OidFloat4Array:      {name: "_float4", arrayOf: OidFloat4},
	OidFloat8Array:      {name: "_float8", arrayOf: OidFloat8},
	OidOidArray:         {name: "_oid", arrayOf: OidOid},
	OidTimestampArray:   {name: "_timestamp", arrayOf: OidTimestamp},
	OidDateArray:        {name: "_date", arrayOf: OidDate},
	OidTimestamptzArray: {name: "_timestamptz", arrayOf: OidTimestamptz},
	OidJSONArray:        {name: "_json", arrayOf: OidJSON},
	OidUUIDArray:        {name: "_uuid", arrayOf: OidUUID},
	OidJSONBArray:       {name: "_jsonb", arrayOf: OidJSONB},
}

// TypeForOID returns the descriptor of a built-in type.
func TypeForOID(oid uint32) (Type, bool) {
	entry, ok := builtinTypes[oid]
	if !ok {
		return Type{}, false
	}
	if entry.arrayOf != 0 {
		elem, ok := TypeForOID(entry.arrayOf)
		if !ok {
			return Type{}, false
		}
		return ArrayType(entry.name, elem).WithOID(oid), true
	}
	return SimpleType(entry.name).WithOID(oid), true
}
