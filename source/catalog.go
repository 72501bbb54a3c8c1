package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/posthog/pggensql/pgliteral"
)

// PgType is a row of pg_type as needed to pick a decoder.
type PgType struct {
	Name     string
	IsDomain bool
	BaseOID  uint32
	IsArray  bool
	ElemOID  uint32
	ElemName string
}

// TypeLookup fetches the pg_type entry for oid. It returns pgx.ErrNoRows
// when the type does not exist.
type TypeLookup func(ctx context.Context, oid uint32) (PgType, error)

const pgTypeQuery = `SELECT t.typname, t.typtype = 'd', t.typbasetype,
	t.typcategory = 'A' AND t.typelem <> 0, t.typelem, coalesce(e.typname, '')
FROM pg_catalog.pg_type t
LEFT JOIN pg_catalog.pg_type e ON e.oid = t.typelem
WHERE t.oid = $1`

// QueryTypeLookup looks types up in pg_type over conn.
func QueryTypeLookup(conn *pgx.Conn) TypeLookup {
	return func(ctx context.Context, oid uint32) (PgType, error) {
		var t PgType
		err := conn.QueryRow(ctx, pgTypeQuery, oid).Scan(&t.Name, &t.IsDomain, &t.BaseOID, &t.IsArray, &t.ElemOID, &t.ElemName)
		return t, err
	}
}

// maxDomainDepth bounds domain-over-domain resolution.
const maxDomainDepth = 8

// Catalog resolves column type OIDs to type descriptors. Built-in types are
// resolved locally, then through the connection's type map, and finally with
// a pg_type lookup. Results are cached.
type Catalog struct {
	typeMap *pgtype.Map
	lookup  TypeLookup

	mu    sync.Mutex
	cache map[uint32]pgliteral.Type
}

// NewCatalog creates a catalog. typeMap and lookup may be nil.
func NewCatalog(typeMap *pgtype.Map, lookup TypeLookup) *Catalog {
	return &Catalog{
		typeMap: typeMap,
		lookup:  lookup,
		cache:   make(map[uint32]pgliteral.Type),
	}
}

// Resolve returns the descriptor for oid. Unknown OIDs resolve to a type
// named "oid:<n>", which the serializer reports as unsupported.
func (c *Catalog) Resolve(ctx context.Context, oid uint32) (pgliteral.Type, error) {
	return c.resolve(ctx, oid, 0)
}

func (c *Catalog) resolve(ctx context.Context, oid uint32, depth int) (pgliteral.Type, error) {
	c.mu.Lock()
	t, ok := c.cache[oid]
	c.mu.Unlock()
	if ok {
		return t, nil
	}

	t, err := c.resolveUncached(ctx, oid, depth)
	if err != nil {
		return pgliteral.Type{}, err
	}

	c.mu.Lock()
	c.cache[oid] = t
	c.mu.Unlock()
	return t, nil
}

func (c *Catalog) resolveUncached(ctx context.Context, oid uint32, depth int) (pgliteral.Type, error) {
	if t, ok := pgliteral.TypeForOID(oid); ok {
		return t, nil
	}

	if c.typeMap != nil {
		if pt, ok := c.typeMap.TypeForOID(oid); ok {
			if ac, ok := pt.Codec.(*pgtype.ArrayCodec); ok && ac.ElementType != nil {
				elem := pgliteral.SimpleType(ac.ElementType.Name).WithOID(ac.ElementType.OID)
				return pgliteral.ArrayType(pt.Name, elem).WithOID(oid), nil
			}
			return pgliteral.SimpleType(pt.Name).WithOID(oid), nil
		}
	}

	if c.lookup == nil {
		return unknownType(oid), nil
	}
	row, err := c.lookup(ctx, oid)
	if errors.Is(err, pgx.ErrNoRows) {
		slog.Warn("Type not found in pg_type.", "oid", oid)
		return unknownType(oid), nil
	}
	if err != nil {
		return pgliteral.Type{}, fmt.Errorf("failed to look up type %d: %w", oid, err)
	}

	switch {
	case row.IsDomain && row.BaseOID != 0:
		if depth >= maxDomainDepth {
			return pgliteral.Type{}, fmt.Errorf("domain %s nests more than %d levels", row.Name, maxDomainDepth)
		}
		// Domains are sent in the binary format of their base type.
		slog.Debug("Resolving domain to base type.", "domain", row.Name, "base_oid", row.BaseOID)
		return c.resolve(ctx, row.BaseOID, depth+1)
	case row.IsArray:
		elem, err := c.resolve(ctx, row.ElemOID, depth+1)
		if err != nil {
			return pgliteral.Type{}, err
		}
		if elem.IsArray() {
			return pgliteral.Type{}, fmt.Errorf("array type %s has array elements", row.Name)
		}
		// The array header carries the declared element OID, which for a
		// domain differs from its base type.
		return pgliteral.ArrayType(row.Name, elem.WithOID(row.ElemOID)).WithOID(oid), nil
	default:
		return pgliteral.SimpleType(row.Name).WithOID(oid), nil
	}
}

func unknownType(oid uint32) pgliteral.Type {
	return pgliteral.SimpleType(fmt.Sprintf("oid:%d", oid)).WithOID(oid)
}

// Columns resolves the columns of a result description.
func (c *Catalog) Columns(ctx context.Context, fields []pgconn.FieldDescription) ([]pgliteral.Column, error) {
	cols := make([]pgliteral.Column, len(fields))
	for i, f := range fields {
		t, err := c.Resolve(ctx, f.DataTypeOID)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		cols[i] = pgliteral.Column{Name: f.Name, Type: t}
	}
	return cols, nil
}
