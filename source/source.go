// Package source runs a query against PostgreSQL and hands each result row
// to a callback as undecoded binary column values.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/posthog/pggensql/pgliteral"
)

// statementName names the prepared statement used for exports.
const statementName = "pggensql_export"

type Config struct {
	// URL is a libpq connection string or postgres:// URL.
	URL string

	// ConnectRetries is the number of connection attempts (default: 1).
	ConnectRetries int

	// ConnectTimeout bounds each connection attempt. Zero keeps the
	// connection string's setting.
	ConnectTimeout time.Duration
}

// QueryHandler receives the result of a query.
type QueryHandler struct {
	// Header is called once with the resolved columns before any row.
	Header func(columns []pgliteral.Column) error

	// Row is called for every row. A nil entry is SQL NULL. The slices are
	// only valid until Row returns: the connection reuses its read buffer
	// for the next row.
	Row func(values [][]byte) error
}

// Source is a single PostgreSQL connection. It is not safe for concurrent
// use.
type Source struct {
	conn    *pgx.Conn
	catalog *Catalog
}

// Connect opens a connection, retrying failed attempts with backoff.
func Connect(ctx context.Context, cfg Config) (*Source, error) {
	connCfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	var conn *pgx.Conn
	err = RetryWithBackoff(ctx, cfg.ConnectRetries, func() error {
		var err error
		conn, err = pgx.ConnectConfig(ctx, connCfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", connCfg.Host, connCfg.Port, err)
	}
	slog.Debug("Connected to database.", "host", connCfg.Host, "port", connCfg.Port, "database", connCfg.Database)

	return &Source{
		conn:    conn,
		catalog: NewCatalog(conn.TypeMap(), QueryTypeLookup(conn)),
	}, nil
}

// TypeMap exposes the connection's type map.
func (s *Source) TypeMap() *pgtype.Map {
	return s.conn.TypeMap()
}

// Query prepares sql, resolves the column types, and streams the rows in the
// binary format to h.
func (s *Source) Query(ctx context.Context, sql string, h QueryHandler) (err error) {
	sd, err := s.conn.Prepare(ctx, statementName, sql)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}
	defer func() {
		if derr := s.conn.Deallocate(context.WithoutCancel(ctx), statementName); derr != nil && err == nil {
			err = fmt.Errorf("failed to deallocate statement: %w", derr)
		}
	}()

	// Types are resolved before execution; the connection is busy while a
	// result is being read.
	columns, err := s.catalog.Columns(ctx, sd.Fields)
	if err != nil {
		return err
	}
	if h.Header != nil {
		if err := h.Header(columns); err != nil {
			return err
		}
	}

	rr := s.conn.PgConn().ExecPrepared(ctx, sd.Name, nil, nil, []int16{pgtype.BinaryFormatCode})
	rows := 0
	for rr.NextRow() {
		rows++
		if h.Row == nil {
			continue
		}
		if err := h.Row(rr.Values()); err != nil {
			_, _ = rr.Close()
			return err
		}
	}
	tag, err := rr.Close()
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	slog.Debug("Query complete.", "command", tag.String(), "rows", rows)
	return nil
}

func (s *Source) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
