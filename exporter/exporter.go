// Package exporter turns the result of a query into INSERT statements.
package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/posthog/pggensql/pgliteral"
	"github.com/posthog/pggensql/source"
)

// ErrorPolicy decides what happens to a row that fails to serialize.
type ErrorPolicy string

const (
	// Abort stops the export at the first failing row.
	Abort ErrorPolicy = "abort"
	// Skip replaces failing rows with a comment and continues.
	Skip ErrorPolicy = "skip"
)

// ParseErrorPolicy parses an on_error setting. The empty string is Abort.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", Abort:
		return Abort, nil
	case Skip:
		return Skip, nil
	default:
		return "", fmt.Errorf("invalid on_error %q (expected %q or %q)", s, Abort, Skip)
	}
}

// chunkRows is the number of rows buffered before they are serialized.
const chunkRows = 1024

// RowSource runs a query and streams its rows. *source.Source implements it.
type RowSource interface {
	Query(ctx context.Context, sql string, h source.QueryHandler) error
}

// Options configures an export.
type Options struct {
	Query   string
	Writer  WriterOptions
	OnError ErrorPolicy

	// Workers is the number of rows serialized concurrently (default:
	// runtime.NumCPU()).
	Workers int
}

// Stats summarizes an export.
type Stats struct {
	Columns  int
	Rows     int
	Skipped  int
	Duration time.Duration
}

// Exporter turns the result of one query into INSERT statements.
type Exporter struct {
	opts Options
}

// New returns an exporter, defaulting Workers to the number of CPUs and
// OnError to Abort.
func New(opts Options) *Exporter {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.OnError == "" {
		opts.OnError = Abort
	}
	return &Exporter{opts: opts}
}

// RowError reports the row that stopped an export.
type RowError struct {
	// Row is the 1-based row number in the result.
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type rowResult struct {
	literals []string
	err      error
}

// export holds the state of one Run.
type export struct {
	opts       Options
	serializer *pgliteral.RowSerializer
	writer     *Writer
	pending    [][][]byte
	seen       int
	stats      Stats
}

// Run executes the query against src and writes the rows to w. Rows are
// serialized concurrently and written in result order.
func (e *Exporter) Run(ctx context.Context, src RowSource, w io.Writer) (stats Stats, err error) {
	start := time.Now()
	ctx, span := otel.Tracer("github.com/posthog/pggensql/exporter").Start(ctx, "pggensql.export",
		trace.WithAttributes(
			attribute.String("pggensql.table", e.tableName()),
			attribute.String("pggensql.on_error", string(e.opts.OnError)),
			attribute.Int("pggensql.workers", e.opts.Workers),
		))

	x := &export{opts: e.opts}
	defer func() {
		stats = x.stats
		stats.Duration = time.Since(start)
		exportDurationHistogram.Observe(stats.Duration.Seconds())
		span.SetAttributes(
			attribute.Int("pggensql.rows", stats.Rows),
			attribute.Int("pggensql.rows_skipped", stats.Skipped),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = src.Query(ctx, e.opts.Query, source.QueryHandler{
		Header: func(columns []pgliteral.Column) error {
			x.header(columns, w)
			return nil
		},
		Row: func(values [][]byte) error {
			x.pending = append(x.pending, copyRow(values))
			if len(x.pending) < chunkRows {
				return nil
			}
			return x.flush(ctx)
		},
	})
	if err != nil {
		x.abort(err)
		return stats, err
	}
	if x.writer == nil {
		return stats, fmt.Errorf("query returned no result description")
	}
	if err := x.flush(ctx); err != nil {
		x.abort(err)
		return stats, err
	}
	if err := x.writer.Close(); err != nil {
		return stats, fmt.Errorf("failed to write output: %w", err)
	}
	slog.Info("Export complete.", "rows", x.stats.Rows, "skipped", x.stats.Skipped, "duration", time.Since(start))
	return stats, nil
}

func (e *Exporter) tableName() string {
	if e.opts.Writer.Table == "" {
		return DefaultTable
	}
	return e.opts.Writer.Table
}

func (x *export) header(columns []pgliteral.Column, w io.Writer) {
	x.serializer = pgliteral.NewRowSerializer(columns)
	x.writer = NewWriter(w, x.serializer.Columns(), x.opts.Writer)
	x.stats.Columns = len(columns)
	for _, c := range x.serializer.Unsupported() {
		slog.Warn("Column type is not supported; only NULL values can be exported.", "column", c.Name, "type", c.Type.String())
	}
	slog.Debug("Result columns resolved.", "columns", len(columns))
}

// abort writes out the rows completed before err, if the header arrived.
func (x *export) abort(err error) {
	if x.writer == nil {
		return
	}
	if werr := x.writer.Abort(err); werr != nil {
		slog.Warn("Failed to write partial output.", "error", werr)
	}
}

// flush serializes the pending rows on the worker pool and writes them in
// order.
func (x *export) flush(ctx context.Context) error {
	if len(x.pending) == 0 {
		return nil
	}
	results := make([]rowResult, len(x.pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.opts.Workers)
	for i, values := range x.pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			literals, err := x.serializer.SerializeRow(values)
			results[i] = rowResult{literals: literals, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		x.seen++
		if r.err != nil {
			kind := pgliteral.ErrorKind(r.err)
			rowErrorsCounter.WithLabelValues(kind).Inc()
			if x.opts.OnError != Skip {
				return &RowError{Row: x.seen, Err: r.err}
			}
			slog.Warn("Skipping row.", "row", x.seen, "kind", kind, "error", r.err)
			x.stats.Skipped++
			if err := x.writer.WriteSkipped(x.seen, r.err); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			continue
		}
		if err := x.writer.WriteRow(r.literals); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		x.stats.Rows++
		rowsCounter.Inc()
	}
	x.pending = x.pending[:0]
	return nil
}

// copyRow copies values into one allocation. The source reuses its buffers
// once the row callback returns. NULL entries stay nil.
func copyRow(values [][]byte) [][]byte {
	n := 0
	for _, v := range values {
		n += len(v)
	}
	buf := make([]byte, 0, n)
	out := make([][]byte, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		start := len(buf)
		buf = append(buf, v...)
		out[i] = buf[start:len(buf):len(buf)]
	}
	return out
}
