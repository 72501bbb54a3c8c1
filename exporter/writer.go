package exporter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/lib/pq"
)

// DefaultTable is the target table when none is configured.
const DefaultTable = "foo"

// WriterOptions controls the shape of the generated INSERT statements.
type WriterOptions struct {
	// Table is the target table name (default: DefaultTable).
	Table string

	// QuoteIdentifiers quotes the table and column names. Names are written
	// verbatim otherwise.
	QuoteIdentifiers bool

	// BatchSize starts a new INSERT statement every BatchSize rows. Zero
	// puts all rows in a single statement.
	BatchSize int

	// OnConflictDoNothing appends ON CONFLICT DO NOTHING to every statement.
	OnConflictDoNothing bool
}

// Writer writes rows of literals as multi-row INSERT statements:
//
//	INSERT INTO foo(a,b) VALUES
//	(1,'x'),
//	(2,'y');
//
// Nothing is written when no row is.
type Writer struct {
	w      *bufio.Writer
	opts   WriterOptions
	prefix string

	inStatement bool
	stmtRows    int
	rows        int
	pending     []string
}

// NewWriter creates a writer for rows with the given column names.
func NewWriter(w io.Writer, columns []string, opts WriterOptions) *Writer {
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	if opts.QuoteIdentifiers {
		table = pq.QuoteIdentifier(table)
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		columns = quoted
	}
	return &Writer{
		w:      bufio.NewWriter(w),
		opts:   opts,
		prefix: "INSERT INTO " + table + "(" + strings.Join(columns, ",") + ") VALUES\n",
	}
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// WriteRow appends one row to the current statement, starting a new one if
// needed.
func (w *Writer) WriteRow(literals []string) error {
	if w.inStatement {
		w.w.WriteString(",\n")
	}
	w.writePending()
	if !w.inStatement {
		w.w.WriteString(w.prefix)
		w.inStatement = true
	}
	w.w.WriteByte('(')
	w.w.WriteString(strings.Join(literals, ","))
	w.w.WriteByte(')')
	w.stmtRows++
	w.rows++

	if w.opts.BatchSize > 0 && w.stmtRows >= w.opts.BatchSize {
		w.endStatement()
	}
	return w.err()
}

// WriteSkipped records a row that could not be serialized as a comment line.
// n is the 1-based row number in the result.
func (w *Writer) WriteSkipped(n int, cause error) error {
	w.pending = append(w.pending, fmt.Sprintf("-- skipped row %d: %s\n", n, commentText(cause)))
	if !w.inStatement {
		w.writePending()
	}
	return w.err()
}

// Close terminates the open statement and flushes the output.
func (w *Writer) Close() error {
	w.endStatement()
	w.writePending()
	return w.w.Flush()
}

// Abort ends the output after the last complete row without terminating the
// open statement, followed by a comment naming the cause, and flushes it.
// Every buffered write is a whole row, so the output never ends inside a
// literal.
func (w *Writer) Abort(cause error) error {
	if w.inStatement {
		w.w.WriteByte('\n')
		w.inStatement = false
	}
	w.writePending()
	w.w.WriteString("-- export aborted: " + commentText(cause) + "\n")
	return w.w.Flush()
}

func (w *Writer) endStatement() {
	if !w.inStatement {
		return
	}
	if w.opts.OnConflictDoNothing {
		w.w.WriteString("\nON CONFLICT DO NOTHING")
	}
	w.w.WriteString(";\n")
	w.inStatement = false
	w.stmtRows = 0
}

// writePending emits queued comments. Inside a statement they are only
// written right after a row separator so the statement stays valid.
func (w *Writer) writePending() {
	for _, line := range w.pending {
		w.w.WriteString(line)
	}
	w.pending = w.pending[:0]
}

// err reports a write error. bufio.Writer keeps the first error and turns
// every later write into a no-op, so checking once per row is enough.
func (w *Writer) err() error {
	_, err := w.w.Write(nil)
	return err
}

func commentText(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
