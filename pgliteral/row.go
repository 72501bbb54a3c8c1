package pgliteral

import "fmt"

// Column is a result column name and its declared type.
type Column struct {
	Name string
	Type Type
}

// ColumnError reports which column of a row failed to serialize.
type ColumnError struct {
	Index int
	Name  string
	Err   error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %d (%s): %v", e.Index+1, e.Name, e.Err)
}

func (e *ColumnError) Unwrap() error { return e.Err }

// RowSerializer turns rows of binary column values into literal lists.
// It holds no mutable state and may be shared between goroutines.
type RowSerializer struct {
	columns []Column
	names   []string
}

func NewRowSerializer(columns []Column) *RowSerializer {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return &RowSerializer{columns: columns, names: names}
}

// Columns returns the column names verbatim, in order.
func (s *RowSerializer) Columns() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Unsupported returns the columns whose types have no serializer. Values of
// such columns only serialize when they are NULL.
func (s *RowSerializer) Unsupported() []Column {
	var out []Column
	for _, c := range s.columns {
		if !Supported(c.Type) {
			out = append(out, c)
		}
	}
	return out
}

// SerializeRow serializes one row. A nil entry in values is SQL NULL. The
// first failing column aborts the row.
func (s *RowSerializer) SerializeRow(values [][]byte) ([]string, error) {
	if len(values) != len(s.columns) {
		return nil, fmt.Errorf("row has %d values, expected %d", len(values), len(s.columns))
	}
	literals := make([]string, len(values))
	for i, v := range values {
		lit, err := Serialize(s.columns[i].Type, v)
		if err != nil {
			return nil, &ColumnError{Index: i, Name: s.columns[i].Name, Err: err}
		}
		literals[i] = lit
	}
	return literals, nil
}
