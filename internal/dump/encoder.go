package dump

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Encoder streams a query's result set into size-bounded INSERT
// statements written through a Sink. It never materializes the whole
// result set in memory; rows are consumed one at a time.
type Encoder struct {
	StatementSize int64
}

// NewEncoder builds an Encoder targeting the given per-statement byte
// budget.
func NewEncoder(statementSize int64) *Encoder {
	return &Encoder{StatementSize: statementSize}
}

// rowSource is the minimal row-iteration surface the encoder needs. It is
// satisfied by sqlRowSource (a thin wrapper around *sql.Rows) in
// production, and by an in-memory fake in tests, so
// encoding logic can be exercised without a real database connection.
type rowSource interface {
	Columns() ([]string, error)
	ColumnTypeNames() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

type sqlRowSource struct{ rows *sql.Rows }

func (s sqlRowSource) Columns() ([]string, error) { return s.rows.Columns() }

func (s sqlRowSource) ColumnTypeNames() ([]string, error) {
	types, err := s.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.DatabaseTypeName()
	}
	return names, nil
}

func (s sqlRowSource) Next() bool                    { return s.rows.Next() }
func (s sqlRowSource) Scan(dest ...interface{}) error { return s.rows.Scan(dest...) }
func (s sqlRowSource) Err() error                     { return s.rows.Err() }

// Stream runs query against conn and writes the resulting rows to sink as
// `INSERT INTO table VALUES ...;` statements after the SET NAMES header;
// an empty result set produces the header alone. table is used
// only for the INSERT's identifier; it need not match any table name
// embedded in query.
func (e *Encoder) Stream(ctx context.Context, conn *sql.Conn, table, query string, sink Sink) error {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return e.writeHeaderThen(sink, fmt.Errorf("query %s: %w", table, err))
	}
	defer rows.Close()
	return e.streamRows(table, sqlRowSource{rows: rows}, sink)
}

func (e *Encoder) writeHeaderThen(sink Sink, err error) error {
	if _, headerErr := fmt.Fprint(sink, "/*!40101 SET NAMES binary*/;\n"); headerErr != nil {
		return fmt.Errorf("write header: %w", headerErr)
	}
	return err
}

// streamRows drives the row-to-SQL encoding given any rowSource; it
// contains all of the encoder's logic and is exercised directly by tests
// using an in-memory rowSource, without a database connection.
func (e *Encoder) streamRows(table string, rows rowSource, sink Sink) error {
	if _, err := fmt.Fprint(sink, "/*!40101 SET NAMES binary*/;\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	typeNames, err := rows.ColumnTypeNames()
	if err != nil {
		return err
	}
	numeric := make([]bool, len(cols))
	for i, tn := range typeNames {
		numeric[i] = isNumericType(tn)
	}

	raw := make([]sql.RawBytes, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	var stmt strings.Builder
	var escapeBuf []byte
	inStatement := false

	flushStatement := func() error {
		if !inStatement {
			return nil
		}
		stmt.WriteString(";\n")
		if _, err := sink.Write([]byte(stmt.String())); err != nil {
			return fmt.Errorf("write statement for %s: %w", table, err)
		}
		stmt.Reset()
		inStatement = false
		return nil
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row %s: %w", table, err)
		}

		if !inStatement {
			fmt.Fprintf(&stmt, "INSERT INTO `%s` VALUES\n", table)
			inStatement = true
		} else {
			stmt.WriteString(",\n")
		}

		stmt.WriteByte(' ')
		stmt.WriteByte('(')
		for i := range raw {
			if i > 0 {
				stmt.WriteByte(',')
			}
			writeValue(&stmt, raw[i], numeric[i], &escapeBuf)
		}
		stmt.WriteByte(')')

		if int64(stmt.Len()) > e.StatementSize {
			if err := flushStatement(); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows %s: %w", table, err)
	}

	// Always flush any pending statement before closing: an unflushed
	// buffer here would otherwise leave the file without a terminating
	// semicolon for its last batch.
	return flushStatement()
}

// writeValue appends one column's encoded value to buf, per-column rule:
// NULL -> unquoted NULL, numeric -> raw bytes in quotes, else -> escaped
// bytes in quotes.
func writeValue(buf *strings.Builder, v sql.RawBytes, numeric bool, escapeBuf *[]byte) {
	if v == nil {
		buf.WriteString("NULL")
		return
	}
	if numeric {
		buf.WriteByte('"')
		buf.Write(v)
		buf.WriteByte('"')
		return
	}
	buf.WriteByte('"')
	*escapeBuf = escapeBytesInto((*escapeBuf)[:0], v)
	buf.Write(*escapeBuf)
	buf.WriteByte('"')
}

// isNumericType reports whether a DatabaseTypeName corresponds to a
// server-side numeric column, whose values are emitted raw (quoted but
// unescaped) rather than through the string-escape path.
func isNumericType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"DECIMAL", "FLOAT", "DOUBLE", "YEAR":
		return true
	default:
		return false
	}
}

// escapeBytes real-string-escapes raw server bytes the way
// mysql_real_escape_string does, since database/sql's driver layer
// exposes no public equivalent. The buffer grows to 2*len+1 when a
// longer value appears, mirroring the reference implementation's buffer
// growth policy.
func escapeBytes(src []byte) []byte {
	return escapeBytesInto(make([]byte, 0, 2*len(src)+1), src)
}

func escapeBytesInto(dst []byte, src []byte) []byte {
	if cap(dst) < 2*len(src)+1 {
		dst = make([]byte, 0, 2*len(src)+1)
	}
	for _, c := range src {
		switch c {
		case 0:
			dst = append(dst, '\\', '0')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\'':
			dst = append(dst, '\\', '\'')
		case '"':
			dst = append(dst, '\\', '"')
		case '\x1a':
			dst = append(dst, '\\', 'Z')
		default:
			dst = append(dst, c)
		}
	}
	return dst
}
