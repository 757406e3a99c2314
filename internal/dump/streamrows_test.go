package dump

import (
	"database/sql"
	"fmt"
)

// fakeRows is an in-memory rowSource used to exercise streamRows without a
// database connection.
type fakeRows struct {
	cols    []string
	numeric []bool
	data    [][]interface{} // a nil entry means SQL NULL
	idx     int
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }

func (f *fakeRows) ColumnTypeNames() ([]string, error) {
	names := make([]string, len(f.cols))
	for i, n := range f.numeric {
		if n {
			names[i] = "INT"
		} else {
			names[i] = "VARCHAR"
		}
	}
	return names, nil
}

func (f *fakeRows) Next() bool {
	if f.idx >= len(f.data) {
		return false
	}
	f.idx++
	return true
}

func (f *fakeRows) Scan(dest ...interface{}) error {
	row := f.data[f.idx-1]
	for i, d := range dest {
		rb, ok := d.(*sql.RawBytes)
		if !ok {
			return fmt.Errorf("unexpected scan destination %T", d)
		}
		switch val := row[i].(type) {
		case nil:
			*rb = nil
		case string:
			*rb = []byte(val)
		case []byte:
			*rb = val
		default:
			return fmt.Errorf("unsupported fake row value %T", row[i])
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return nil }
