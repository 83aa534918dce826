package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
)

// Row is one result row as an ordered column→value mapping. Values are
// rendered as strings the way the wire protocol expects; NULL becomes the
// empty string. JSON marshaling preserves the query's column order.
type Row struct {
	columns []string
	values  map[string]string
}

// NewRow builds a row from parallel column/value slices. Exposed for tests
// and fakes.
func NewRow(columns []string, values []string) Row {
	m := make(map[string]string, len(columns))
	for i, c := range columns {
		if i < len(values) {
			m[c] = values[i]
		}
	}
	return Row{columns: columns, values: m}
}

// Columns returns the column names in query order
func (r Row) Columns() []string {
	return r.columns
}

// Get returns the value for a column, or "" if the column is absent
func (r Row) Get(column string) string {
	return r.values[column]
}

// MarshalJSON emits the row as a JSON object in column order
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[c])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// scanRows drains a result set into ordered rows
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = new(sql.NullString)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		values := make([]string, len(columns))
		for i := range dest {
			values[i] = dest[i].(*sql.NullString).String
		}
		out = append(out, NewRow(columns, values))
	}

	return out, rows.Err()
}
