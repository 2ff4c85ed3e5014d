package sqlitedb

import "bytes"

// Row maps column names to values. Values are nil, int64, float64, string or
// []byte, as stored.
type Row map[string]any

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return bytes.Clone(x)
	}
	return v
}

// Int returns an integer column. NULL and missing columns report false.
func (r Row) Int(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float returns a numeric column as float64.
func (r Row) Float(col string) (float64, bool) {
	switch v := r[col].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// String returns a text column. Blob values are converted.
func (r Row) String(col string) (string, bool) {
	switch v := r[col].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

// Bytes returns a blob column. Text values are converted.
func (r Row) Bytes(col string) ([]byte, bool) {
	switch v := r[col].(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

// Ref returns an integer column that links to another row. Zero and NULL
// both mean no link.
func (r Row) Ref(col string) (int64, bool) {
	v, ok := r.Int(col)
	return v, ok && v != 0
}
