package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Record is one row from search_read. The store sends false for empty
// fields, so accessors normalize types instead of asserting them.
type Record map[string]any

// ID returns the record's id, or 0.
func (r Record) ID() int64 {
	return r.Int("id")
}

// Int returns the field as an int64, tolerating JSON numbers and strings.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		i, _ := v.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	default:
		return 0
	}
}

// Str returns the field as a string; false and null become "".
func (r Record) Str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		if v {
			return "true"
		}
		return ""
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// ReplaceAllLinks builds the store's replace-all command for a
// many-to-many link field: [[6, 0, ids]].
func ReplaceAllLinks(ids []int64) []any {
	return []any{[]any{6, 0, ids}}
}
