package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// payload is a loosely typed event body; fields are validated on access
type payload map[string]json.RawMessage

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// has reports whether key is present with a non-null value
func (p payload) has(key string) bool {
	raw, ok := p[key]
	return ok && !isNull(raw)
}

// str returns the first key holding a scalar, rendered as a string
func (p payload) str(keys ...string) string {
	for _, key := range keys {
		raw, ok := p[key]
		if !ok || isNull(raw) {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64, bool:
			return fmt.Sprint(t)
		}
	}
	return ""
}

// text returns a string value as-is, and compacts objects or arrays to one line
func (p payload) text(key string) string {
	raw, ok := p[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	return buf.String()
}

// object returns a nested payload, or nil when key is not an object
func (p payload) object(key string) payload {
	raw, ok := p[key]
	if !ok || isNull(raw) {
		return nil
	}
	var nested payload
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	return nested
}

// list returns the elements of an array field; non-arrays yield nil
func (p payload) list(key string) []json.RawMessage {
	raw, ok := p[key]
	if !ok || isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

// decodeRows parses an array of JSON objects, keeping the column order in
// which keys first appear.
func decodeRows(raw json.RawMessage) ([]Record, []string, error) {
	if isNull(raw) {
		return nil, nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, nil, fmt.Errorf("rows: expected array, got %v", tok)
	}

	var rows []Record
	var columns []string
	seen := make(map[string]bool)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return nil, nil, fmt.Errorf("rows: expected object, got %v", tok)
		}
		row := make(Record)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, nil, fmt.Errorf("rows: expected key, got %v", keyTok)
			}
			var value any
			if err := dec.Decode(&value); err != nil {
				return nil, nil, err
			}
			row[key] = value
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
		if _, err := dec.Token(); err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, nil, err
	}
	return rows, columns, nil
}

// ColumnsOf returns the column order of a result, inferring it from the rows
// when the wire order is unknown.
func ColumnsOf(r TabularResult) []string {
	if len(r.Columns) > 0 {
		return r.Columns
	}
	seen := make(map[string]bool)
	var cols []string
	for _, row := range r.Rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			cols = append(cols, k)
		}
	}
	return cols
}

// FormatValue renders a cell value for display
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// ToFloat converts a cell value to a number when it holds a finite one
func ToFloat(v any) (float64, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
