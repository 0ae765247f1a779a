package entity

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is an expanded source payload. Data keeps the JSON shape returned by
// the source API so dependency extraction works on both IDs and expanded objects.
type Record struct {
	Type EntityType
	ID   string
	Data map[string]interface{}
}

// NewRecord builds a record and takes its ID from data["id"].
func NewRecord(t EntityType, data map[string]interface{}) *Record {
	if data == nil {
		data = map[string]interface{}{}
	}
	id, _ := data["id"].(string)
	return &Record{Type: t, ID: id, Data: data}
}

// DecodeRecord builds a record from a raw JSON object.
func DecodeRecord(t EntityType, raw []byte) (*Record, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return NewRecord(t, data), nil
}

// Get walks a dot separated path through nested objects.
func (r *Record) Get(path string) interface{} {
	if r == nil {
		return nil
	}
	var cur interface{} = r.Data
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

func (r *Record) String(path string) string {
	switch v := r.Get(path).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Int returns an integer field, or 0 when absent. found is false for null.
func (r *Record) Int(path string) (value int64, found bool) {
	switch v := r.Get(path).(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

func (r *Record) Float(path string) (float64, bool) {
	switch v := r.Get(path).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func (r *Record) Bool(path string) bool {
	b, _ := r.Get(path).(bool)
	return b
}

// RefID reads an expandable reference: either a bare ID string or an
// expanded object carrying an "id" field.
func (r *Record) RefID(path string) string {
	switch v := r.Get(path).(type) {
	case string:
		return v
	case map[string]interface{}:
		id, _ := v["id"].(string)
		return id
	}
	return ""
}

// Object returns a nested object, or nil.
func (r *Record) Object(path string) map[string]interface{} {
	obj, _ := r.Get(path).(map[string]interface{})
	return obj
}

// Objects returns the objects of a nested array (e.g. "lines.data").
func (r *Record) Objects(path string) []map[string]interface{} {
	items, _ := r.Get(path).([]interface{})
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}
