// Package codec encodes records to and from their on-disk text form.
package codec

import (
	"fmt"
	"slices"
	"time"
)

// VersionKey is the reserved top-level key holding Record.Version.
const VersionKey = "schemaVersion"

// Record is the unit a store persists. Field values are int64, bool, string,
// []string, or Raw for decoded values of any other kind.
type Record struct {
	Version int
	Fields  map[string]any
}

// Raw holds a decoded value no typed accessor understands: a float, null, an
// object or a list that is not all strings. It is written back unchanged.
type Raw struct {
	Value any
}

// NewRecord returns an empty record at the given schema version.
func NewRecord(version int) Record {
	return Record{Version: version, Fields: map[string]any{}}
}

// IsEmpty reports whether the record holds no fields.
func (r Record) IsEmpty() bool { return len(r.Fields) == 0 }

func (r Record) Has(key string) bool {
	_, ok := r.Fields[key]
	return ok
}

func (r Record) Int(key string) (int64, bool) {
	v, ok := r.Fields[key].(int64)
	return v, ok
}

func (r Record) Bool(key string) (bool, bool) {
	v, ok := r.Fields[key].(bool)
	return v, ok
}

func (r Record) String(key string) (string, bool) {
	v, ok := r.Fields[key].(string)
	return v, ok
}

// Strings returns a copy of a list field.
func (r Record) Strings(key string) ([]string, bool) {
	v, ok := r.Fields[key].([]string)
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// Time parses an RFC 3339 string field.
func (r Record) Time(key string) (time.Time, bool) {
	s, ok := r.String(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r *Record) set(key string, v any) {
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	r.Fields[key] = v
}

func (r *Record) SetInt(key string, v int64)     { r.set(key, v) }
func (r *Record) SetBool(key string, v bool)     { r.set(key, v) }
func (r *Record) SetString(key string, v string) { r.set(key, v) }

// SetStrings stores a copy of v. A nil slice is stored as an empty list.
func (r *Record) SetStrings(key string, v []string) {
	if v == nil {
		v = []string{}
	}
	r.set(key, slices.Clone(v))
}

func (r *Record) SetTime(key string, t time.Time) {
	r.set(key, t.UTC().Format(time.RFC3339Nano))
}

func (r *Record) Delete(key string) { delete(r.Fields, key) }

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := Record{Version: r.Version, Fields: make(map[string]any, len(r.Fields))}
	for k, v := range r.Fields {
		if list, ok := v.([]string); ok {
			v = slices.Clone(list)
		}
		out.Fields[k] = v
	}
	return out
}

// validate checks that every field can be encoded.
func (r Record) validate() error {
	for k, v := range r.Fields {
		if k == VersionKey {
			return fmt.Errorf("field name %q is reserved", k)
		}
		switch v.(type) {
		case int64, bool, string, []string, Raw:
		default:
			return fmt.Errorf("field %q: unsupported type %T", k, v)
		}
	}
	return nil
}

// document flattens the record into the map that gets serialized.
func (r Record) document() map[string]any {
	doc := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		switch val := v.(type) {
		case []string:
			if val == nil {
				v = []string{}
			}
		case Raw:
			v = val.Value
		}
		doc[k] = v
	}
	if r.Version != 0 {
		doc[VersionKey] = r.Version
	}
	return doc
}
