package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/localstate/outcome"
)

// Codec converts records to and from bytes.
//
// Decode never fails on a field it cannot type: values of unsupported kinds
// are kept as Raw, so older builds can read files written by newer ones and
// each reader decides whether a known field is corrupt. Bytes that are not a document
// at all produce a *DecodeError and must not be partially trusted.
type Codec interface {
	Encode(Record) ([]byte, error)
	Decode([]byte) (Record, error)
	Name() string
}

// DecodeError reports bytes that could not be decoded into a Record.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match outcome.ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == outcome.ErrDecode }

// ByName returns the codec registered under name ("json" or "yaml").
func ByName(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSON{}, nil
	case "yaml", "yml":
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %q (supported: json, yaml)", name)
	}
}

// JSON is the on-disk format. Output is indented with sorted keys.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(r Record) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(r.document(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func (JSON) Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Record{}, &DecodeError{Format: "json", Err: err}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Record{}, &DecodeError{Format: "json", Err: errors.New("trailing data after document")}
	}
	return fromDocument("json", raw)
}

// YAML is used for human-facing dumps.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Encode(r Record) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(r.document())
}

func (YAML) Decode(data []byte) (Record, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Record{}, &DecodeError{Format: "yaml", Err: err}
	}
	return fromDocument("yaml", raw)
}

func fromDocument(format string, raw any) (Record, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return Record{}, &DecodeError{Format: format, Err: fmt.Errorf("top level is %T, want object", raw)}
	}

	rec := Record{Fields: make(map[string]any, len(doc))}
	for k, v := range doc {
		if k == VersionKey {
			if n, ok := integer(v); ok && n >= 0 && n <= math.MaxInt32 {
				rec.Version = int(n)
			}
			continue
		}
		switch val := v.(type) {
		case bool, string:
			rec.Fields[k] = val
		case []any:
			if list, ok := stringList(val); ok {
				rec.Fields[k] = list
			} else {
				rec.Fields[k] = Raw{Value: plain(val)}
			}
		default:
			if n, ok := integer(v); ok {
				rec.Fields[k] = n
			} else {
				rec.Fields[k] = Raw{Value: plain(v)}
			}
		}
	}
	return rec, nil
}

func stringList(items []any) ([]string, bool) {
	list := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		list = append(list, s)
	}
	return list, true
}

// plain rewrites decoder-specific values (json.Number, yaml's
// map[any]any) into forms both encoders accept.
func plain(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = plain(item)
		}
		return out
	}
	return v
}

// integer converts the numeric kinds produced by encoding/json (with
// UseNumber) and yaml.v3 into an int64. Fractional values do not convert.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
