package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

// Value is one JSON value with its variant made explicit.
// Only the field matching Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number json.Number
	Str    string
	Object Record
	Array  []Value
}

// Field is a single (name, value) pair of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is a collection row with the key order of the JSON object preserved.
type Record []Field

// Keys returns the field names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Name
	}
	return keys
}

// Get returns the top-level value named name.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Lookup resolves a dot-separated path such as "author.name".
// An exact top-level match wins over path traversal so keys containing dots still work.
func (r Record) Lookup(path string) (Value, bool) {
	if v, ok := r.Get(path); ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return Value{}, false
	}
	v, ok := r.Get(head)
	if !ok || v.Kind != KindObject {
		return Value{}, false
	}
	return v.Object.Lookup(rest)
}

// ID returns the record's identifier, trying "_id", "id" and "github_id" in that order.
func (r Record) ID() string {
	for _, key := range []string{"_id", "id", "github_id"} {
		if v, ok := r.Get(key); ok && v.Kind != KindNull {
			return v.Text()
		}
	}
	return ""
}

// Text returns the plain scalar text of a value; objects and arrays become compact JSON.
func (v Value) Text() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.Number.String()
	case KindString:
		return v.Str
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Interface converts v to the plain Go representation produced by encoding/json.
func (v Value) Interface() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.Str
	case KindObject:
		m := make(map[string]any, len(v.Object))
		for _, f := range v.Object {
			m[f.Name] = f.Value.Interface()
		}
		return m
	case KindArray:
		out := make([]any, len(v.Array))
		for i, item := range v.Array {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

// MarshalJSON writes the value back out, keeping object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool, KindString:
		return json.Marshal(v.Interface())
	case KindNumber:
		if v.Number == "" {
			return []byte("0"), nil
		}
		return []byte(v.Number), nil
	case KindObject:
		return v.Object.MarshalJSON()
	case KindArray:
		if v.Array == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Array)
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// MarshalJSON writes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ErrNotObject is returned when decoding a Record from JSON that is not an object.
var ErrNotObject = errors.New("json value is not an object")

// UnmarshalJSON decodes an object, preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := DecodeValue(data)
	if err != nil {
		return err
	}
	if v.Kind != KindObject {
		return ErrNotObject
	}
	*r = v.Object
	return nil
}

// UnmarshalJSON decodes any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeValue(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// DecodeValue parses a complete JSON document into a Value.
func DecodeValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("unexpected data after json value")
	}
	return v, nil
}

func readValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Number: t}, nil
	case string:
		return Value{Kind: KindString, Str: t}, nil
	case json.Delim:
		switch t {
		case '{':
			return readObject(dec)
		case '[':
			return readArray(dec)
		}
	}
	return Value{}, fmt.Errorf("unexpected json token %v", tok)
}

func readObject(dec *json.Decoder) (Value, error) {
	rec := Record{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("unexpected object key %v", tok)
		}
		val, err := readValue(dec)
		if err != nil {
			return Value{}, err
		}
		// Duplicate keys keep their first position and the last value.
		if i, seen := index[key]; seen {
			rec[i].Value = val
			continue
		}
		index[key] = len(rec)
		rec = append(rec, Field{Name: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Value{Kind: KindObject, Object: rec}, nil
}

func readArray(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		val, err := readValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, val)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Value{Kind: KindArray, Array: items}, nil
}

// Str builds a string Value; handy for fixtures.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Num builds a number Value from its textual form.
func Num(n string) Value { return Value{Kind: KindNumber, Number: json.Number(n)} }
