package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Row is an ordered mapping from column name to Value.
// Keys keep their first insertion order; setting an existing key updates it in place.
type Row struct {
	keys []string
	vals map[string]Value
}

// NewRow returns an empty row with room for n fields.
func NewRow(n int) *Row {
	return &Row{keys: make([]string, 0, n), vals: make(map[string]Value, n)}
}

// RowOf builds a row from alternating key/value pairs. Handy in tests.
func RowOf(pairs ...any) *Row {
	r := NewRow(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case nil:
			r.Set(k, Missing())
		case Value:
			r.Set(k, v)
		case string:
			r.Set(k, Text(v))
		case float64:
			r.Set(k, Number(v))
		case int:
			r.Set(k, Number(float64(v)))
		default:
			r.Set(k, Text(fmt.Sprint(v)))
		}
	}
	return r
}

// Set assigns a value to key.
func (r *Row) Set(key string, v Value) {
	if r.vals == nil {
		r.vals = make(map[string]Value)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

// Get returns the value for key and whether the key is present.
func (r *Row) Get(key string) (Value, bool) {
	if r == nil {
		return Missing(), false
	}
	v, ok := r.vals[key]
	return v, ok
}

// Value returns the value for key; absent keys read as missing.
func (r *Row) Value(key string) Value {
	v, _ := r.Get(key)
	return v
}

// Keys returns the keys in insertion order.
func (r *Row) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns an independent copy.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	c := NewRow(len(r.keys))
	for _, k := range r.keys {
		c.Set(k, r.vals[k])
	}
	return c
}

// MarshalJSON writes the row as an object in key order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.vals[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the document's key order.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("row must be a JSON object")
	}
	*r = Row{vals: map[string]Value{}}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}
