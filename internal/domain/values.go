package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Field is one named value of an ordered Values list.
type Field struct {
	Key   string
	Value any
}

// Values is an ordered set of named query values. Key order is significant:
// it drives context slugs and canonical query strings, so Values must never
// be rebuilt from a Go map.
type Values []Field

// Pairs builds Values from alternating keys and values.
func Pairs(kv ...any) Values {
	if len(kv)%2 != 0 {
		panic("domain.Pairs: odd number of arguments")
	}
	v := make(Values, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("domain.Pairs: key %v is not a string", kv[i]))
		}
		v.Set(key, kv[i+1])
	}
	return v
}

// Get returns the value stored under key.
func (v Values) Get(key string) (any, bool) {
	for _, f := range v {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present (a nil value still counts).
func (v Values) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Set replaces the value of key in place, or appends it.
func (v *Values) Set(key string, value any) {
	for i := range *v {
		if (*v)[i].Key == key {
			(*v)[i].Value = value
			return
		}
	}
	*v = append(*v, Field{Key: key, Value: value})
}

// Keys returns the keys in order.
func (v Values) Keys() []string {
	keys := make([]string, len(v))
	for i, f := range v {
		keys[i] = f.Key
	}
	return keys
}

// Clone returns a deep copy.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	out := make(Values, len(v))
	for i, f := range v {
		out[i] = Field{Key: f.Key, Value: CloneValue(f.Value)}
	}
	return out
}

// Map flattens the values into a map. Order is lost.
func (v Values) Map() map[string]any {
	m := make(map[string]any, len(v))
	for _, f := range v {
		m[f.Key] = f.Value
	}
	return m
}

// Merge layers the given values left to right. Later layers override the
// value of an existing key without moving it; new keys are appended.
func Merge(layers ...Values) Values {
	out := Values{}
	for _, layer := range layers {
		for _, f := range layer {
			out.Set(f.Key, CloneValue(f.Value))
		}
	}
	return out
}

// MarshalJSON renders the values as a JSON object in key order.
func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*v = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("values: expected object, got %v", tok)
	}
	out := Values{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("values: expected key, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("values: decode %s: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*v = out
	return nil
}

// UnmarshalYAML decodes a YAML mapping keeping its key order.
func (v *Values) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*v = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("values: expected mapping at line %d", node.Line)
	}
	out := Values{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("values: decode %s: %w", node.Content[i].Value, err)
		}
		out.Set(node.Content[i].Value, normalizeYAML(value))
	}
	*v = out
	return nil
}

// CloneValue deep-copies JSON-like values (maps, slices, scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Item:
		return Item(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case Values:
		return t.Clone()
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// normalizeYAML turns yaml.v3's map[string]interface{} and int results into
// the shapes encoding/json produces so that both config formats agree.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeYAML(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeYAML(e)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	}
	return v
}
