package service

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// TXT is an ordered set of TXT record key/value pairs. Keys are unique;
// a repeated key keeps its first position and takes the last value.
type TXT struct {
	keys   []string
	values map[string]string
}

// ParseTXT builds a TXT from raw "key=value" strings. A string without
// '=' is a key with an empty value.
func ParseTXT(raw []string) TXT {
	var t TXT
	for _, s := range raw {
		if s == "" {
			continue
		}
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			t.Set(parts[0], parts[1])
		} else {
			t.Set(parts[0], "")
		}
	}
	return t
}

// TXTFromMap builds a TXT from an unordered map, ordering keys alphabetically.
func TXTFromMap(m map[string]string) TXT {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var t TXT
	for _, k := range keys {
		t.Set(k, m[k])
	}
	return t
}

// Set adds or replaces a key.
func (t *TXT) Set(key, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = value
}

// Get returns the value for key.
func (t TXT) Get(key string) (string, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (t TXT) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

func (t TXT) Len() int { return len(t.keys) }

// Map returns an unordered copy.
func (t TXT) Map() map[string]string {
	m := make(map[string]string, len(t.values))
	for k, v := range t.values {
		m[k] = v
	}
	return m
}

// MarshalJSON writes the pairs as a JSON object in insertion order.
func (t TXT) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(t.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
