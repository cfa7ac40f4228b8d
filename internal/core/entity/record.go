package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Reserved record keys. Everything else in a stored object belongs to the
// entity kind and is carried opaquely in Attrs.
const (
	keyID         = "id"
	keyType       = "type"
	keyCreateTime = "createTime"
	keyKillTime   = "killTime"
)

// Record is the persisted projection of an entity: the fields the registry
// needs to reconstruct an equivalent one, plus kind-specific attributes the
// registry never interprets.
//
// On the wire a Record is a flat JSON object: Attrs entries sit next to the
// reserved keys, not nested under a sub-object.
type Record struct {
	ID         string
	Type       string
	CreateTime int64 // epoch milliseconds; zero means "freshly created"
	KillTime   int64 // epoch milliseconds; zero means "never expires"
	Attrs      map[string]any
}

// NewRecord returns a Record of the given type with no attributes.
func NewRecord(typ string) Record {
	return Record{Type: typ}
}

// Clone returns a copy with its own Attrs map.
func (r Record) Clone() Record {
	out := r
	if r.Attrs != nil {
		out.Attrs = make(map[string]any, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// WithAttr returns a copy of the record with one attribute set.
func (r Record) WithAttr(key string, value any) Record {
	out := r.Clone()
	if out.Attrs == nil {
		out.Attrs = make(map[string]any, 1)
	}
	out.Attrs[key] = value
	return out
}

// StringAttr returns a string attribute, or empty string if absent or not
// a string.
func (r Record) StringAttr(key string) string {
	s, _ := r.Attrs[key].(string)
	return s
}

// IntAttr returns an integer attribute. JSON numbers decode as json.Number
// in the record codec, so both forms are accepted.
func (r Record) IntAttr(key string) int64 {
	switch v := r.Attrs[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// StringsAttr returns a string-slice attribute, tolerating the []any form
// produced by JSON decoding.
func (r Record) StringsAttr(key string) []string {
	switch v := r.Attrs[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.Type == "" {
		return nil, fmt.Errorf("record has no type")
	}
	flat := make(map[string]any, len(r.Attrs)+4)
	for k, v := range r.Attrs {
		switch k {
		case keyID, keyType, keyCreateTime, keyKillTime:
			// reserved keys always come from the struct fields
		default:
			flat[k] = v
		}
	}
	if r.ID != "" {
		flat[keyID] = r.ID
	}
	flat[keyType] = r.Type
	if r.CreateTime != 0 {
		flat[keyCreateTime] = r.CreateTime
	}
	if r.KillTime != 0 {
		flat[keyKillTime] = r.KillTime
	}
	return marshalSortedObject(flat)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	flat := make(map[string]any)
	if err := dec.Decode(&flat); err != nil {
		return err
	}
	*r = Record{}
	for k, v := range flat {
		switch k {
		case keyID:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("record id must be a string")
			}
			r.ID = s
		case keyType:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("record type must be a string")
			}
			r.Type = s
		case keyCreateTime:
			n, err := toEpochMillis(v)
			if err != nil {
				return fmt.Errorf("record createTime: %w", err)
			}
			r.CreateTime = n
		case keyKillTime:
			n, err := toEpochMillis(v)
			if err != nil {
				return fmt.Errorf("record killTime: %w", err)
			}
			r.KillTime = n
		default:
			if r.Attrs == nil {
				r.Attrs = make(map[string]any)
			}
			r.Attrs[k] = v
		}
	}
	if r.Type == "" {
		return fmt.Errorf("record has no type")
	}
	return nil
}

func toEpochMillis(v any) (int64, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected integer epoch milliseconds, got %T", v)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, err
	}
	return i, nil
}

// marshalSortedObject encodes a map with deterministic key order so that a
// stored document only changes bytes when its content changes.
func marshalSortedObject(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// sortIDs orders live-map ids numeric-aware, so "2" comes before "10" while
// non-numeric ids sort lexicographically after numeric ones.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		an, aerr := strconv.Atoi(ids[i])
		bn, berr := strconv.Atoi(ids[j])
		switch {
		case aerr == nil && berr == nil:
			return an < bn
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
