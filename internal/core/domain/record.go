package domain

import (
	"maps"
	"slices"
)

// Record is a flat, ordered column -> value mapping. It is produced by the
// parsers and the normalizer and written as a single table row.
type Record struct {
	keys   []string
	values map[string]any
}

func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// RecordFromMap builds a record from a decoded JSON object. JSON objects carry
// no usable key order once decoded, so keys are sorted for determinism.
func RecordFromMap(m map[string]any) *Record {
	r := &Record{
		keys:   slices.Sorted(maps.Keys(m)),
		values: make(map[string]any, len(m)),
	}
	for k, v := range m {
		r.values[k] = v
	}
	return r
}

// Set assigns a value, appending the key when it is new.
func (r *Record) Set(key string, value any) *Record {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

func (r *Record) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.keys)
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Clone returns a shallow copy; nested values are shared.
func (r *Record) Clone() *Record {
	out := &Record{
		keys:   slices.Clone(r.keys),
		values: make(map[string]any, len(r.values)),
	}
	maps.Copy(out.values, r.values)
	return out
}

// Merge copies every field of other into r, overwriting existing keys.
func (r *Record) Merge(other *Record) *Record {
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		r.Set(k, v)
	}
	return r
}

// Map returns a plain map view, used for JSON rendering.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	for _, k := range r.Keys() {
		out[k] = r.values[k]
	}
	return out
}
