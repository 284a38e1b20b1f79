// Package hashmap emulates field-level hash operations on top of a plain
// key-value store. A hash is one JSON object stored under one key.
//
// Every write is a read-modify-write of the whole object with no
// concurrency control: two writers on the same key race and the later
// Save wins.
package hashmap

import (
	"context"
	"encoding/json"
	"sort"
)

// Store is the single-key view a hash is built on. Load returns
// found=false for a missing key.
type Store interface {
	Load(ctx context.Context, key string) (raw []byte, found bool, err error)
	Save(ctx context.Context, key string, raw []byte) error
}

// Set loads key, sets field and writes the whole object back. A missing or
// unparsable value starts a fresh object.
func Set(ctx context.Context, s Store, key, field string, value any) error {
	m, _, err := load(ctx, s, key)
	if err != nil {
		return err
	}
	if m == nil {
		m = make(map[string]any, 1)
	}
	m[field] = value
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.Save(ctx, key, raw)
}

// GetAll returns the object under key. ok is false both when the key is
// missing and when its value is not a JSON object.
func GetAll(ctx context.Context, s Store, key string) (map[string]any, bool, error) {
	return load(ctx, s, key)
}

// Vals returns the field values ordered by field name.
func Vals(ctx context.Context, s Store, key string) ([]any, bool, error) {
	m, ok, err := load(ctx, s, key)
	if err != nil || !ok {
		return nil, false, err
	}
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, m[f])
	}
	return out, true, nil
}

func load(ctx context.Context, s Store, key string) (map[string]any, bool, error) {
	raw, found, err := s.Load(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false, nil
	}
	return m, true, nil
}
