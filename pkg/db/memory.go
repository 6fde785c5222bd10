package db

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"edu-etl/pkg/domain"
)

type memIndex struct {
	keys   []string
	unique bool
}

// MemoryStore is an in-process Store used by tests and dry runs.
// Documents are shallow-copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	colls   map[string][]domain.Record
	indexes map[string]map[string]memIndex
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		colls:   make(map[string][]domain.Record),
		indexes: make(map[string]map[string]memIndex),
	}
}

// Opener returns an Opener handing out this same store. Close on it is a no-op.
func (m *MemoryStore) Opener() Opener {
	return func(context.Context) (Store, error) { return m, nil }
}

func (m *MemoryStore) Drop(_ context.Context, coll string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.colls, coll)
	delete(m.indexes, coll)
	return nil
}

func (m *MemoryStore) InsertOne(_ context.Context, coll string, doc domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colls[coll] = append(m.colls[coll], doc.Clone())
	return nil
}

func (m *MemoryStore) InsertMany(_ context.Context, coll string, docs []domain.Record) error {
	if len(docs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.colls[coll] = append(m.colls[coll], d.Clone())
	}
	return nil
}

func (m *MemoryStore) Find(_ context.Context, coll string, filter Filter) ([]domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Record
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) FindOne(_ context.Context, coll string, filter Filter) (domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			return d.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Count(_ context.Context, coll string, filter Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteMany(_ context.Context, coll string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.colls[coll]
	kept := docs[:0]
	var n int64
	for _, d := range docs {
		if matches(d, filter) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	m.colls[coll] = kept
	return n, nil
}

func (m *MemoryStore) CreateIndex(_ context.Context, coll string, keys []string, unique bool) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("create index on %s: no keys", coll)
	}
	name := IndexName(keys)
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexes[coll]
	if idx == nil {
		idx = make(map[string]memIndex)
		m.indexes[coll] = idx
	}
	if existing, ok := idx[name]; ok && existing.unique != unique {
		return "", fmt.Errorf("create index on %s: index %s exists with different options", coll, name)
	}
	idx[name] = memIndex{keys: append([]string(nil), keys...), unique: unique}
	return name, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

// Indexes lists index names on coll, sorted.
func (m *MemoryStore) Indexes(coll string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indexes[coll]))
	for n := range m.indexes[coll] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Collections lists collections holding at least one document, sorted.
func (m *MemoryStore) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.colls))
	for n, docs := range m.colls {
		if len(docs) > 0 {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func matches(doc domain.Record, filter Filter) bool {
	for path, want := range filter {
		got, present := doc.Lookup(path)
		if op, ok := domain.AsMap(want); ok {
			if in, hasIn := op["$in"]; hasIn {
				if !matchesAny(got, present, in) {
					return false
				}
				continue
			}
		}
		if !equalValue(got, present, want) {
			return false
		}
	}
	return true
}

func matchesAny(got any, present bool, candidates any) bool {
	rv := reflect.ValueOf(candidates)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equalValue(got, present, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// equalValue follows the document-store rules: null matches a missing field and
// numbers compare by value across types.
func equalValue(got any, present bool, want any) bool {
	if want == nil {
		return !present || got == nil
	}
	if !present {
		return false
	}
	if gf, err := numeric(got); err == nil {
		if wf, err := numeric(want); err == nil {
			return gf == wf
		}
	}
	return reflect.DeepEqual(got, want)
}

func numeric(v any) (float64, error) {
	if _, isStr := v.(string); isStr {
		return 0, fmt.Errorf("string is not numeric here")
	}
	return domain.ToFloat(v)
}
