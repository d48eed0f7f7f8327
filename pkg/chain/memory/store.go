// Package memory provides the variable store shared by the nodes of a chain.
//
// Keys are flat strings. Node outputs are stored under "{nodeID}.{key}", so a
// lookup like "fetch.items.title" usually misses the exact key and falls back
// to path evaluation: the longest stored prefix ("fetch.items") is found and
// the remaining segments ("title") are evaluated against its value. When the
// value at any step is a slice, the rest of the path is evaluated against each
// element and the results are collected into a []any.
//
// Lookups never fail. Anything that cannot be resolved is reported as nil.
package memory

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// Getter is implemented by anything that can resolve a dotted key.
type Getter interface {
	Get(key string) any
}

// Store is a concurrency-safe key/value memory with dotted-path lookup.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string]any)}
}

// FromMap creates a store seeded with a copy of m.
func FromMap(m map[string]any) *Store {
	s := New()
	s.SetAll(m)
	return s
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// SetAll merges every entry of m into the store. Last write wins.
func (s *Store) SetAll(m map[string]any) {
	if len(m) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.data[k] = v
	}
}

// Get resolves key. An exact match wins; otherwise the longest stored prefix
// of the dotted key is located and the remainder is evaluated as a path
// against its value.
func (s *Store) Get(key string) any {
	v, _ := s.Lookup(key)
	return v
}

// Lookup is Get with a found flag. A key that resolves to a stored nil is
// reported as found.
func (s *Store) Lookup(key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.data[key]; ok {
		return v, true
	}

	segments := strings.Split(key, ".")
	for i := len(segments) - 1; i > 0; i-- {
		prefix := strings.Join(segments[:i], ".")
		root, ok := s.data[prefix]
		if !ok {
			continue
		}
		v := Path(root, segments[i:])
		return v, v != nil
	}
	return nil, false
}

// Has reports whether key is stored exactly.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Remove deletes key.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any)
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns a shallow copy of the stored entries.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the stored entries as a JSON object.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.All())
}

// UnmarshalJSON replaces the store content. Numbers are normalized with
// Normalize so integral values come back as int64.
func (s *Store) UnmarshalJSON(data []byte) error {
	m, err := DecodeMap(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = m
	if s.data == nil {
		s.data = make(map[string]any)
	}
	return nil
}
