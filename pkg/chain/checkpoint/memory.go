package checkpoint

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory snapshot store for testing and single-process
// embedding. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]storedSnapshot // chainID -> tag -> snapshot
	seq    int
	closed bool
}

type storedSnapshot struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]storedSnapshot),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(chainID, tag string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if m.data[chainID] == nil {
		m.data[chainID] = make(map[string]storedSnapshot)
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	m.seq++
	m.data[chainID][tag] = storedSnapshot{
		data:      stored,
		sequence:  m.seq,
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(chainID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var latest *storedSnapshot
	for _, s := range m.data[chainID] {
		s := s
		if latest == nil || s.sequence > latest.sequence {
			latest = &s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return clone(latest.data), nil
}

// LoadTag implements Store.
func (m *MemoryStore) LoadTag(chainID, tag string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	s, ok := m.data[chainID][tag]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.data), nil
}

// List implements Store.
func (m *MemoryStore) List(chainID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	snaps := m.data[chainID]
	infos := make([]Info, 0, len(snaps))
	for tag, s := range snaps {
		infos = append(infos, Info{
			ChainID:   chainID,
			Tag:       tag,
			Sequence:  s.sequence,
			Timestamp: s.timestamp,
			Size:      int64(len(s.data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Chains implements Store.
func (m *MemoryStore) Chains() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(m.data))
	for id, snaps := range m.data {
		if len(snaps) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(chainID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if snaps, ok := m.data[chainID]; ok {
		delete(snaps, tag)
	}
	return nil
}

// DeleteChain implements Store.
func (m *MemoryStore) DeleteChain(chainID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, chainID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of snapshots across all chains.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, snaps := range m.data {
		count += len(snaps)
	}
	return count
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
