package memory

// Scope layers a private store over a parent getter. Reads check the private
// store first; writes only ever touch the private store.
type Scope struct {
	local  *Store
	parent Getter
}

// NewScope creates a scope over parent. A nil local store is allocated.
func NewScope(local *Store, parent Getter) *Scope {
	if local == nil {
		local = New()
	}
	return &Scope{local: local, parent: parent}
}

// Get resolves key against the private store, then the parent.
func (s *Scope) Get(key string) any {
	v, _ := s.Lookup(key)
	return v
}

// Lookup is Get with a found flag.
func (s *Scope) Lookup(key string) (any, bool) {
	if v, ok := s.local.Lookup(key); ok {
		return v, true
	}
	if s.parent == nil {
		return nil, false
	}
	if l, ok := s.parent.(interface{ Lookup(string) (any, bool) }); ok {
		return l.Lookup(key)
	}
	v := s.parent.Get(key)
	return v, v != nil
}

// Set writes to the private store.
func (s *Scope) Set(key string, value any) {
	s.local.Set(key, value)
}

// Local returns the private store.
func (s *Scope) Local() *Store {
	return s.local
}
