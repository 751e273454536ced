package hashtable

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/mem"
)

// Map is a unique-key hash map over a Table.
type Map struct {
	*Table
}

// InitializeMap writes an empty hash map control block at addr.
func InitializeMap(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Map, error) {
	t, err := Initialize(view, profile, addr, key, value, alloc)
	if err != nil {
		return nil, err
	}
	return &Map{Table: t}, nil
}

// MapAt interprets an existing hash map control block at addr.
func MapAt(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Map, error) {
	t, err := At(view, profile, addr, key, value, alloc)
	if err != nil {
		return nil, err
	}
	return &Map{Table: t}, nil
}

// Set is a unique-key hash set over a Table; nodes carry only keys.
type Set struct {
	*Table
}

// InitializeSet writes an empty hash set control block at addr.
func InitializeSet(view *mem.View, profile *abi.Profile, addr uint64, key abi.Type, alloc eastl.Allocator) (*Set, error) {
	t, err := Initialize(view, profile, addr, key, nil, alloc)
	if err != nil {
		return nil, err
	}
	return &Set{Table: t}, nil
}

// SetAt interprets an existing hash set control block at addr.
func SetAt(view *mem.View, profile *abi.Profile, addr uint64, key abi.Type, alloc eastl.Allocator) (*Set, error) {
	t, err := At(view, profile, addr, key, nil, alloc)
	if err != nil {
		return nil, err
	}
	return &Set{Table: t}, nil
}

// Insert adds k to the set. added is false when k was already present.
func (s *Set) Insert(k any) (added bool, err error) {
	replaced, err := s.Table.Insert(k, nil)
	return !replaced, err
}

// EachKey calls fn for every key until fn returns false.
func (s *Set) EachKey(fn func(k any) bool) error {
	return s.Each(func(k, _ any) bool { return fn(k) })
}

// MultiMap is a hash map that keeps duplicate keys; inserts link new nodes
// at the chain head, so the latest duplicate is seen first.
type MultiMap struct {
	*Table
}

// InitializeMultiMap writes an empty multimap control block at addr.
func InitializeMultiMap(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*MultiMap, error) {
	t, err := Initialize(view, profile, addr, key, value, alloc)
	if err != nil {
		return nil, err
	}
	return &MultiMap{Table: t}, nil
}

// Insert always adds a node, even when k is already present.
func (m *MultiMap) Insert(k, v any) error {
	return m.InsertMulti(k, v)
}

// GetAll returns every value stored under k, latest insert first.
func (m *MultiMap) GetAll(k any) ([]any, error) {
	var out []any
	err := m.Each(func(gk, v any) bool {
		if gk == k {
			out = append(out, v)
		}
		return true
	})
	return out, err
}

// MultiSet is a hash set that keeps duplicate keys.
type MultiSet struct {
	*Table
}

// InitializeMultiSet writes an empty multiset control block at addr.
func InitializeMultiSet(view *mem.View, profile *abi.Profile, addr uint64, key abi.Type, alloc eastl.Allocator) (*MultiSet, error) {
	t, err := Initialize(view, profile, addr, key, nil, alloc)
	if err != nil {
		return nil, err
	}
	return &MultiSet{Table: t}, nil
}

// Insert always adds a node, even when k is already present.
func (m *MultiSet) Insert(k any) error {
	return m.InsertMulti(k, nil)
}

// Count returns the number of nodes stored under k.
func (m *MultiSet) Count(k any) (uint64, error) {
	var n uint64
	err := m.Each(func(gk, _ any) bool {
		if gk == k {
			n++
		}
		return true
	})
	return n, err
}
