// Package vectormap implements the sorted-vector map: key/value pairs
// stored contiguously in key order and looked up by binary search.
//
// The control block is identical to a plain vector. The comparator is a
// zero-size functor and contributes no bytes.
package vectormap

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/compare"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
	"github.com/memscape/eastl/vector"
)

// SizeOf returns the size of the vector map control block.
func SizeOf(p *abi.Profile) uint64 {
	return vector.SizeOf(p)
}

// AlignOf returns the alignment of the vector map control block.
func AlignOf(p *abi.Profile) uint64 {
	return vector.AlignOf(p)
}

// VectorMap is a handle over a sorted-vector map control block.
type VectorMap struct {
	vec     *vector.Vector
	view    *mem.View
	profile *abi.Profile
	addr    uint64
	pair    *abi.Pair
	alloc   eastl.Allocator
}

// Initialize writes an empty vector map at addr.
func Initialize(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*VectorMap, error) {
	pair := &abi.Pair{Key: key, Value: value}
	vec, err := vector.Initialize(view, profile, addr, pair, alloc)
	if err != nil {
		return nil, err
	}
	return &VectorMap{vec: vec, view: view, profile: profile, addr: addr, pair: pair, alloc: alloc}, nil
}

// At interprets an existing vector map control block at addr. Beyond the
// vector's pointer checks the keys must be strictly increasing; a violation
// means the image was not written by map insertion.
func At(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*VectorMap, error) {
	pair := &abi.Pair{Key: key, Value: value}
	vec, err := vector.At(view, profile, addr, pair, alloc)
	if err != nil {
		return nil, err
	}
	m := &VectorMap{vec: vec, view: view, profile: profile, addr: addr, pair: pair, alloc: alloc}

	n, err := m.vec.Len()
	if err != nil {
		return nil, err
	}
	var prev any
	for i := uint64(0); i < n; i++ {
		k, err := m.keyAt(i)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			lt, err := compare.Less(prev, k)
			if err != nil {
				return nil, err
			}
			if !lt {
				return nil, errors.CorruptLayout(errors.PhaseRead, addr,
					"keys out of order at index %d", i)
			}
		}
		prev = k
	}
	return m, nil
}

// Addr returns the control block address.
func (m *VectorMap) Addr() uint64 {
	return m.addr
}

// Len returns the pair count.
func (m *VectorMap) Len() (uint64, error) {
	return m.vec.Len()
}

// Empty reports whether the map holds no pairs.
func (m *VectorMap) Empty() (bool, error) {
	return m.vec.Empty()
}

func (m *VectorMap) elemAddr(i uint64) (uint64, error) {
	begin, err := m.vec.Data()
	if err != nil {
		return 0, err
	}
	return begin + i*m.pair.Size(m.profile), nil
}

func (m *VectorMap) keyAt(i uint64) (any, error) {
	addr, err := m.elemAddr(i)
	if err != nil {
		return nil, err
	}
	return m.pair.Key.Load(m.view, addr)
}

// lowerBound returns the first index whose key is not less than k, and the
// pair count.
func (m *VectorMap) lowerBound(k any) (idx, n uint64, err error) {
	n, err = m.vec.Len()
	if err != nil {
		return 0, 0, err
	}
	lo, hi := uint64(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		key, err := m.keyAt(mid)
		if err != nil {
			return 0, 0, err
		}
		lt, err := compare.Less(key, k)
		if err != nil {
			return 0, 0, err
		}
		if lt {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, n, nil
}

// find returns the index holding k, or found=false when the lower bound is
// past the end or holds a different key.
func (m *VectorMap) find(k any) (idx uint64, found bool, err error) {
	idx, n, err := m.lowerBound(k)
	if err != nil {
		return 0, false, err
	}
	if idx == n {
		return idx, false, nil
	}
	key, err := m.keyAt(idx)
	if err != nil {
		return 0, false, err
	}
	eq, err := compare.Equal(key, k)
	if err != nil {
		return 0, false, err
	}
	return idx, eq, nil
}

// Get returns the value stored under k. ok is false when k is absent.
func (m *VectorMap) Get(k any) (val any, ok bool, err error) {
	idx, found, err := m.find(k)
	if err != nil || !found {
		return nil, false, err
	}
	addr, err := m.elemAddr(idx)
	if err != nil {
		return nil, false, err
	}
	val, err = m.pair.Value.Load(m.view, addr+m.pair.ValueOffset(m.profile))
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Contains reports whether k is present.
func (m *VectorMap) Contains(k any) (bool, error) {
	_, found, err := m.find(k)
	return found, err
}

// Insert stores v under k, replacing an existing value in place. A new
// pair enters at its lower bound, keeping the keys sorted.
func (m *VectorMap) Insert(k, v any) (replaced bool, err error) {
	if m.alloc == nil {
		return false, errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(m.addr).
			Detail("read-only handle cannot insert").
			Build()
	}
	idx, found, err := m.find(k)
	if err != nil {
		return false, err
	}
	if found {
		addr, err := m.elemAddr(idx)
		if err != nil {
			return false, err
		}
		valAddr := addr + m.pair.ValueOffset(m.profile)
		if err := m.pair.Value.Release(m.view, valAddr, m.alloc); err != nil {
			return false, err
		}
		return true, m.pair.Value.Store(m.view, valAddr, v, m.alloc)
	}
	return false, m.vec.Insert(idx, abi.PairValue{Key: k, Value: v})
}

// Remove deletes the pair stored under k and returns its value. ok is
// false when k is absent.
func (m *VectorMap) Remove(k any) (val any, ok bool, err error) {
	if m.alloc == nil {
		return nil, false, errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(m.addr).
			Detail("read-only handle cannot remove").
			Build()
	}
	idx, found, err := m.find(k)
	if err != nil || !found {
		return nil, false, err
	}
	pv, ok, err := m.vec.Remove(idx)
	if err != nil || !ok {
		return nil, false, err
	}
	return pv.(abi.PairValue).Value, true, nil
}

// Each calls fn for every pair in key order until fn returns false.
func (m *VectorMap) Each(fn func(k, v any) bool) error {
	return m.vec.Each(func(_ uint64, val any) bool {
		pv := val.(abi.PairValue)
		return fn(pv.Key, pv.Value)
	})
}

// Keys loads every key in sorted order.
func (m *VectorMap) Keys() ([]any, error) {
	n, err := m.Len()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, n)
	err = m.Each(func(k, _ any) bool {
		out = append(out, k)
		return true
	})
	return out, err
}

// Clear removes every pair. Heap-owning keys and values are released; the
// element buffer itself is kept for reuse.
func (m *VectorMap) Clear() error {
	if m.alloc == nil {
		return errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(m.addr).
			Detail("read-only handle cannot clear").
			Build()
	}
	for {
		_, ok, err := m.vec.PopBack()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// Regions returns the memory the map occupies; the image is a plain
// vector of pairs.
func (m *VectorMap) Regions() ([]eastl.Region, error) {
	return m.vec.Regions()
}
