package rbtree

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/fixedpool"
	"github.com/memscape/eastl/mem"
)

// Map is an ordered map over a Tree.
type Map struct {
	*Tree
}

// InitializeMap writes an empty ordered map control block at addr.
func InitializeMap(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Map, error) {
	t, err := Initialize(view, profile, addr, key, value, alloc)
	if err != nil {
		return nil, err
	}
	return &Map{Tree: t}, nil
}

// MapAt interprets an existing ordered map control block at addr.
func MapAt(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Map, error) {
	t, err := At(view, profile, addr, key, value, alloc)
	if err != nil {
		return nil, err
	}
	return &Map{Tree: t}, nil
}

// Set is an ordered set over a Tree; nodes carry only keys.
type Set struct {
	*Tree
}

// InitializeSet writes an empty ordered set control block at addr.
func InitializeSet(view *mem.View, profile *abi.Profile, addr uint64, key abi.Type, alloc eastl.Allocator) (*Set, error) {
	t, err := Initialize(view, profile, addr, key, nil, alloc)
	if err != nil {
		return nil, err
	}
	return &Set{Tree: t}, nil
}

// SetAt interprets an existing ordered set control block at addr.
func SetAt(view *mem.View, profile *abi.Profile, addr uint64, key abi.Type, alloc eastl.Allocator) (*Set, error) {
	t, err := At(view, profile, addr, key, nil, alloc)
	if err != nil {
		return nil, err
	}
	return &Set{Tree: t}, nil
}

// Insert adds k to the set. added is false when k was already present.
func (s *Set) Insert(k any) (added bool, err error) {
	replaced, err := s.Tree.Insert(k, nil)
	return !replaced, err
}

// fixedLayout places the with-overflow pool where the allocator word would
// sit and appends the inline node buffer with one pad node.
func fixedLayout(p *abi.Profile, key, value abi.Type, nodeCount uint64) abi.Info {
	node := nodeLayout(p, key, value)
	return abi.Struct(
		abi.Ptr(p, "compare"),
		abi.Ptr(p, "begin"),
		abi.Ptr(p, "end"),
		abi.Ptr(p, "parent"),
		abi.Ptr(p, "size"),
		abi.Raw("pool", fixedpool.WithOverflowSizeOf(p), p.Word()),
		abi.Raw("buffer", (nodeCount+1)*node.Size, node.Align),
	)
}

// FixedMapSizeOf returns the size of a fixed map control block, inline
// node buffer included.
func FixedMapSizeOf(p *abi.Profile, key, value abi.Type, nodeCount uint64) uint64 {
	return fixedLayout(p, key, value, nodeCount).Size
}

// FixedMap is an ordered map whose nodes live in an inline buffer. Without
// an overflow allocator an insert past nodeCount fails with a capacity
// error; with one, nodes spill to the overflow allocator.
type FixedMap struct {
	*Map

	nodeCount uint64
}

// InitializeFixedMap writes an empty fixed map at addr.
func InitializeFixedMap(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, nodeCount uint64, overflow eastl.Allocator) (*FixedMap, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	info := fixedLayout(profile, key, value, nodeCount)
	node := nodeLayout(profile, key, value)

	if !profile.FixedOverflow {
		overflow = nil
	}
	pool, err := fixedpool.InitializeWithOverflow(view,
		addr+info.Offset("pool"),
		addr+info.Offset("buffer"), nodeCount*node.Size,
		node.Size, node.Align,
		overflow)
	if err != nil {
		return nil, err
	}

	t := newTree(view, profile, addr, key, value, pool)
	for _, f := range []string{"compare", "begin", "end", "parent", "size"} {
		if err := view.WritePtr(t.offs(f), 0); err != nil {
			return nil, err
		}
	}
	return &FixedMap{Map: &Map{Tree: t}, nodeCount: nodeCount}, nil
}

// AtFixedMap interprets an existing fixed map control block at addr.
func AtFixedMap(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, nodeCount uint64, overflow eastl.Allocator) (*FixedMap, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	info := fixedLayout(profile, key, value, nodeCount)
	node := nodeLayout(profile, key, value)

	if !profile.FixedOverflow {
		overflow = nil
	}
	pool := fixedpool.AtWithOverflow(view, addr+info.Offset("pool"), node.Size, overflow)

	t, err := At(view, profile, addr, key, value, pool)
	if err != nil {
		return nil, err
	}
	return &FixedMap{Map: &Map{Tree: t}, nodeCount: nodeCount}, nil
}

// MaxSize returns the inline node capacity.
func (f *FixedMap) MaxSize() uint64 {
	return f.nodeCount
}

// Full reports whether the inline buffer is exhausted. With an overflow
// allocator a full map still accepts inserts.
func (f *FixedMap) Full() (bool, error) {
	ok, err := f.alloc.(*fixedpool.WithOverflow).CanAllocate()
	return !ok, err
}
