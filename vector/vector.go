// Package vector implements the contiguous array container and its
// fixed-capacity variant.
//
// The control block is three pointers {begin, end, capacity} followed by a
// one-word allocator. Size and capacity are derived from pointer
// differences, never stored.
package vector

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/growth"
	"github.com/memscape/eastl/mem"
)

func layout(p *abi.Profile) abi.Info {
	return abi.Layout(abi.FamilyVector, p, func(p *abi.Profile) []abi.Field {
		return []abi.Field{
			abi.Ptr(p, "begin"),
			abi.Ptr(p, "end"),
			abi.Ptr(p, "capacity"),
			abi.Ptr(p, "allocator"),
		}
	})
}

// SizeOf returns the size of the vector control block.
func SizeOf(p *abi.Profile) uint64 {
	return layout(p).Size
}

// AlignOf returns the alignment of the vector control block.
func AlignOf(p *abi.Profile) uint64 {
	return layout(p).Align
}

// Vector is a handle over a vector control block.
type Vector struct {
	view    *mem.View
	profile *abi.Profile
	addr    uint64
	elem    abi.Type
	alloc   eastl.Allocator
}

// Initialize writes an empty vector at addr. An empty vector is all null
// pointers; nothing is allocated until the first growth.
func Initialize(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*Vector, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	info := layout(profile)
	for _, f := range []string{"begin", "end", "capacity", "allocator"} {
		if err := view.WritePtr(addr+info.Offset(f), 0); err != nil {
			return nil, err
		}
	}
	return &Vector{view: view, profile: profile, addr: addr, elem: elem, alloc: alloc}, nil
}

// At interprets an existing vector control block at addr. The pointer
// triple is checked for ordering before the handle is returned.
func At(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*Vector, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	v := &Vector{view: view, profile: profile, addr: addr, elem: elem, alloc: alloc}
	begin, end, capacity, err := v.pointers()
	if err != nil {
		return nil, err
	}
	if begin > end || end > capacity {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr,
			"pointer triple out of order: begin=%#x end=%#x capacity=%#x", begin, end, capacity)
	}
	if es := elem.Size(profile); es > 0 && (end-begin)%es != 0 {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr,
			"byte span %d not a multiple of element size %d", end-begin, es)
	}
	return v, nil
}

// Addr returns the control block address.
func (v *Vector) Addr() uint64 {
	return v.addr
}

func (v *Vector) offs(name string) uint64 {
	return v.addr + layout(v.profile).Offset(name)
}

func (v *Vector) pointers() (begin, end, capacity uint64, err error) {
	if begin, err = v.view.ReadPtr(v.offs("begin")); err != nil {
		return
	}
	if end, err = v.view.ReadPtr(v.offs("end")); err != nil {
		return
	}
	capacity, err = v.view.ReadPtr(v.offs("capacity"))
	return
}

// Len returns the element count.
func (v *Vector) Len() (uint64, error) {
	begin, end, _, err := v.pointers()
	if err != nil {
		return 0, err
	}
	return (end - begin) / v.elemSize(), nil
}

// Cap returns the element capacity.
func (v *Vector) Cap() (uint64, error) {
	begin, _, capacity, err := v.pointers()
	if err != nil {
		return 0, err
	}
	return (capacity - begin) / v.elemSize(), nil
}

// Empty reports whether the vector holds no elements.
func (v *Vector) Empty() (bool, error) {
	n, err := v.Len()
	return n == 0, err
}

func (v *Vector) elemSize() uint64 {
	return v.elem.Size(v.profile)
}

// Data returns the address of the first element.
func (v *Vector) Data() (uint64, error) {
	return v.view.ReadPtr(v.offs("begin"))
}

// At returns the element at index i.
func (v *Vector) At(i uint64) (any, error) {
	begin, end, _, err := v.pointers()
	if err != nil {
		return nil, err
	}
	n := (end - begin) / v.elemSize()
	if i >= n {
		return nil, errors.OutOfBounds(errors.PhaseRead, []string{"vector", "at"}, i, n)
	}
	return v.elem.Load(v.view, begin+i*v.elemSize())
}

// Set overwrites the element at index i. Heap content owned by the
// replaced element is released first.
func (v *Vector) Set(i uint64, val any) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	begin, end, _, err := v.pointers()
	if err != nil {
		return err
	}
	n := (end - begin) / v.elemSize()
	if i >= n {
		return errors.OutOfBounds(errors.PhaseWrite, []string{"vector", "set"}, i, n)
	}
	at := begin + i*v.elemSize()
	if err := v.elem.Release(v.view, at, v.alloc); err != nil {
		return err
	}
	return v.elem.Store(v.view, at, val, v.alloc)
}

// Reserve reallocates storage for exactly capacity elements, copying the
// leading min(len, capacity) elements. The old buffer is released only
// after the control block points at the new one.
func (v *Vector) Reserve(capacity uint64) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	begin, end, capPtr, err := v.pointers()
	if err != nil {
		return err
	}
	es := v.elemSize()
	size := (end - begin) / es

	newBegin, err := v.alloc.Alloc(capacity*es, v.elem.Align(v.profile))
	if err != nil {
		return errors.AllocationFailed(errors.PhaseGrow, capacity*es, v.elem.Align(v.profile), err)
	}
	keep := size
	if capacity < keep {
		keep = capacity
	}
	if keep > 0 {
		if err := v.view.Copy(newBegin, begin, keep*es); err != nil {
			v.alloc.Free(newBegin, capacity*es, v.elem.Align(v.profile))
			return err
		}
	}

	if err := v.view.WritePtr(v.offs("begin"), newBegin); err != nil {
		return err
	}
	if err := v.view.WritePtr(v.offs("end"), newBegin+size*es); err != nil {
		return err
	}
	if err := v.view.WritePtr(v.offs("capacity"), newBegin+capacity*es); err != nil {
		return err
	}

	if begin != 0 {
		v.alloc.Free(begin, capPtr-begin, v.elem.Align(v.profile))
	}
	return nil
}

func (v *Vector) checkWritable() error {
	if v.alloc == nil {
		return errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(v.addr).
			Detail("read-only handle cannot modify").
			Build()
	}
	return nil
}

func (v *Vector) growIfFull() error {
	begin, end, capacity, err := v.pointers()
	if err != nil {
		return err
	}
	es := v.elemSize()
	size, capElems := (end-begin)/es, (capacity-begin)/es
	if !growth.NeedsGrowth(size, capElems) {
		return nil
	}
	return v.Reserve(growth.Grow(capElems, size+1))
}

// PushBack appends an element, doubling capacity when full.
func (v *Vector) PushBack(val any) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	if err := v.growIfFull(); err != nil {
		return err
	}
	end, err := v.view.ReadPtr(v.offs("end"))
	if err != nil {
		return err
	}
	if err := v.elem.Store(v.view, end, val, v.alloc); err != nil {
		return err
	}
	return v.view.WritePtr(v.offs("end"), end+v.elemSize())
}

// PopBack removes and returns the last element. ok is false on an empty
// vector. Heap content owned by the element is released.
func (v *Vector) PopBack() (val any, ok bool, err error) {
	begin, end, _, err := v.pointers()
	if err != nil {
		return nil, false, err
	}
	if begin == end {
		return nil, false, nil
	}
	if err := v.checkWritable(); err != nil {
		return nil, false, err
	}
	last := end - v.elemSize()
	val, err = v.elem.Load(v.view, last)
	if err != nil {
		return nil, false, err
	}
	if err := v.elem.Release(v.view, last, v.alloc); err != nil {
		return nil, false, err
	}
	if err := v.view.WritePtr(v.offs("end"), last); err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Insert places an element at index i, shifting the tail right.
func (v *Vector) Insert(i uint64, val any) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	n, err := v.Len()
	if err != nil {
		return err
	}
	if i > n {
		return errors.OutOfBounds(errors.PhaseWrite, []string{"vector", "insert"}, i, n)
	}
	if err := v.growIfFull(); err != nil {
		return err
	}
	begin, end, _, err := v.pointers()
	if err != nil {
		return err
	}
	es := v.elemSize()
	at := begin + i*es
	if err := v.view.Copy(at+es, at, end-at); err != nil {
		return err
	}
	if err := v.elem.Store(v.view, at, val, v.alloc); err != nil {
		return err
	}
	return v.view.WritePtr(v.offs("end"), end+es)
}

// Remove deletes and returns the element at index i, shifting the tail
// left. ok is false when i is out of range. Heap content owned by the
// element is released before the shift overwrites its slot.
func (v *Vector) Remove(i uint64) (val any, ok bool, err error) {
	begin, end, _, err := v.pointers()
	if err != nil {
		return nil, false, err
	}
	es := v.elemSize()
	n := (end - begin) / es
	if i >= n {
		return nil, false, nil
	}
	if err := v.checkWritable(); err != nil {
		return nil, false, err
	}
	at := begin + i*es
	val, err = v.elem.Load(v.view, at)
	if err != nil {
		return nil, false, err
	}
	if err := v.elem.Release(v.view, at, v.alloc); err != nil {
		return nil, false, err
	}
	if err := v.view.Copy(at, at+es, end-at-es); err != nil {
		return nil, false, err
	}
	if err := v.view.WritePtr(v.offs("end"), end-es); err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Assign replaces the contents with vals, reserving exactly len(vals).
// Heap content owned by the replaced elements is released while the old
// buffer is still intact.
func (v *Vector) Assign(vals []any) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	begin, end, _, err := v.pointers()
	if err != nil {
		return err
	}
	for addr := begin; addr < end; addr += v.elemSize() {
		if err := v.elem.Release(v.view, addr, v.alloc); err != nil {
			return err
		}
	}
	if err := v.Reserve(uint64(len(vals))); err != nil {
		return err
	}
	begin, err = v.view.ReadPtr(v.offs("begin"))
	if err != nil {
		return err
	}
	es := v.elemSize()
	for i, val := range vals {
		if err := v.elem.Store(v.view, begin+uint64(i)*es, val, v.alloc); err != nil {
			return err
		}
	}
	return v.view.WritePtr(v.offs("end"), begin+uint64(len(vals))*es)
}

// Each calls fn for every element in index order until fn returns false.
func (v *Vector) Each(fn func(i uint64, val any) bool) error {
	begin, end, _, err := v.pointers()
	if err != nil {
		return err
	}
	es := v.elemSize()
	for i, addr := uint64(0), begin; addr < end; i, addr = i+1, addr+es {
		val, err := v.elem.Load(v.view, addr)
		if err != nil {
			return err
		}
		if !fn(i, val) {
			return nil
		}
	}
	return nil
}

// Elements loads every element into a slice.
func (v *Vector) Elements() ([]any, error) {
	n, err := v.Len()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, n)
	err = v.Each(func(_ uint64, val any) bool {
		out = append(out, val)
		return true
	})
	return out, err
}

// Regions returns the memory the vector occupies: the control block, the
// element buffer, and heap payloads owned by the elements.
func (v *Vector) Regions() ([]eastl.Region, error) {
	begin, end, capacity, err := v.pointers()
	if err != nil {
		return nil, err
	}
	out := []eastl.Region{{Addr: v.addr, Size: SizeOf(v.profile)}}
	if begin != 0 {
		out = append(out, eastl.Region{Addr: begin, Size: capacity - begin})
	}
	if _, ok := v.elem.(abi.RegionLister); ok {
		es := v.elemSize()
		for addr := begin; addr < end; addr += es {
			more, err := abi.TypeRegions(v.elem, v.view, addr)
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
	}
	return out, nil
}
