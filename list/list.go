// Package list implements the doubly linked list container.
//
// The control block embeds the sentinel node {next, prev} followed by a
// u32 size and the allocator word. An empty list points the sentinel at
// itself; the sentinel's next is the front node and its prev is the back.
// Nodes are {next, prev, value} and insertion splices before a target node.
package list

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

func layout(p *abi.Profile) abi.Info {
	return abi.Layout(abi.FamilyList, p, func(p *abi.Profile) []abi.Field {
		return []abi.Field{
			abi.Ptr(p, "next"),
			abi.Ptr(p, "prev"),
			abi.U32("size"),
			abi.Ptr(p, "allocator"),
		}
	})
}

// SizeOf returns the size of the list control block.
func SizeOf(p *abi.Profile) uint64 {
	return layout(p).Size
}

// AlignOf returns the alignment of the list control block.
func AlignOf(p *abi.Profile) uint64 {
	return p.Word()
}

// NodeSizeOf returns the size of one list node for the element type.
func NodeSizeOf(p *abi.Profile, elem abi.Type) uint64 {
	return nodeLayout(p, elem).Size
}

// NodeAlignOf returns the alignment of one list node for the element type.
func NodeAlignOf(p *abi.Profile, elem abi.Type) uint64 {
	return nodeLayout(p, elem).Align
}

func nodeLayout(p *abi.Profile, elem abi.Type) abi.Info {
	return abi.Struct(
		abi.Ptr(p, "next"),
		abi.Ptr(p, "prev"),
		abi.Field{Name: "value", Size: elem.Size(p), Align: elem.Align(p)},
	)
}

// List is a handle over a list control block.
type List struct {
	view    *mem.View
	profile *abi.Profile
	addr    uint64
	elem    abi.Type
	alloc   eastl.Allocator

	node abi.Info
}

// Initialize writes an empty list at addr: the sentinel links to itself.
func Initialize(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*List, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	l := newList(view, profile, addr, elem, alloc)
	info := layout(profile)

	if err := view.WritePtr(addr+info.Offset("next"), addr); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("prev"), addr); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(addr+info.Offset("size"), 0); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("allocator"), 0); err != nil {
		return nil, err
	}
	return l, nil
}

// At interprets an existing list control block at addr.
func At(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*List, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	l := newList(view, profile, addr, elem, alloc)
	info := layout(profile)

	next, err := view.ReadPtr(addr + info.Offset("next"))
	if err != nil {
		return nil, err
	}
	prev, err := view.ReadPtr(addr + info.Offset("prev"))
	if err != nil {
		return nil, err
	}
	if next == 0 || prev == 0 {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "null sentinel link")
	}
	size, err := l.Len()
	if err != nil {
		return nil, err
	}
	if size == 0 && (next != addr || prev != addr) {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "empty list with detached sentinel")
	}
	return l, nil
}

func newList(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) *List {
	return &List{
		view:    view,
		profile: profile,
		addr:    addr,
		elem:    elem,
		alloc:   alloc,
		node:    nodeLayout(profile, elem),
	}
}

// Addr returns the control block address.
func (l *List) Addr() uint64 {
	return l.addr
}

func (l *List) offs(name string) uint64 {
	return l.addr + layout(l.profile).Offset(name)
}

// Len returns the element count.
func (l *List) Len() (uint64, error) {
	n, err := l.view.Mem.ReadU32(l.offs("size"))
	return uint64(n), err
}

// Empty reports whether the list holds no elements.
func (l *List) Empty() (bool, error) {
	n, err := l.Len()
	return n == 0, err
}

// Front returns the first value. ok is false on an empty list.
func (l *List) Front() (val any, ok bool, err error) {
	next, err := l.view.ReadPtr(l.offs("next"))
	if err != nil || next == l.addr {
		return nil, false, err
	}
	val, err = l.elem.Load(l.view, next+l.node.Offset("value"))
	return val, err == nil, err
}

// Back returns the last value. ok is false on an empty list.
func (l *List) Back() (val any, ok bool, err error) {
	prev, err := l.view.ReadPtr(l.offs("prev"))
	if err != nil || prev == l.addr {
		return nil, false, err
	}
	val, err = l.elem.Load(l.view, prev+l.node.Offset("value"))
	return val, err == nil, err
}

// insertBefore allocates a node holding val and splices it in front of the
// node at next; pushing before the sentinel appends.
func (l *List) insertBefore(next uint64, val any) error {
	if l.alloc == nil {
		return errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(l.addr).
			Detail("read-only handle cannot insert").
			Build()
	}
	node, err := l.alloc.Alloc(l.node.Size, l.node.Align)
	if err != nil {
		return errors.AllocationFailed(errors.PhaseWrite, l.node.Size, l.node.Align, err)
	}
	if err := l.elem.Store(l.view, node+l.node.Offset("value"), val, l.alloc); err != nil {
		l.alloc.Free(node, l.node.Size, l.node.Align)
		return err
	}

	prev, err := l.linkPtr(next, "prev")
	if err != nil {
		return err
	}
	if err := l.view.WritePtr(node+l.node.Offset("next"), next); err != nil {
		return err
	}
	if err := l.view.WritePtr(node+l.node.Offset("prev"), prev); err != nil {
		return err
	}
	if err := l.setLinkPtr(prev, "next", node); err != nil {
		return err
	}
	if err := l.setLinkPtr(next, "prev", node); err != nil {
		return err
	}

	size, err := l.Len()
	if err != nil {
		return err
	}
	return l.view.Mem.WriteU32(l.offs("size"), uint32(size)+1)
}

// linkPtr reads the named link of a node, treating the sentinel embedded in
// the control block like any other node.
func (l *List) linkPtr(node uint64, name string) (uint64, error) {
	return l.view.ReadPtr(node + l.node.Offset(name))
}

func (l *List) setLinkPtr(node uint64, name string, v uint64) error {
	return l.view.WritePtr(node+l.node.Offset(name), v)
}

// PushBack appends val.
func (l *List) PushBack(val any) error {
	return l.insertBefore(l.addr, val)
}

// PushFront prepends val.
func (l *List) PushFront(val any) error {
	next, err := l.view.ReadPtr(l.offs("next"))
	if err != nil {
		return err
	}
	return l.insertBefore(next, val)
}

// removeNode unlinks the node, loads its value and frees it.
func (l *List) removeNode(node uint64) (any, error) {
	val, err := l.elem.Load(l.view, node+l.node.Offset("value"))
	if err != nil {
		return nil, err
	}
	next, err := l.linkPtr(node, "next")
	if err != nil {
		return nil, err
	}
	prev, err := l.linkPtr(node, "prev")
	if err != nil {
		return nil, err
	}
	if err := l.setLinkPtr(next, "prev", prev); err != nil {
		return nil, err
	}
	if err := l.setLinkPtr(prev, "next", next); err != nil {
		return nil, err
	}

	if err := l.elem.Release(l.view, node+l.node.Offset("value"), l.alloc); err != nil {
		return nil, err
	}
	if l.alloc != nil {
		l.alloc.Free(node, l.node.Size, l.node.Align)
	}

	size, err := l.Len()
	if err != nil {
		return nil, err
	}
	return val, l.view.Mem.WriteU32(l.offs("size"), uint32(size)-1)
}

// PopFront removes and returns the first value. ok is false on an empty
// list.
func (l *List) PopFront() (val any, ok bool, err error) {
	next, err := l.view.ReadPtr(l.offs("next"))
	if err != nil || next == l.addr {
		return nil, false, err
	}
	val, err = l.removeNode(next)
	return val, err == nil, err
}

// PopBack removes and returns the last value. ok is false on an empty
// list.
func (l *List) PopBack() (val any, ok bool, err error) {
	prev, err := l.view.ReadPtr(l.offs("prev"))
	if err != nil || prev == l.addr {
		return nil, false, err
	}
	val, err = l.removeNode(prev)
	return val, err == nil, err
}

// Each calls fn for every value front to back until fn returns false. The
// walk is bounded by the recorded size; a longer ring is corrupt.
func (l *List) Each(fn func(val any) bool) error {
	return l.walk("next", fn)
}

// EachReverse calls fn for every value back to front until fn returns
// false.
func (l *List) EachReverse(fn func(val any) bool) error {
	return l.walk("prev", fn)
}

func (l *List) walk(dir string, fn func(val any) bool) error {
	size, err := l.Len()
	if err != nil {
		return err
	}
	node, err := l.view.ReadPtr(l.offs(dir))
	if err != nil {
		return err
	}
	seen := uint64(0)
	for node != l.addr {
		if seen >= size {
			return errors.CorruptLayout(errors.PhaseTraverse, l.addr,
				"ring exceeds recorded size %d", size)
		}
		val, err := l.elem.Load(l.view, node+l.node.Offset("value"))
		if err != nil {
			return err
		}
		if !fn(val) {
			return nil
		}
		seen++
		if node, err = l.linkPtr(node, dir); err != nil {
			return err
		}
	}
	if seen != size {
		return errors.CorruptLayout(errors.PhaseTraverse, l.addr,
			"ring holds %d nodes, size records %d", seen, size)
	}
	return nil
}

// Elements loads every value front to back.
func (l *List) Elements() ([]any, error) {
	size, err := l.Len()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, size)
	err = l.Each(func(val any) bool {
		out = append(out, val)
		return true
	})
	return out, err
}

// Clear removes every element and relinks the sentinel to itself.
func (l *List) Clear() error {
	size, err := l.Len()
	if err != nil {
		return err
	}
	node, err := l.view.ReadPtr(l.offs("next"))
	if err != nil {
		return err
	}
	freed := uint64(0)
	for node != l.addr {
		if freed >= size {
			return errors.CorruptLayout(errors.PhaseWrite, l.addr,
				"ring exceeds recorded size %d", size)
		}
		next, err := l.linkPtr(node, "next")
		if err != nil {
			return err
		}
		if err := l.elem.Release(l.view, node+l.node.Offset("value"), l.alloc); err != nil {
			return err
		}
		if l.alloc != nil {
			l.alloc.Free(node, l.node.Size, l.node.Align)
		}
		node = next
		freed++
	}
	if err := l.view.WritePtr(l.offs("next"), l.addr); err != nil {
		return err
	}
	if err := l.view.WritePtr(l.offs("prev"), l.addr); err != nil {
		return err
	}
	return l.view.Mem.WriteU32(l.offs("size"), 0)
}

// Regions returns the memory the list occupies: the control block, every
// node in ring order, and heap payloads owned by the elements. The walk is
// bounded by the recorded size.
func (l *List) Regions() ([]eastl.Region, error) {
	size, err := l.Len()
	if err != nil {
		return nil, err
	}
	out := []eastl.Region{{Addr: l.addr, Size: SizeOf(l.profile)}}

	node, err := l.view.ReadPtr(l.offs("next"))
	if err != nil {
		return nil, err
	}
	seen := uint64(0)
	for node != l.addr {
		if seen >= size {
			return nil, errors.CorruptLayout(errors.PhaseExport, l.addr,
				"ring exceeds recorded size %d", size)
		}
		out = append(out, eastl.Region{Addr: node, Size: l.node.Size})
		more, err := abi.TypeRegions(l.elem, l.view, node+l.node.Offset("value"))
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
		seen++
		if node, err = l.linkPtr(node, "next"); err != nil {
			return nil, err
		}
	}
	if seen != size {
		return nil, errors.CorruptLayout(errors.PhaseExport, l.addr,
			"ring holds %d nodes, size records %d", seen, size)
	}
	return out, nil
}
