// Package fixedpool implements the free-list node pool that fixed-capacity
// containers carve out of an inline buffer.
//
// The pool's own state lives in foreign memory: three pointer words
// {head, next, capacity}. head chains freed nodes through their own first
// word, next bumps through the never-yet-allocated tail of the buffer, and
// capacity marks the end of usable space. The with-overflow variant adds an
// allocator word and the recorded buffer base, and routes deallocation by
// address range.
package fixedpool

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

func layout(p *abi.Profile) abi.Info {
	return abi.Layout(abi.FamilyFixedPool, p, func(p *abi.Profile) []abi.Field {
		return []abi.Field{
			abi.Ptr(p, "head"),
			abi.Ptr(p, "next"),
			abi.Ptr(p, "capacity"),
		}
	})
}

// SizeOf returns the size of the pool control block.
func SizeOf(p *abi.Profile) uint64 {
	return layout(p).Size
}

// AlignOf returns the alignment of the pool control block.
func AlignOf(p *abi.Profile) uint64 {
	return p.Word()
}

// Pool is a handle over a pool control block.
type Pool struct {
	view     *mem.View
	addr     uint64
	nodeSize uint64
}

// Initialize writes an empty pool at addr managing [bufAddr, bufAddr+bufSize).
// Nodes smaller than a pointer word cannot hold the free-list link.
func Initialize(view *mem.View, addr, bufAddr, bufSize, nodeSize, nodeAlign uint64) (*Pool, error) {
	if nodeSize < view.Word() {
		return nil, errors.New(errors.PhaseInit, errors.KindInvalidProfile).
			Detail("node size %d smaller than a pointer word", nodeSize).
			Build()
	}

	next := abi.AlignTo(bufAddr, nodeAlign)
	usable := uint64(0)
	if next-bufAddr < bufSize {
		usable = bufSize - (next - bufAddr)
	}
	usable = usable / nodeSize * nodeSize

	info := layout(&abi.Profile{PtrSize: view.PtrSize})
	if err := view.WritePtr(addr+info.Offset("head"), 0); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("next"), next); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("capacity"), next+usable); err != nil {
		return nil, err
	}

	return &Pool{view: view, addr: addr, nodeSize: nodeSize}, nil
}

// At interprets an existing pool control block at addr.
func At(view *mem.View, addr, nodeSize uint64) *Pool {
	return &Pool{view: view, addr: addr, nodeSize: nodeSize}
}

func (p *Pool) offs(name string) uint64 {
	return p.addr + layout(&abi.Profile{PtrSize: p.view.PtrSize}).Offset(name)
}

// CanAllocate reports whether the pool has a free node.
func (p *Pool) CanAllocate() (bool, error) {
	head, err := p.view.ReadPtr(p.offs("head"))
	if err != nil {
		return false, err
	}
	if head != 0 {
		return true, nil
	}
	next, err := p.view.ReadPtr(p.offs("next"))
	if err != nil {
		return false, err
	}
	capacity, err := p.view.ReadPtr(p.offs("capacity"))
	if err != nil {
		return false, err
	}
	return next != capacity, nil
}

// Capacity returns the end address of the pooled buffer.
func (p *Pool) Capacity() (uint64, error) {
	return p.view.ReadPtr(p.offs("capacity"))
}

// Alloc pops a freed node if one exists, otherwise bumps through the
// unallocated tail of the buffer.
func (p *Pool) Alloc(size, align uint64) (uint64, error) {
	head, err := p.view.ReadPtr(p.offs("head"))
	if err != nil {
		return 0, err
	}
	if head != 0 {
		next, err := p.view.ReadPtr(head)
		if err != nil {
			return 0, err
		}
		if err := p.view.WritePtr(p.offs("head"), next); err != nil {
			return 0, err
		}
		return head, nil
	}

	next, err := p.view.ReadPtr(p.offs("next"))
	if err != nil {
		return 0, err
	}
	capacity, err := p.view.ReadPtr(p.offs("capacity"))
	if err != nil {
		return 0, err
	}
	if next == capacity {
		return 0, errors.New(errors.PhaseGrow, errors.KindAllocationFailure).
			Addr(p.addr).
			Detail("pool exhausted").
			Build()
	}
	if err := p.view.WritePtr(p.offs("next"), next+p.nodeSize); err != nil {
		return 0, err
	}
	return next, nil
}

// Free pushes the node onto the free list. Failures writing the link are
// unrecoverable bookkeeping errors and are dropped.
func (p *Pool) Free(addr, size, align uint64) {
	head, err := p.view.ReadPtr(p.offs("head"))
	if err != nil {
		return
	}
	if err := p.view.WritePtr(addr, head); err != nil {
		return
	}
	_ = p.view.WritePtr(p.offs("head"), addr)
}

func overflowLayout(p *abi.Profile) abi.Info {
	return abi.Struct(
		abi.Raw("pool", SizeOf(p), p.Word()),
		abi.Ptr(p, "overflow_allocator"),
		abi.Ptr(p, "pool_begin"),
	)
}

// WithOverflowSizeOf returns the size of the with-overflow control block.
func WithOverflowSizeOf(p *abi.Profile) uint64 {
	return overflowLayout(p).Size
}

// WithOverflow tries the pool first and spills node allocations to an
// overflow allocator once the inline buffer is exhausted.
type WithOverflow struct {
	Pool     *Pool
	Overflow eastl.Allocator

	view *mem.View
	addr uint64
}

// InitializeWithOverflow writes an empty with-overflow pool at addr.
func InitializeWithOverflow(view *mem.View, addr, bufAddr, bufSize, nodeSize, nodeAlign uint64, overflow eastl.Allocator) (*WithOverflow, error) {
	info := overflowLayout(&abi.Profile{PtrSize: view.PtrSize})
	pool, err := Initialize(view, addr+info.Offset("pool"), bufAddr, bufSize, nodeSize, nodeAlign)
	if err != nil {
		return nil, err
	}
	// the allocator instance word carries no portable state
	if err := view.WritePtr(addr+info.Offset("overflow_allocator"), 0); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("pool_begin"), bufAddr); err != nil {
		return nil, err
	}
	return &WithOverflow{Pool: pool, Overflow: overflow, view: view, addr: addr}, nil
}

// AtWithOverflow interprets an existing with-overflow control block at addr.
func AtWithOverflow(view *mem.View, addr, nodeSize uint64, overflow eastl.Allocator) *WithOverflow {
	info := overflowLayout(&abi.Profile{PtrSize: view.PtrSize})
	return &WithOverflow{
		Pool:     At(view, addr+info.Offset("pool"), nodeSize),
		Overflow: overflow,
		view:     view,
		addr:     addr,
	}
}

// CanAllocate reports whether the inline pool still has room. A false
// result is not a failure; allocation falls through to the overflow
// allocator.
func (w *WithOverflow) CanAllocate() (bool, error) {
	return w.Pool.CanAllocate()
}

// Alloc allocates from the pool, spilling to the overflow allocator.
func (w *WithOverflow) Alloc(size, align uint64) (uint64, error) {
	ok, err := w.Pool.CanAllocate()
	if err != nil {
		return 0, err
	}
	if ok {
		return w.Pool.Alloc(size, align)
	}
	if w.Overflow == nil {
		return 0, errors.New(errors.PhaseGrow, errors.KindCapacityExceeded).
			Addr(w.addr).
			Detail("pool exhausted and no overflow allocator").
			Build()
	}
	return w.Overflow.Alloc(size, align)
}

// Free routes by address range: nodes inside the pooled buffer return to
// the free list, everything else goes back to the overflow allocator.
func (w *WithOverflow) Free(addr, size, align uint64) {
	info := overflowLayout(&abi.Profile{PtrSize: w.view.PtrSize})
	begin, err := w.view.ReadPtr(w.addr + info.Offset("pool_begin"))
	if err != nil {
		return
	}
	capacity, err := w.Pool.Capacity()
	if err != nil {
		return
	}
	if begin <= addr && addr <= capacity {
		w.Pool.Free(addr, size, align)
		return
	}
	if w.Overflow != nil {
		w.Overflow.Free(addr, size, align)
	}
}
