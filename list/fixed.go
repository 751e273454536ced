package list

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/fixedpool"
	"github.com/memscape/eastl/mem"
)

// fixedLayout places the with-overflow pool and the inline node buffer
// behind the base list control. The buffer reserves one extra node for the
// alignment padding a character buffer member induces.
func fixedLayout(p *abi.Profile, elem abi.Type, nodeCount uint64) abi.Info {
	node := nodeLayout(p, elem)
	return abi.Struct(
		abi.Ptr(p, "next"),
		abi.Ptr(p, "prev"),
		abi.U32("size"),
		abi.Raw("pool", fixedpool.WithOverflowSizeOf(p), p.Word()),
		abi.Raw("buffer", (nodeCount+1)*node.Size, node.Align),
	)
}

// FixedSizeOf returns the size of a fixed list control block, inline node
// buffer included.
func FixedSizeOf(p *abi.Profile, elem abi.Type, nodeCount uint64) uint64 {
	return fixedLayout(p, elem, nodeCount).Size
}

// FixedList is a list whose nodes live in an inline buffer. Without an
// overflow allocator a push past nodeCount fails with a capacity error;
// with one, nodes spill to the overflow allocator and return to the pool
// or the allocator by address range on removal.
type FixedList struct {
	*List

	nodeCount uint64
}

// InitializeFixed writes an empty fixed list at addr.
func InitializeFixed(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, nodeCount uint64, overflow eastl.Allocator) (*FixedList, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	info := fixedLayout(profile, elem, nodeCount)
	node := nodeLayout(profile, elem)

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

	l := newList(view, profile, addr, elem, pool)
	if err := view.WritePtr(l.offs("next"), addr); err != nil {
		return nil, err
	}
	if err := view.WritePtr(l.offs("prev"), addr); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(l.offs("size"), 0); err != nil {
		return nil, err
	}
	return &FixedList{List: l, nodeCount: nodeCount}, nil
}

// AtFixed interprets an existing fixed list control block at addr.
func AtFixed(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, nodeCount uint64, overflow eastl.Allocator) (*FixedList, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	info := fixedLayout(profile, elem, nodeCount)
	node := nodeLayout(profile, elem)

	if !profile.FixedOverflow {
		overflow = nil
	}
	pool := fixedpool.AtWithOverflow(view, addr+info.Offset("pool"), node.Size, overflow)

	l, err := At(view, profile, addr, elem, pool)
	if err != nil {
		return nil, err
	}
	return &FixedList{List: l, nodeCount: nodeCount}, nil
}

// MaxSize returns the inline node capacity.
func (f *FixedList) MaxSize() uint64 {
	return f.nodeCount
}

// Full reports whether the inline buffer is exhausted. With an overflow
// allocator a full list still accepts pushes.
func (f *FixedList) Full() (bool, error) {
	ok, err := f.alloc.(*fixedpool.WithOverflow).CanAllocate()
	return !ok, err
}
