package vector

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

func fixedLayout(p *abi.Profile, elemSize, elemAlign, nodeCount uint64) abi.Info {
	return abi.Struct(
		abi.Ptr(p, "begin"),
		abi.Ptr(p, "end"),
		abi.Ptr(p, "capacity"),
		abi.Ptr(p, "overflow_allocator"),
		abi.Ptr(p, "pool_begin"),
		abi.Raw("buffer", elemSize*nodeCount, elemAlign),
	)
}

// FixedSizeOf returns the size of a fixed vector control block, inline
// buffer included.
func FixedSizeOf(p *abi.Profile, elem abi.Type, nodeCount uint64) uint64 {
	return fixedLayout(p, elem.Size(p), elem.Align(p), nodeCount).Size
}

// FixedAlignOf returns the alignment of a fixed vector control block.
func FixedAlignOf(p *abi.Profile, elem abi.Type, nodeCount uint64) uint64 {
	return fixedLayout(p, elem.Size(p), elem.Align(p), nodeCount).Align
}

// fixedAllocator grows into the overflow allocator and never frees the
// inline buffer.
type fixedAllocator struct {
	overflow  eastl.Allocator
	poolBegin uint64
}

func (a *fixedAllocator) Alloc(size, align uint64) (uint64, error) {
	if a.overflow == nil {
		return 0, errors.New(errors.PhaseGrow, errors.KindCapacityExceeded).
			Detail("fixed vector has no overflow allocator").
			Build()
	}
	return a.overflow.Alloc(size, align)
}

func (a *fixedAllocator) Free(addr, size, align uint64) {
	if addr == a.poolBegin {
		return
	}
	if a.overflow != nil {
		a.overflow.Free(addr, size, align)
	}
}

// FixedVector is a vector whose first nodeCount elements live in a buffer
// inline with the control block. When overflow is enabled in the profile it
// degrades into a plain vector backed by the overflow allocator; otherwise
// pushing past nodeCount fails with capacity_exceeded.
type FixedVector struct {
	*Vector
	nodeCount uint64
	bufAddr   uint64
	overflow  bool
}

// InitializeFixed writes an empty fixed vector at addr.
func InitializeFixed(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, nodeCount uint64, overflow eastl.Allocator) (*FixedVector, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	info := fixedLayout(profile, elem.Size(profile), elem.Align(profile), nodeCount)
	bufAddr := addr + info.Offset("buffer")

	if err := view.WritePtr(addr+info.Offset("begin"), bufAddr); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("end"), bufAddr); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("capacity"), bufAddr+nodeCount*elem.Size(profile)); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("overflow_allocator"), 0); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("pool_begin"), bufAddr); err != nil {
		return nil, err
	}

	return atFixed(view, profile, addr, elem, nodeCount, bufAddr, overflow), nil
}

// AtFixed interprets an existing fixed vector control block at addr.
func AtFixed(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, nodeCount uint64, overflow eastl.Allocator) (*FixedVector, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	info := fixedLayout(profile, elem.Size(profile), elem.Align(profile), nodeCount)
	bufAddr := addr + info.Offset("buffer")
	fv := atFixed(view, profile, addr, elem, nodeCount, bufAddr, overflow)
	if _, err := At(view, profile, addr, elem, fv.alloc); err != nil {
		return nil, err
	}
	return fv, nil
}

func atFixed(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, nodeCount, bufAddr uint64, overflow eastl.Allocator) *FixedVector {
	alloc := &fixedAllocator{overflow: overflow, poolBegin: bufAddr}
	return &FixedVector{
		Vector: &Vector{
			view:    view,
			profile: profile,
			addr:    addr,
			elem:    elem,
			alloc:   alloc,
		},
		nodeCount: nodeCount,
		bufAddr:   bufAddr,
		overflow:  profile.FixedOverflow && overflow != nil,
	}
}

// MaxSize returns the inline capacity.
func (fv *FixedVector) MaxSize() uint64 {
	return fv.nodeCount
}

// Full reports whether the inline buffer is fully committed. A vector that
// already spilled to the overflow allocator stays full even after pops.
func (fv *FixedVector) Full() (bool, error) {
	n, err := fv.Len()
	if err != nil {
		return false, err
	}
	if n >= fv.nodeCount {
		return true, nil
	}
	begin, err := fv.Data()
	if err != nil {
		return false, err
	}
	return begin != fv.bufAddr, nil
}

func (fv *FixedVector) checkRoom(path string) error {
	if fv.overflow {
		return nil
	}
	n, err := fv.Len()
	if err != nil {
		return err
	}
	capElems, err := fv.Cap()
	if err != nil {
		return err
	}
	if n >= capElems {
		return errors.CapacityExceeded(errors.PhaseGrow, []string{"fixed_vector", path}, fv.nodeCount)
	}
	return nil
}

// PushBack appends an element. Without overflow the push fails once
// nodeCount elements are committed, leaving the image untouched.
func (fv *FixedVector) PushBack(val any) error {
	if err := fv.checkRoom("push_back"); err != nil {
		return err
	}
	return fv.Vector.PushBack(val)
}

// Insert places an element at index i under the same capacity rules as
// PushBack.
func (fv *FixedVector) Insert(i uint64, val any) error {
	if err := fv.checkRoom("insert"); err != nil {
		return err
	}
	return fv.Vector.Insert(i, val)
}
