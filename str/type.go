package str

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

type strType struct{}

// Type lets strings serve as hash keys and container elements: the element
// bytes are a full string control block, so nodes embed the inline buffer
// and long content spills to the node allocator.
var Type abi.Type = strType{}

func (strType) Name() string { return "string" }

func (strType) Size(p *abi.Profile) uint64 {
	return SizeOf(p)
}

func (strType) Align(p *abi.Profile) uint64 {
	return AlignOf(p)
}

func handle(v *mem.View, addr uint64, alloc eastl.Allocator) *String {
	return &String{view: v, addr: addr, alloc: alloc}
}

func (strType) Load(v *mem.View, addr uint64) (any, error) {
	return handle(v, addr, nil).String()
}

func (strType) Store(v *mem.View, addr uint64, val any, alloc eastl.Allocator) error {
	sv, ok := val.(string)
	if !ok {
		return errors.New(errors.PhaseWrite, errors.KindTypeMismatch).
			Addr(addr).
			Value(val).
			Detail("value is not a string").
			Build()
	}
	s := handle(v, addr, alloc)
	if err := v.Mem.WriteU8(s.addr, 0); err != nil {
		return err
	}
	if err := v.Mem.WriteU8(s.tagAddr(), uint8(s.ssoCap())); err != nil {
		return err
	}
	return s.Assign(sv)
}

func (strType) Release(v *mem.View, addr uint64, alloc eastl.Allocator) error {
	return handle(v, addr, alloc).Release()
}

// Regions reports the heap buffer of a heap-resident element; inline
// elements own nothing beyond their slot.
func (strType) Regions(v *mem.View, addr uint64) ([]eastl.Region, error) {
	s := handle(v, addr, nil)
	heap, data, _, capacity, err := s.state()
	if err != nil || !heap {
		return nil, err
	}
	return []eastl.Region{{Addr: data, Size: capacity + 1}}, nil
}
