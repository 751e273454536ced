package abi

import (
	"math"

	"github.com/memscape/eastl"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

// Type describes an element or key type: its footprint under a profile and
// how to move values between Go and foreign memory. Types that own heap
// storage (strings) allocate in Store and free in Release; plain scalars
// ignore the allocator.
type Type interface {
	Name() string
	Size(p *Profile) uint64
	Align(p *Profile) uint64
	Load(v *mem.View, addr uint64) (any, error)
	Store(v *mem.View, addr uint64, val any, alloc eastl.Allocator) error
	Release(v *mem.View, addr uint64, alloc eastl.Allocator) error
}

type scalarType struct {
	name  string
	size  uint64
	load  func(v *mem.View, addr uint64) (any, error)
	store func(v *mem.View, addr uint64, val any) (bool, error)
}

func (t *scalarType) Name() string            { return t.name }
func (t *scalarType) Size(p *Profile) uint64  { return t.size }
func (t *scalarType) Align(p *Profile) uint64 { return t.size }

func (t *scalarType) Load(v *mem.View, addr uint64) (any, error) {
	return t.load(v, addr)
}

func (t *scalarType) Store(v *mem.View, addr uint64, val any, alloc eastl.Allocator) error {
	ok, err := t.store(v, addr, val)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.PhaseWrite, errors.KindTypeMismatch).
			Addr(addr).
			Value(val).
			Detail("value is not a %s", t.name).
			Build()
	}
	return nil
}

func (t *scalarType) Release(v *mem.View, addr uint64, alloc eastl.Allocator) error {
	return nil
}

// Scalar types. Signed variants share storage with their unsigned width and
// reinterpret the bits on load.
var (
	TypeU8 Type = &scalarType{
		name: "u8", size: 1,
		load: func(v *mem.View, addr uint64) (any, error) { return v.Mem.ReadU8(addr) },
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(uint8)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU8(addr, x)
		},
	}

	TypeU16 Type = &scalarType{
		name: "u16", size: 2,
		load: func(v *mem.View, addr uint64) (any, error) { return v.Mem.ReadU16(addr) },
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(uint16)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU16(addr, x)
		},
	}

	TypeU32 Type = &scalarType{
		name: "u32", size: 4,
		load: func(v *mem.View, addr uint64) (any, error) { return v.Mem.ReadU32(addr) },
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(uint32)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU32(addr, x)
		},
	}

	TypeU64 Type = &scalarType{
		name: "u64", size: 8,
		load: func(v *mem.View, addr uint64) (any, error) { return v.Mem.ReadU64(addr) },
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(uint64)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU64(addr, x)
		},
	}

	TypeI8 Type = &scalarType{
		name: "i8", size: 1,
		load: func(v *mem.View, addr uint64) (any, error) {
			x, err := v.Mem.ReadU8(addr)
			return int8(x), err
		},
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(int8)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU8(addr, uint8(x))
		},
	}

	TypeI16 Type = &scalarType{
		name: "i16", size: 2,
		load: func(v *mem.View, addr uint64) (any, error) {
			x, err := v.Mem.ReadU16(addr)
			return int16(x), err
		},
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(int16)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU16(addr, uint16(x))
		},
	}

	TypeI32 Type = &scalarType{
		name: "i32", size: 4,
		load: func(v *mem.View, addr uint64) (any, error) {
			x, err := v.Mem.ReadU32(addr)
			return int32(x), err
		},
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(int32)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU32(addr, uint32(x))
		},
	}

	TypeI64 Type = &scalarType{
		name: "i64", size: 8,
		load: func(v *mem.View, addr uint64) (any, error) {
			x, err := v.Mem.ReadU64(addr)
			return int64(x), err
		},
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(int64)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU64(addr, uint64(x))
		},
	}

	TypeF32 Type = &scalarType{
		name: "f32", size: 4,
		load: func(v *mem.View, addr uint64) (any, error) {
			x, err := v.Mem.ReadU32(addr)
			return math.Float32frombits(x), err
		},
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(float32)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU32(addr, math.Float32bits(x))
		},
	}

	TypeF64 Type = &scalarType{
		name: "f64", size: 8,
		load: func(v *mem.View, addr uint64) (any, error) {
			x, err := v.Mem.ReadU64(addr)
			return math.Float64frombits(x), err
		},
		store: func(v *mem.View, addr uint64, val any) (bool, error) {
			x, ok := val.(float64)
			if !ok {
				return false, nil
			}
			return true, v.Mem.WriteU64(addr, uint64(math.Float64bits(x)))
		},
	}
)

type ptrType struct{}

func (t *ptrType) Name() string            { return "ptr" }
func (t *ptrType) Size(p *Profile) uint64  { return p.Word() }
func (t *ptrType) Align(p *Profile) uint64 { return p.Word() }

func (t *ptrType) Load(v *mem.View, addr uint64) (any, error) {
	return v.ReadPtr(addr)
}

func (t *ptrType) Store(v *mem.View, addr uint64, val any, alloc eastl.Allocator) error {
	x, ok := val.(uint64)
	if !ok {
		return errors.New(errors.PhaseWrite, errors.KindTypeMismatch).
			Addr(addr).
			Value(val).
			Detail("value is not a ptr (uint64)").
			Build()
	}
	return v.WritePtr(addr, x)
}

func (t *ptrType) Release(v *mem.View, addr uint64, alloc eastl.Allocator) error {
	return nil
}

// TypePtr is a native pointer word, widened to uint64 in Go.
var TypePtr Type = &ptrType{}

// Pair is the composite element type used by map-like containers: a key and
// a value laid out with C structure rules.
type Pair struct {
	Key   Type
	Value Type
}

// PairValue is the Go representation of a Pair element.
type PairValue struct {
	Key   any
	Value any
}

func (t *Pair) Name() string { return "pair<" + t.Key.Name() + "," + t.Value.Name() + ">" }

func (t *Pair) layout(p *Profile) Info {
	return Struct(
		Field{Name: "first", Size: t.Key.Size(p), Align: t.Key.Align(p)},
		Field{Name: "second", Size: t.Value.Size(p), Align: t.Value.Align(p)},
	)
}

func (t *Pair) Size(p *Profile) uint64  { return t.layout(p).Size }
func (t *Pair) Align(p *Profile) uint64 { return t.layout(p).Align }

// ValueOffset returns the offset of the value half within the pair.
func (t *Pair) ValueOffset(p *Profile) uint64 {
	return t.layout(p).Offset("second")
}

func (t *Pair) Load(v *mem.View, addr uint64) (any, error) {
	info := t.layout(&Profile{PtrSize: v.PtrSize})
	k, err := t.Key.Load(v, addr+info.Offset("first"))
	if err != nil {
		return nil, err
	}
	val, err := t.Value.Load(v, addr+info.Offset("second"))
	if err != nil {
		return nil, err
	}
	return PairValue{Key: k, Value: val}, nil
}

func (t *Pair) Store(v *mem.View, addr uint64, val any, alloc eastl.Allocator) error {
	pv, ok := val.(PairValue)
	if !ok {
		return errors.New(errors.PhaseWrite, errors.KindTypeMismatch).
			Addr(addr).
			Value(val).
			Detail("value is not a %s", t.Name()).
			Build()
	}
	info := t.layout(&Profile{PtrSize: v.PtrSize})
	if err := t.Key.Store(v, addr+info.Offset("first"), pv.Key, alloc); err != nil {
		return err
	}
	return t.Value.Store(v, addr+info.Offset("second"), pv.Value, alloc)
}

func (t *Pair) Release(v *mem.View, addr uint64, alloc eastl.Allocator) error {
	info := t.layout(&Profile{PtrSize: v.PtrSize})
	if err := t.Key.Release(v, addr+info.Offset("first"), alloc); err != nil {
		return err
	}
	return t.Value.Release(v, addr+info.Offset("second"), alloc)
}
