// Package memwazero provides memory access adapters for wazero: a guest
// api.Memory becomes an eastl.Memory and a guest realloc export becomes an
// eastl.Allocator, so containers operate directly on a live wasm instance.
//
// Guest memories are 32-bit address spaces; pair them with a 32-bit ABI
// profile.
package memwazero

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/memscape/eastl"
	"github.com/memscape/eastl/errors"
)

// Wrap wraps a wazero api.Memory to implement eastl.Memory.
func Wrap(mem api.Memory) eastl.Memory {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// WrapAllocator wraps a guest realloc function (cabi_realloc signature) to
// implement eastl.Allocator.
func WrapAllocator(ctx context.Context, fn api.Function) eastl.Allocator {
	if fn == nil {
		return nil
	}
	return &AllocatorWrapper{Ctx: ctx, Fn: fn}
}

// Wrapper adapts wazero api.Memory to the eastl.Memory interface.
type Wrapper struct {
	Mem api.Memory
}

// offset narrows a 64-bit container address to the guest's 32-bit space.
func (m *Wrapper) offset(phase errors.Phase, addr, length uint64) (uint32, error) {
	if addr > math.MaxUint32 || length > math.MaxUint32 {
		return 0, errors.MemoryOutOfBounds(phase, addr, length, m.Size())
	}
	return uint32(addr), nil
}

// Size returns the extent of the guest memory in bytes.
func (m *Wrapper) Size() uint64 {
	return uint64(m.Mem.Size())
}

// Read returns a copy of length bytes starting at addr.
func (m *Wrapper) Read(addr uint64, length uint64) ([]byte, error) {
	off, err := m.offset(errors.PhaseRead, addr, length)
	if err != nil {
		return nil, err
	}
	data, ok := m.Mem.Read(off, uint32(length))
	if !ok {
		return nil, errors.MemoryOutOfBounds(errors.PhaseRead, addr, length, m.Size())
	}
	// wazero returns a view into the guest memory; copy so the bytes
	// survive a memory growth
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// Write copies data into the guest memory at addr.
func (m *Wrapper) Write(addr uint64, data []byte) error {
	off, err := m.offset(errors.PhaseWrite, addr, uint64(len(data)))
	if err != nil {
		return err
	}
	if !m.Mem.Write(off, data) {
		return errors.MemoryOutOfBounds(errors.PhaseWrite, addr, uint64(len(data)), m.Size())
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Wrapper) ReadU8(addr uint64) (uint8, error) {
	off, err := m.offset(errors.PhaseRead, addr, 1)
	if err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadByte(off)
	if !ok {
		return 0, errors.MemoryOutOfBounds(errors.PhaseRead, addr, 1, m.Size())
	}
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Wrapper) ReadU16(addr uint64) (uint16, error) {
	off, err := m.offset(errors.PhaseRead, addr, 2)
	if err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint16Le(off)
	if !ok {
		return 0, errors.MemoryOutOfBounds(errors.PhaseRead, addr, 2, m.Size())
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Wrapper) ReadU32(addr uint64) (uint32, error) {
	off, err := m.offset(errors.PhaseRead, addr, 4)
	if err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint32Le(off)
	if !ok {
		return 0, errors.MemoryOutOfBounds(errors.PhaseRead, addr, 4, m.Size())
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Wrapper) ReadU64(addr uint64) (uint64, error) {
	off, err := m.offset(errors.PhaseRead, addr, 8)
	if err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint64Le(off)
	if !ok {
		return 0, errors.MemoryOutOfBounds(errors.PhaseRead, addr, 8, m.Size())
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Wrapper) WriteU8(addr uint64, value uint8) error {
	off, err := m.offset(errors.PhaseWrite, addr, 1)
	if err != nil {
		return err
	}
	if !m.Mem.WriteByte(off, value) {
		return errors.MemoryOutOfBounds(errors.PhaseWrite, addr, 1, m.Size())
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Wrapper) WriteU16(addr uint64, value uint16) error {
	off, err := m.offset(errors.PhaseWrite, addr, 2)
	if err != nil {
		return err
	}
	if !m.Mem.WriteUint16Le(off, value) {
		return errors.MemoryOutOfBounds(errors.PhaseWrite, addr, 2, m.Size())
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Wrapper) WriteU32(addr uint64, value uint32) error {
	off, err := m.offset(errors.PhaseWrite, addr, 4)
	if err != nil {
		return err
	}
	if !m.Mem.WriteUint32Le(off, value) {
		return errors.MemoryOutOfBounds(errors.PhaseWrite, addr, 4, m.Size())
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Wrapper) WriteU64(addr uint64, value uint64) error {
	off, err := m.offset(errors.PhaseWrite, addr, 8)
	if err != nil {
		return err
	}
	if !m.Mem.WriteUint64Le(off, value) {
		return errors.MemoryOutOfBounds(errors.PhaseWrite, addr, 8, m.Size())
	}
	return nil
}

// AllocatorWrapper adapts a guest realloc function (cabi_realloc argument
// order: old ptr, old size, align, new size) to the eastl.Allocator
// interface.
type AllocatorWrapper struct {
	Ctx context.Context
	Fn  api.Function
}

// Alloc allocates size bytes in the guest.
func (a *AllocatorWrapper) Alloc(size, align uint64) (uint64, error) {
	results, err := a.Fn.Call(a.Ctx, 0, 0, align, size)
	if err != nil {
		return 0, errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Detail("guest realloc failed").
			Cause(err).
			Build()
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Detail("guest realloc returned null").
			Build()
	}
	return uint64(uint32(results[0])), nil
}

// Free releases a guest allocation by shrinking it to zero.
func (a *AllocatorWrapper) Free(addr, size, align uint64) {
	_, _ = a.Fn.Call(a.Ctx, addr, size, align, 0)
}
