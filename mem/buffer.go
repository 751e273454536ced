package mem

import (
	"encoding/binary"

	"github.com/memscape/eastl/errors"
)

// Buffer is a slice-backed Memory. It owns its bytes and bounds-checks
// every access. Use NewBufferFrom to interpret a captured image in place.
type Buffer struct {
	data []byte
}

// NewBuffer creates a zeroed Buffer of the given size.
func NewBuffer(size uint64) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// NewBufferFrom wraps an existing byte image without copying it.
func NewBufferFrom(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the underlying byte image.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Size returns the extent of the address space in bytes.
func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *Buffer) check(phase errors.Phase, addr, length uint64) error {
	if addr+length < addr || addr+length > uint64(len(b.data)) {
		return errors.MemoryOutOfBounds(phase, addr, length, uint64(len(b.data)))
	}
	return nil
}

// Read returns a copy of length bytes starting at addr.
func (b *Buffer) Read(addr uint64, length uint64) ([]byte, error) {
	if err := b.check(errors.PhaseRead, addr, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, b.data[addr:addr+length])
	return out, nil
}

// Write copies data into the buffer at addr.
func (b *Buffer) Write(addr uint64, data []byte) error {
	if err := b.check(errors.PhaseWrite, addr, uint64(len(data))); err != nil {
		return err
	}
	copy(b.data[addr:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (b *Buffer) ReadU8(addr uint64) (uint8, error) {
	if err := b.check(errors.PhaseRead, addr, 1); err != nil {
		return 0, err
	}
	return b.data[addr], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (b *Buffer) ReadU16(addr uint64) (uint16, error) {
	if err := b.check(errors.PhaseRead, addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b.data[addr:]), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (b *Buffer) ReadU32(addr uint64) (uint32, error) {
	if err := b.check(errors.PhaseRead, addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.data[addr:]), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (b *Buffer) ReadU64(addr uint64) (uint64, error) {
	if err := b.check(errors.PhaseRead, addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b.data[addr:]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (b *Buffer) WriteU8(addr uint64, value uint8) error {
	if err := b.check(errors.PhaseWrite, addr, 1); err != nil {
		return err
	}
	b.data[addr] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (b *Buffer) WriteU16(addr uint64, value uint16) error {
	if err := b.check(errors.PhaseWrite, addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b.data[addr:], value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (b *Buffer) WriteU32(addr uint64, value uint32) error {
	if err := b.check(errors.PhaseWrite, addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b.data[addr:], value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (b *Buffer) WriteU64(addr uint64, value uint64) error {
	if err := b.check(errors.PhaseWrite, addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.data[addr:], value)
	return nil
}
