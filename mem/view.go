package mem

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/errors"
)

// View layers pointer-width-aware accessors over a Memory. Container code
// reads and writes native words through a View so the same adapter serves
// 32-bit and 64-bit images.
type View struct {
	Mem     eastl.Memory
	PtrSize uint32
}

// NewView creates a View over mem with the given pointer size (4 or 8).
func NewView(m eastl.Memory, ptrSize uint32) *View {
	return &View{Mem: m, PtrSize: ptrSize}
}

// Word returns the pointer size in bytes as a uint64 offset step.
func (v *View) Word() uint64 {
	return uint64(v.PtrSize)
}

// ReadPtr reads a native pointer word at addr, widened to uint64.
func (v *View) ReadPtr(addr uint64) (uint64, error) {
	if v.PtrSize == 4 {
		p, err := v.Mem.ReadU32(addr)
		return uint64(p), err
	}
	return v.Mem.ReadU64(addr)
}

// WritePtr writes a native pointer word at addr. Values that do not fit the
// pointer width are rejected rather than truncated.
func (v *View) WritePtr(addr uint64, value uint64) error {
	if v.PtrSize == 4 {
		if value > 0xffffffff {
			return errors.New(errors.PhaseWrite, errors.KindOutOfBounds).
				Addr(addr).
				Value(value).
				Detail("pointer value exceeds 32-bit address space").
				Build()
		}
		return v.Mem.WriteU32(addr, uint32(value))
	}
	return v.Mem.WriteU64(addr, value)
}

// Copy moves n bytes from src to dst with memmove semantics. The source
// range is materialized before writing, so overlapping ranges are safe.
func (v *View) Copy(dst, src, n uint64) error {
	if n == 0 || dst == src {
		return nil
	}
	data, err := v.Mem.Read(src, n)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	copy(buf, data)
	return v.Mem.Write(dst, buf)
}

// Fill writes n copies of b starting at addr.
func (v *View) Fill(addr uint64, n uint64, b byte) error {
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return v.Mem.Write(addr, buf)
}
