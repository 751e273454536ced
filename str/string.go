// Package str implements the small-string-optimized string container.
//
// The control block is three pointer words viewed two ways. Long strings
// use the heap triple {ptr, size, capacity} with the top bit of the
// capacity word set. Short strings reuse the same bytes as an inline
// character buffer whose final byte holds the remaining inline capacity;
// that byte's top bit is clear, and when the buffer is full the zero
// remaining count doubles as the null terminator. The switch to the heap
// representation is irreversible. Content is null-terminated in both forms.
package str

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/growth"
	"github.com/memscape/eastl/mem"
)

// SizeOf returns the size of the string control block.
func SizeOf(p *abi.Profile) uint64 {
	return 3 * p.Word()
}

// AlignOf returns the alignment of the string control block.
func AlignOf(p *abi.Profile) uint64 {
	return p.Word()
}

// String is a handle over a string control block.
type String struct {
	view  *mem.View
	addr  uint64
	alloc eastl.Allocator
}

func (s *String) word() uint64     { return s.view.Word() }
func (s *String) ssoCap() uint64   { return 3*s.word() - 1 }
func (s *String) heapMask() uint64 { return 1 << (8*s.word() - 1) }
func (s *String) tagAddr() uint64  { return s.addr + 3*s.word() - 1 }

// Initialize writes an empty inline string at addr.
func Initialize(view *mem.View, profile *abi.Profile, addr uint64, alloc eastl.Allocator) (*String, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	s := &String{view: view, addr: addr, alloc: alloc}
	if err := s.view.Mem.WriteU8(s.addr, 0); err != nil {
		return nil, err
	}
	if err := s.view.Mem.WriteU8(s.tagAddr(), uint8(s.ssoCap())); err != nil {
		return nil, err
	}
	return s, nil
}

// At interprets an existing string control block at addr.
func At(view *mem.View, profile *abi.Profile, addr uint64, alloc eastl.Allocator) (*String, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	s := &String{view: view, addr: addr, alloc: alloc}
	heap, data, size, capacity, err := s.state()
	if err != nil {
		return nil, err
	}
	if heap {
		if data == 0 {
			return nil, errors.CorruptLayout(errors.PhaseRead, addr, "heap string with null data pointer")
		}
		if size > capacity {
			return nil, errors.CorruptLayout(errors.PhaseRead, addr, "size %d exceeds capacity %d", size, capacity)
		}
	} else if size > s.ssoCap() {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "inline remaining byte exceeds capacity %d", s.ssoCap())
	}
	return s, nil
}

// Addr returns the control block address.
func (s *String) Addr() uint64 {
	return s.addr
}

// state decodes the control block: representation, data address, length and
// character capacity.
func (s *String) state() (heap bool, data, size, capacity uint64, err error) {
	tag, err := s.view.Mem.ReadU8(s.tagAddr())
	if err != nil {
		return false, 0, 0, 0, err
	}
	if tag&0x80 != 0 {
		if data, err = s.view.ReadPtr(s.addr); err != nil {
			return
		}
		if size, err = s.view.ReadPtr(s.addr + s.word()); err != nil {
			return
		}
		capacity, err = s.view.ReadPtr(s.addr + 2*s.word())
		capacity &^= s.heapMask()
		return true, data, size, capacity, err
	}
	remaining := uint64(tag)
	return false, s.addr, s.ssoCap() - remaining, s.ssoCap(), nil
}

// IsHeap reports whether the string has switched to the heap
// representation.
func (s *String) IsHeap() (bool, error) {
	tag, err := s.view.Mem.ReadU8(s.tagAddr())
	return tag&0x80 != 0, err
}

// Len returns the character count.
func (s *String) Len() (uint64, error) {
	_, _, size, _, err := s.state()
	return size, err
}

// Cap returns the character capacity of the current representation.
func (s *String) Cap() (uint64, error) {
	_, _, _, capacity, err := s.state()
	return capacity, err
}

// Empty reports whether the string has no characters.
func (s *String) Empty() (bool, error) {
	n, err := s.Len()
	return n == 0, err
}

// String loads the character content.
func (s *String) String() (string, error) {
	_, data, size, _, err := s.state()
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	b, err := s.view.Mem.Read(data, size)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// setSize records the new length in the active representation and restores
// the null terminator.
func (s *String) setSize(heap bool, data, size uint64) error {
	if heap {
		if err := s.view.WritePtr(s.addr+s.word(), size); err != nil {
			return err
		}
	} else {
		if err := s.view.Mem.WriteU8(s.tagAddr(), uint8(s.ssoCap()-size)); err != nil {
			return err
		}
	}
	return s.view.Mem.WriteU8(data+size, 0)
}

// ensure grows the active representation to hold at least n characters. An
// inline string that outgrows its buffer moves to the heap for good.
func (s *String) ensure(n uint64) error {
	heap, data, size, capacity, err := s.state()
	if err != nil {
		return err
	}
	if n <= capacity {
		return nil
	}
	if s.alloc == nil {
		return errors.New(errors.PhaseGrow, errors.KindAllocationFailure).
			Addr(s.addr).
			Detail("read-only handle cannot grow").
			Build()
	}

	newCap := growth.Grow(capacity, n)
	// one extra byte keeps the content null-terminated
	ptr, err := s.alloc.Alloc(newCap+1, 1)
	if err != nil {
		return errors.AllocationFailed(errors.PhaseGrow, newCap+1, 1, err)
	}
	if err := s.view.Copy(ptr, data, size+1); err != nil {
		s.alloc.Free(ptr, newCap+1, 1)
		return err
	}

	if err := s.view.WritePtr(s.addr, ptr); err != nil {
		return err
	}
	if err := s.view.WritePtr(s.addr+s.word(), size); err != nil {
		return err
	}
	if err := s.view.WritePtr(s.addr+2*s.word(), newCap|s.heapMask()); err != nil {
		return err
	}

	if heap {
		s.alloc.Free(data, capacity+1, 1)
	}
	return nil
}

// Assign replaces the content.
func (s *String) Assign(val string) error {
	if err := s.ensure(uint64(len(val))); err != nil {
		return err
	}
	heap, data, _, _, err := s.state()
	if err != nil {
		return err
	}
	if len(val) > 0 {
		if err := s.view.Mem.Write(data, []byte(val)); err != nil {
			return err
		}
	}
	return s.setSize(heap, data, uint64(len(val)))
}

// Append adds val to the end.
func (s *String) Append(val string) error {
	_, _, size, _, err := s.state()
	if err != nil {
		return err
	}
	if err := s.ensure(size + uint64(len(val))); err != nil {
		return err
	}
	heap, data, size, _, err := s.state()
	if err != nil {
		return err
	}
	if len(val) > 0 {
		if err := s.view.Mem.Write(data+size, []byte(val)); err != nil {
			return err
		}
	}
	return s.setSize(heap, data, size+uint64(len(val)))
}

// PushBack appends a single character.
func (s *String) PushBack(c byte) error {
	return s.Append(string([]byte{c}))
}

// PopBack removes and returns the last character. ok is false on an empty
// string.
func (s *String) PopBack() (c byte, ok bool, err error) {
	heap, data, size, _, err := s.state()
	if err != nil {
		return 0, false, err
	}
	if size == 0 {
		return 0, false, nil
	}
	c, err = s.view.Mem.ReadU8(data + size - 1)
	if err != nil {
		return 0, false, err
	}
	if err := s.setSize(heap, data, size-1); err != nil {
		return 0, false, err
	}
	return c, true, nil
}

// Insert places sub at character index i, shifting the tail right.
func (s *String) Insert(i uint64, sub string) error {
	_, _, size, _, err := s.state()
	if err != nil {
		return err
	}
	if i > size {
		return errors.OutOfBounds(errors.PhaseWrite, []string{"string", "insert"}, i, size)
	}
	if err := s.ensure(size + uint64(len(sub))); err != nil {
		return err
	}
	heap, data, size, _, err := s.state()
	if err != nil {
		return err
	}
	if err := s.view.Copy(data+i+uint64(len(sub)), data+i, size-i); err != nil {
		return err
	}
	if len(sub) > 0 {
		if err := s.view.Mem.Write(data+i, []byte(sub)); err != nil {
			return err
		}
	}
	return s.setSize(heap, data, size+uint64(len(sub)))
}

// Remove deletes count characters starting at index i, shifting the tail
// left. Removals past the end clamp to the available characters.
func (s *String) Remove(i, count uint64) error {
	heap, data, size, _, err := s.state()
	if err != nil {
		return err
	}
	if i > size {
		return errors.OutOfBounds(errors.PhaseWrite, []string{"string", "remove"}, i, size)
	}
	if count > size-i {
		count = size - i
	}
	if count == 0 {
		return nil
	}
	if err := s.view.Copy(data+i, data+i+count, size-i-count); err != nil {
		return err
	}
	return s.setSize(heap, data, size-count)
}

// Reserve grows capacity to at least n characters, switching to the heap
// representation when n exceeds the inline capacity.
func (s *String) Reserve(n uint64) error {
	return s.ensure(n)
}

// Clear drops the content without changing representation or capacity.
func (s *String) Clear() error {
	heap, data, _, _, err := s.state()
	if err != nil {
		return err
	}
	return s.setSize(heap, data, 0)
}

// Release frees a heap buffer and resets the block to an empty inline
// string. Inline strings just reset.
func (s *String) Release() error {
	heap, data, _, capacity, err := s.state()
	if err != nil {
		return err
	}
	if heap && s.alloc != nil {
		s.alloc.Free(data, capacity+1, 1)
	}
	if err := s.view.Mem.WriteU8(s.addr, 0); err != nil {
		return err
	}
	return s.view.Mem.WriteU8(s.tagAddr(), uint8(s.ssoCap()))
}

// Regions returns the memory the string occupies: the control block and,
// for heap strings, the heap buffer with its terminator byte.
func (s *String) Regions() ([]eastl.Region, error) {
	heap, data, _, capacity, err := s.state()
	if err != nil {
		return nil, err
	}
	out := []eastl.Region{{Addr: s.addr, Size: 3 * s.word()}}
	if heap {
		out = append(out, eastl.Region{Addr: data, Size: capacity + 1})
	}
	return out, nil
}
