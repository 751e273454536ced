package mem

import (
	"github.com/memscape/eastl/errors"
)

type span struct {
	addr uint64
	size uint64
}

// Arena is a first-fit free-list Allocator carving payload storage out of a
// Memory region. It tracks free spans in Go; nothing is written to the
// region until a caller stores through the returned addresses.
//
// Address 0 is never handed out; it is reserved as the null pointer value.
type Arena struct {
	free []span // sorted by addr, non-adjacent
}

// NewArena creates an Arena managing [start, start+size).
func NewArena(start, size uint64) *Arena {
	if start == 0 {
		// keep 0 as the null pointer
		if size == 0 {
			return &Arena{}
		}
		start, size = 1, size-1
	}
	a := &Arena{}
	if size > 0 {
		a.free = []span{{addr: start, size: size}}
	}
	return a
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// Alloc returns the address of a free range of the given size and alignment.
func (a *Arena) Alloc(size, align uint64) (uint64, error) {
	if size == 0 {
		size = 1
	}
	for i, s := range a.free {
		addr := alignUp(s.addr, align)
		pad := addr - s.addr
		if pad+size > s.size {
			continue
		}
		// carve [addr, addr+size) out of the span
		var repl []span
		if pad > 0 {
			repl = append(repl, span{addr: s.addr, size: pad})
		}
		if rest := s.size - pad - size; rest > 0 {
			repl = append(repl, span{addr: addr + size, size: rest})
		}
		a.free = append(a.free[:i], append(repl, a.free[i+1:]...)...)
		return addr, nil
	}
	return 0, errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
		Detail("arena exhausted: need %d bytes (align %d)", size, align).
		Build()
}

// Free returns [addr, addr+size) to the free list, coalescing neighbors.
// The align argument is accepted for interface symmetry and ignored.
func (a *Arena) Free(addr, size, align uint64) {
	_ = align
	if size == 0 {
		size = 1
	}
	// insertion point keeping the list sorted by address
	i := 0
	for i < len(a.free) && a.free[i].addr < addr {
		i++
	}
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = span{addr: addr, size: size}

	// coalesce with successor, then predecessor
	if i+1 < len(a.free) && a.free[i].addr+a.free[i].size == a.free[i+1].addr {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].addr+a.free[i-1].size == a.free[i].addr {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// FreeBytes reports the total bytes currently available.
func (a *Arena) FreeBytes() uint64 {
	var total uint64
	for _, s := range a.free {
		total += s.size
	}
	return total
}
