package mem

import (
	stderrors "errors"
	"testing"

	"github.com/memscape/eastl/errors"
)

func TestBuffer_ReadWrite(t *testing.T) {
	b := NewBuffer(64)

	if err := b.WriteU32(8, 0xdeadbeef); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	v, err := b.ReadU32(8)
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	if v != 0xdeadbeef {
		t.Errorf("ReadU32 = %#x, want 0xdeadbeef", v)
	}

	// little-endian byte order
	lo, _ := b.ReadU8(8)
	if lo != 0xef {
		t.Errorf("first byte = %#x, want 0xef", lo)
	}

	if err := b.WriteU64(16, 0x0102030405060708); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	w, err := b.ReadU64(16)
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}
	if w != 0x0102030405060708 {
		t.Errorf("ReadU64 = %#x", w)
	}

	if err := b.WriteU16(30, 0xabcd); err != nil {
		t.Fatalf("WriteU16: %v", err)
	}
	h, _ := b.ReadU16(30)
	if h != 0xabcd {
		t.Errorf("ReadU16 = %#x, want 0xabcd", h)
	}
}

func TestBuffer_Bounds(t *testing.T) {
	b := NewBuffer(16)

	tests := []struct {
		name string
		op   func() error
	}{
		{"read past end", func() error { _, err := b.Read(8, 16); return err }},
		{"read at end", func() error { _, err := b.ReadU8(16); return err }},
		{"u64 straddling end", func() error { _, err := b.ReadU64(12); return err }},
		{"write past end", func() error { return b.Write(15, []byte{1, 2}) }},
		{"addr overflow", func() error { _, err := b.Read(^uint64(0), 2); return err }},
	}

	target := &errors.Error{Phase: errors.PhaseRead, Kind: errors.KindOutOfBounds}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if err == nil {
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, target) && !stderrors.Is(err, &errors.Error{Phase: errors.PhaseWrite, Kind: errors.KindOutOfBounds}) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuffer_ReadIsCopy(t *testing.T) {
	b := NewBufferFrom([]byte{1, 2, 3, 4})
	data, err := b.Read(0, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data[0] = 99
	v, _ := b.ReadU8(0)
	if v != 1 {
		t.Errorf("Read must return a copy; buffer byte = %d", v)
	}
}

func TestView_Ptr(t *testing.T) {
	tests := []struct {
		name    string
		ptrSize uint32
		value   uint64
	}{
		{"32-bit", 4, 0x1000},
		{"64-bit", 8, 0x1_0000_2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewView(NewBuffer(32), tt.ptrSize)
			if v.Word() != uint64(tt.ptrSize) {
				t.Errorf("Word = %d, want %d", v.Word(), tt.ptrSize)
			}
			if err := v.WritePtr(8, tt.value); err != nil {
				t.Fatalf("WritePtr: %v", err)
			}
			got, err := v.ReadPtr(8)
			if err != nil {
				t.Fatalf("ReadPtr: %v", err)
			}
			if got != tt.value {
				t.Errorf("ReadPtr = %#x, want %#x", got, tt.value)
			}
		})
	}

	t.Run("32-bit rejects wide pointer", func(t *testing.T) {
		v := NewView(NewBuffer(32), 4)
		if err := v.WritePtr(0, 0x1_0000_0000); err == nil {
			t.Error("expected error writing 33-bit pointer")
		}
	})
}

func TestView_CopyOverlap(t *testing.T) {
	v := NewView(NewBufferFrom([]byte{1, 2, 3, 4, 5, 0, 0, 0}), 8)

	// shift right by two over an overlapping range
	if err := v.Copy(2, 0, 5); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, _ := v.Mem.Read(0, 8)
	want := []byte{1, 2, 1, 2, 3, 4, 5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after overlap copy got %v, want %v", got, want)
		}
	}
}

func TestView_Fill(t *testing.T) {
	v := NewView(NewBuffer(8), 8)
	if err := v.Fill(2, 4, 0xaa); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	got, _ := v.Mem.Read(0, 8)
	want := []byte{0, 0, 0xaa, 0xaa, 0xaa, 0xaa, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after fill got %v, want %v", got, want)
		}
	}
}

func TestArena_AllocAlignment(t *testing.T) {
	a := NewArena(1, 255)

	addr, err := a.Alloc(16, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if addr%8 != 0 {
		t.Errorf("addr %#x not 8-aligned", addr)
	}
	if addr == 0 {
		t.Error("arena handed out the null address")
	}

	addr2, err := a.Alloc(4, 4)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if addr2%4 != 0 {
		t.Errorf("addr %#x not 4-aligned", addr2)
	}
	if addr2 >= addr && addr2 < addr+16 {
		t.Errorf("second allocation %#x overlaps first [%#x,%#x)", addr2, addr, addr+16)
	}
}

func TestArena_Exhaustion(t *testing.T) {
	a := NewArena(8, 32)
	if _, err := a.Alloc(64, 1); err == nil {
		t.Fatal("expected exhaustion error")
	}
	target := &errors.Error{Phase: errors.PhaseWrite, Kind: errors.KindAllocationFailure}
	_, err := a.Alloc(64, 1)
	if !stderrors.Is(err, target) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestArena_FreeCoalesce(t *testing.T) {
	a := NewArena(8, 64)

	a1, _ := a.Alloc(16, 8)
	a2, _ := a.Alloc(16, 8)
	a3, _ := a.Alloc(16, 8)

	before := a.FreeBytes()
	a.Free(a1, 16, 8)
	a.Free(a3, 16, 8)
	a.Free(a2, 16, 8)
	if got := a.FreeBytes(); got != before+48 {
		t.Fatalf("FreeBytes = %d, want %d", got, before+48)
	}

	// a coalesced arena can satisfy one allocation spanning all three
	if _, err := a.Alloc(48, 8); err != nil {
		t.Fatalf("Alloc after coalesce: %v", err)
	}
}

func TestArena_NullReserved(t *testing.T) {
	a := NewArena(0, 16)
	addr, err := a.Alloc(1, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if addr == 0 {
		t.Error("address 0 must stay reserved")
	}
}
