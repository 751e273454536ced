package str

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

func setup(t *testing.T, p *abi.Profile) (*mem.View, *mem.Arena) {
	t.Helper()
	return mem.NewView(mem.NewBuffer(8192), p.PtrSize), mem.NewArena(0x400, 4096)
}

func TestSizeOf(t *testing.T) {
	if got := SizeOf(abi.Profile64()); got != 24 {
		t.Errorf("64-bit control size = %d, want 24", got)
	}
	if got := SizeOf(abi.Profile32()); got != 12 {
		t.Errorf("32-bit control size = %d, want 12", got)
	}
}

func TestInitialize_EmptyInline(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)

	s, err := Initialize(view, p, 0x40, arena)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// tag byte holds the full remaining capacity, heap bit clear
	tag, _ := view.Mem.ReadU8(0x40 + 23)
	if tag != 23 {
		t.Errorf("tag byte = %d, want 23", tag)
	}
	// terminator at the front
	b0, _ := view.Mem.ReadU8(0x40)
	if b0 != 0 {
		t.Errorf("first byte = %d, want 0", b0)
	}

	heap, _ := s.IsHeap()
	if heap {
		t.Error("empty string must be inline")
	}
	n, _ := s.Len()
	c, _ := s.Cap()
	if n != 0 || c != 23 {
		t.Errorf("len=%d cap=%d, want 0, 23", n, c)
	}
}

func TestAssign_Inline(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	if err := s.Assign("hello"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	got, _ := s.String()
	if got != "hello" {
		t.Errorf("String = %q, want %q", got, "hello")
	}
	heap, _ := s.IsHeap()
	if heap {
		t.Error("5-char string must stay inline")
	}

	// byte image: chars at the front, terminator, remaining byte 18
	raw, _ := view.Mem.Read(0x40, 6)
	if string(raw[:5]) != "hello" || raw[5] != 0 {
		t.Errorf("raw image = %q %v", raw[:5], raw[5])
	}
	tag, _ := view.Mem.ReadU8(0x40 + 23)
	if tag != 18 {
		t.Errorf("tag byte = %d, want 18", tag)
	}
}

func TestAssign_ExactInlineCapacity(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	full := strings.Repeat("x", 23)
	if err := s.Assign(full); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	heap, _ := s.IsHeap()
	if heap {
		t.Error("23 chars must still be inline on 64-bit")
	}
	// zero remaining doubles as the terminator
	tag, _ := view.Mem.ReadU8(0x40 + 23)
	if tag != 0 {
		t.Errorf("tag byte = %d, want 0", tag)
	}
	got, _ := s.String()
	if got != full {
		t.Errorf("String = %q", got)
	}
}

func TestAssign_HeapSwitch(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	long := strings.Repeat("ab", 12) // 24 chars
	if err := s.Assign(long); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	heap, _ := s.IsHeap()
	if !heap {
		t.Fatal("24 chars must move to the heap")
	}
	got, _ := s.String()
	if got != long {
		t.Errorf("String = %q", got)
	}

	// heap triple: data pointer, size word, capacity word with top bit
	ptr, _ := view.ReadPtr(0x40)
	size, _ := view.ReadPtr(0x48)
	rawCap, _ := view.Mem.ReadU64(0x50)
	if ptr < 0x400 {
		t.Errorf("data pointer %#x not in arena", ptr)
	}
	if size != 24 {
		t.Errorf("size word = %d, want 24", size)
	}
	if rawCap&(1<<63) == 0 {
		t.Error("capacity word missing heap bit")
	}
	if rawCap&^(uint64(1)<<63) < 24 {
		t.Errorf("capacity = %d, want >= 24", rawCap&^(uint64(1)<<63))
	}

	// heap content stays null-terminated
	term, _ := view.Mem.ReadU8(ptr + size)
	if term != 0 {
		t.Errorf("terminator = %d, want 0", term)
	}
}

func TestHeapSwitch_Irreversible(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	s.Assign(strings.Repeat("y", 30))
	if err := s.Assign("tiny"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	heap, _ := s.IsHeap()
	if !heap {
		t.Error("shrinking must not return to the inline form")
	}
	got, _ := s.String()
	if got != "tiny" {
		t.Errorf("String = %q, want %q", got, "tiny")
	}
}

func TestPushPop(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	for _, c := range []byte("abc") {
		if err := s.PushBack(c); err != nil {
			t.Fatalf("PushBack: %v", err)
		}
	}
	got, _ := s.String()
	if got != "abc" {
		t.Errorf("String = %q, want %q", got, "abc")
	}

	c, ok, err := s.PopBack()
	if err != nil || !ok || c != 'c' {
		t.Fatalf("PopBack = %q, %v, %v; want 'c', true", c, ok, err)
	}
	got, _ = s.String()
	if got != "ab" {
		t.Errorf("String = %q, want %q", got, "ab")
	}

	s.Clear()
	if _, ok, _ := s.PopBack(); ok {
		t.Error("PopBack on empty string returned ok")
	}
}

func TestInsertRemove(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	s.Assign("helo")
	if err := s.Insert(3, "l"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, _ := s.String()
	if got != "hello" {
		t.Errorf("String = %q, want %q", got, "hello")
	}

	if err := s.Remove(0, 2); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, _ = s.String()
	if got != "llo" {
		t.Errorf("String = %q, want %q", got, "llo")
	}

	// clamped removal
	if err := s.Remove(1, 100); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, _ = s.String()
	if got != "l" {
		t.Errorf("String = %q, want %q", got, "l")
	}

	if err := s.Insert(99, "x"); err == nil {
		t.Error("Insert past end must fail")
	}
}

func TestAppend_GrowsAcrossBoundary(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	s.Assign(strings.Repeat("a", 20))
	if err := s.Append("bbbbbb"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ := s.String()
	if got != strings.Repeat("a", 20)+"bbbbbb" {
		t.Errorf("String = %q", got)
	}
	heap, _ := s.IsHeap()
	if !heap {
		t.Error("26 chars must be on the heap")
	}
	// growth doubles the inline capacity
	c, _ := s.Cap()
	if c != 46 {
		t.Errorf("Cap = %d, want 46", c)
	}
}

func TestProfile32_Capacity(t *testing.T) {
	p := abi.Profile32()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	c, _ := s.Cap()
	if c != 11 {
		t.Errorf("32-bit inline capacity = %d, want 11", c)
	}
	s.Assign("twelve chars")
	heap, _ := s.IsHeap()
	if !heap {
		t.Error("12 chars must be on the heap under the 32-bit profile")
	}
	got, _ := s.String()
	if got != "twelve chars" {
		t.Errorf("String = %q", got)
	}
}

func TestAt_CorruptLayout(t *testing.T) {
	p := abi.Profile64()
	view, _ := setup(t, p)

	// heap bit set with a null data pointer
	view.Mem.WriteU8(0x40+23, 0x80)
	_, err := At(view, p, 0x40, nil)
	if err == nil {
		t.Fatal("expected corrupt layout error")
	}
	target := &errors.Error{Phase: errors.PhaseRead, Kind: errors.KindCorruptLayout}
	if !stderrors.Is(err, target) {
		t.Errorf("unexpected error: %v", err)
	}

	// inline remaining byte larger than the buffer
	view.Mem.WriteU8(0x40+23, 55)
	if _, err := At(view, p, 0x40, nil); err == nil {
		t.Error("expected corrupt layout error for bad remaining byte")
	}
}

func TestRelease(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	s, _ := Initialize(view, p, 0x40, arena)

	s.Assign(strings.Repeat("z", 40))
	free := arena.FreeBytes()
	if err := s.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if arena.FreeBytes() <= free {
		t.Error("Release did not return the heap buffer")
	}
	heap, _ := s.IsHeap()
	n, _ := s.Len()
	if heap || n != 0 {
		t.Errorf("after Release heap=%v len=%d, want inline empty", heap, n)
	}
}

func TestType_Codec(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)

	if got := Type.Size(p); got != 24 {
		t.Errorf("Type.Size = %d, want 24", got)
	}

	if err := Type.Store(view, 0x40, "short", arena); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := Type.Load(view, 0x40)
	if err != nil || got != "short" {
		t.Fatalf("Load = %v, %v; want %q", got, err, "short")
	}

	long := strings.Repeat("q", 64)
	if err := Type.Store(view, 0x80, long, arena); err != nil {
		t.Fatalf("Store long: %v", err)
	}
	got, _ = Type.Load(view, 0x80)
	if got != long {
		t.Errorf("Load long = %q", got)
	}

	free := arena.FreeBytes()
	if err := Type.Release(view, 0x80, arena); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if arena.FreeBytes() <= free {
		t.Error("Release did not free the heap buffer")
	}

	if err := Type.Store(view, 0x40, 42, arena); err == nil {
		t.Error("Store must reject non-strings")
	}
}
