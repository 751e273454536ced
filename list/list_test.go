package list

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
	"github.com/memscape/eastl/str"
)

func setup(t *testing.T, p *abi.Profile) (*mem.View, *mem.Arena) {
	t.Helper()
	return mem.NewView(mem.NewBuffer(1<<16), p.PtrSize), mem.NewArena(0x1000, 1<<14)
}

func TestSizeOf(t *testing.T) {
	if got := SizeOf(abi.Profile64()); got != 32 {
		t.Errorf("64-bit control size = %d, want 32", got)
	}
	if got := SizeOf(abi.Profile32()); got != 16 {
		t.Errorf("32-bit control size = %d, want 16", got)
	}
}

func TestNodeSizeOf(t *testing.T) {
	p := abi.Profile64()
	if got := NodeSizeOf(p, abi.TypeU32); got != 24 {
		t.Errorf("u32 node size = %d, want 24", got)
	}
	if got := NodeSizeOf(abi.Profile32(), abi.TypeU32); got != 12 {
		t.Errorf("32-bit u32 node size = %d, want 12", got)
	}
}

func TestInitialize_SentinelImage(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)

	l, err := Initialize(view, p, 0x40, abi.TypeU32, arena)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// the sentinel links to itself
	next, _ := view.ReadPtr(0x40)
	prev, _ := view.ReadPtr(0x48)
	if next != 0x40 || prev != 0x40 {
		t.Errorf("sentinel links = %#x, %#x; want self", next, prev)
	}

	empty, _ := l.Empty()
	if !empty {
		t.Error("new list not empty")
	}
	if _, ok, _ := l.Front(); ok {
		t.Error("Front on empty list returned ok")
	}
	if _, ok, _ := l.Back(); ok {
		t.Error("Back on empty list returned ok")
	}
}

func TestPushFront(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	l, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	l.PushFront(uint32(12))
	front, _, _ := l.Front()
	back, _, _ := l.Back()
	if front != uint32(12) || back != uint32(12) {
		t.Errorf("front=%v back=%v, want 12, 12", front, back)
	}

	l.PushFront(uint32(6))
	n, _ := l.Len()
	front, _, _ = l.Front()
	back, _, _ = l.Back()
	if n != 2 || front != uint32(6) || back != uint32(12) {
		t.Errorf("len=%d front=%v back=%v, want 2, 6, 12", n, front, back)
	}
}

func TestPushBack_Order(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	l, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	for _, v := range []uint32{1, 2, 3} {
		if err := l.PushBack(v); err != nil {
			t.Fatalf("PushBack(%d): %v", v, err)
		}
	}

	got, err := l.Elements()
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	want := []any{uint32(1), uint32(2), uint32(3)}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Elements[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	var rev []uint32
	l.EachReverse(func(v any) bool {
		rev = append(rev, v.(uint32))
		return true
	})
	if len(rev) != 3 || rev[0] != 3 || rev[2] != 1 {
		t.Errorf("reverse order = %v, want [3 2 1]", rev)
	}
}

func TestPop(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	l, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	l.PushBack(uint32(10))
	l.PushBack(uint32(20))

	v, ok, err := l.PopFront()
	if err != nil || !ok || v != uint32(10) {
		t.Fatalf("PopFront = %v, %v, %v", v, ok, err)
	}
	v, ok, _ = l.PopBack()
	if !ok || v != uint32(20) {
		t.Fatalf("PopBack = %v, %v", v, ok)
	}

	empty, _ := l.Empty()
	if !empty {
		t.Error("list not empty after popping everything")
	}
	if _, ok, _ := l.PopFront(); ok {
		t.Error("PopFront on empty list returned ok")
	}
	if _, ok, _ := l.PopBack(); ok {
		t.Error("PopBack on empty list returned ok")
	}

	// the sentinel is self-linked again
	next, _ := view.ReadPtr(0x40)
	if next != 0x40 {
		t.Errorf("sentinel next = %#x, want self", next)
	}
}

func TestClear_FreesNodes(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	l, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	free := arena.FreeBytes()
	l.PushBack(uint32(12))
	l.PushBack(uint32(6))

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, _ := l.Len()
	if n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
	if arena.FreeBytes() != free {
		t.Errorf("Clear leaked %d bytes", free-arena.FreeBytes())
	}
	if _, ok, _ := l.Front(); ok {
		t.Error("cleared list still has a front")
	}
}

func TestStringElements(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	l, _ := Initialize(view, p, 0x40, str.Type, arena)

	long := strings.Repeat("payload ", 8)
	l.PushBack("hello")
	l.PushBack(long)

	back, ok, _ := l.Back()
	if !ok || back != long {
		t.Errorf("Back = %v, %v", back, ok)
	}

	free := arena.FreeBytes()
	v, ok, err := l.PopBack()
	if err != nil || !ok || v != long {
		t.Fatalf("PopBack = %v, %v, %v", v, ok, err)
	}
	if arena.FreeBytes() <= free {
		t.Error("popping a long string did not free its heap content")
	}
}

func TestReadBack(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	w, _ := Initialize(view, p, 0x40, abi.TypeU64, arena)
	w.PushBack(uint64(7))
	w.PushBack(uint64(9))

	r, err := At(view, p, 0x40, abi.TypeU64, nil)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	n, _ := r.Len()
	if n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
	front, _, _ := r.Front()
	if front != uint64(7) {
		t.Errorf("Front = %v, want 7", front)
	}
	if err := r.PushBack(uint64(1)); err == nil {
		t.Error("push through a nil allocator must fail")
	}
}

func TestCorruptRing(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	l, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	l.PushBack(uint32(1))
	l.PushBack(uint32(2))

	// loop the first node's next back onto itself
	first, _ := view.ReadPtr(0x40)
	view.WritePtr(first, first)

	err := l.Each(func(any) bool { return true })
	target := &errors.Error{Phase: errors.PhaseTraverse, Kind: errors.KindCorruptLayout}
	if !stderrors.Is(err, target) {
		t.Errorf("cycle error = %v", err)
	}

	// a short ring is corrupt too
	view.WritePtr(0x40, 0x40)
	if err := l.Each(func(any) bool { return true }); err == nil {
		t.Error("short ring must fail")
	}
}

func TestFixedSizeOf(t *testing.T) {
	p := abi.Profile64()
	// control 24 -> pool 40 at 24 -> buffer of five 24-byte nodes at 64
	if got := FixedSizeOf(p, abi.TypeU32, 4); got != 184 {
		t.Errorf("64-bit fixed control size = %d, want 184", got)
	}
}

func TestFixed_InlineNodes(t *testing.T) {
	p := abi.Profile64()
	view, _ := setup(t, p)

	fl, err := InitializeFixed(view, p, 0x40, abi.TypeU32, 4, nil)
	if err != nil {
		t.Fatalf("InitializeFixed: %v", err)
	}

	for i := 0; i < 4; i++ {
		if err := fl.PushBack(uint32(i)); err != nil {
			t.Fatalf("PushBack(%d): %v", i, err)
		}
	}

	// nodes come from the inline buffer
	bufStart := uint64(0x40 + 64)
	first, _ := view.ReadPtr(0x40)
	if first < bufStart || first >= bufStart+120 {
		t.Errorf("first node %#x outside inline buffer", first)
	}

	full, _ := fl.Full()
	if !full {
		t.Error("Full = false at capacity")
	}

	err = fl.PushBack(uint32(4))
	target := &errors.Error{Phase: errors.PhaseGrow, Kind: errors.KindCapacityExceeded}
	if !stderrors.Is(err, target) {
		t.Errorf("overfull push error = %v", err)
	}
	n, _ := fl.Len()
	if n != 4 {
		t.Errorf("Len = %d, want 4", n)
	}
}

func TestFixed_NodeReuse(t *testing.T) {
	p := abi.Profile64()
	view, _ := setup(t, p)
	fl, _ := InitializeFixed(view, p, 0x40, abi.TypeU32, 2, nil)

	fl.PushBack(uint32(1))
	fl.PushBack(uint32(2))
	fl.PopFront()

	// the freed node makes room again
	if err := fl.PushBack(uint32(3)); err != nil {
		t.Fatalf("PushBack after pop: %v", err)
	}
	got, _ := fl.Elements()
	if len(got) != 2 || got[0] != uint32(2) || got[1] != uint32(3) {
		t.Errorf("Elements = %v, want [2 3]", got)
	}
}

func TestFixed_Overflow(t *testing.T) {
	view, arena := setup(t, abi.Profile64())
	p := abi.Profile64()
	p.FixedOverflow = true

	fl, _ := InitializeFixed(view, p, 0x40, abi.TypeU32, 2, arena)
	for i := 0; i < 5; i++ {
		if err := fl.PushBack(uint32(i)); err != nil {
			t.Fatalf("PushBack(%d): %v", i, err)
		}
	}
	n, _ := fl.Len()
	if n != 5 {
		t.Errorf("Len = %d, want 5", n)
	}

	// spilled nodes return to the overflow allocator
	free := arena.FreeBytes()
	fl.PopBack()
	if arena.FreeBytes() <= free {
		t.Error("popping a spilled node did not free it")
	}

	got, _ := fl.Elements()
	if len(got) != 4 || got[0] != uint32(0) || got[3] != uint32(3) {
		t.Errorf("Elements = %v", got)
	}
}
