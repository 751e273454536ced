package deque

import (
	stderrors "errors"
	"testing"

	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
	"github.com/memscape/eastl/str"
)

func setup(t *testing.T, p *abi.Profile) (*mem.View, *mem.Arena) {
	t.Helper()
	return mem.NewView(mem.NewBuffer(1<<17), p.PtrSize), mem.NewArena(0x1000, 1<<16)
}

func TestSizeOf(t *testing.T) {
	if got := SizeOf(abi.Profile64()); got != 88 {
		t.Errorf("64-bit control size = %d, want 88", got)
	}
	if got := SizeOf(abi.Profile32()); got != 44 {
		t.Errorf("32-bit control size = %d, want 44", got)
	}
}

func TestSubarrayLen(t *testing.T) {
	cases := []struct {
		elemSize uint64
		want     uint64
	}{
		{1, 64}, {4, 64}, {5, 32}, {8, 32}, {9, 16}, {16, 16}, {17, 8}, {32, 8}, {33, 4}, {100, 4},
	}
	for _, c := range cases {
		if got := SubarrayLen(c.elemSize); got != c.want {
			t.Errorf("SubarrayLen(%d) = %d, want %d", c.elemSize, got, c.want)
		}
	}
}

func TestInitialize_InitialState(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)

	d, err := Initialize(view, p, 0x40, abi.TypeU32, arena)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	size, _ := view.Mem.ReadU32(0x40 + 8)
	if size != 8 {
		t.Errorf("ptr array size = %d, want 8", size)
	}

	// the only subarray lives in slot 3
	arr, _ := view.ReadPtr(0x40)
	sub, _ := view.ReadPtr(arr + 3*8)
	if sub == 0 {
		t.Fatal("slot 3 holds no subarray")
	}
	for _, slot := range []uint64{0, 1, 2, 4, 5, 6, 7} {
		v, _ := view.ReadPtr(arr + slot*8)
		if v != 0 {
			t.Errorf("slot %d = %#x, want 0", slot, v)
		}
	}

	// both iterators sit at the subarray start
	bCur, _ := d.beginIt().current()
	eCur, _ := d.endIt().current()
	if bCur != sub || eCur != sub {
		t.Errorf("iterators at %#x, %#x; want %#x", bCur, eCur, sub)
	}

	empty, _ := d.Empty()
	n, _ := d.Len()
	if !empty || n != 0 {
		t.Errorf("empty=%v len=%d", empty, n)
	}
}

func TestPushBack_AcrossSubarrays(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	d, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	for i := uint32(0); i < 65; i++ {
		if err := d.PushBack(i); err != nil {
			t.Fatalf("PushBack(%d): %v", i, err)
		}
	}
	n, _ := d.Len()
	if n != 65 {
		t.Errorf("Len = %d, want 65", n)
	}

	// the iterators straddle two subarrays
	bArr, _ := d.beginIt().currentArray()
	eArr, _ := d.endIt().currentArray()
	if eArr != bArr+8 {
		t.Errorf("end iterator array %#x, want one slot past %#x", eArr, bArr)
	}

	for i := uint64(0); i < 65; i++ {
		v, err := d.AtIndex(i)
		if err != nil || v != uint32(i) {
			t.Errorf("AtIndex(%d) = %v, %v", i, v, err)
		}
	}
	front, _, _ := d.Front()
	back, _, _ := d.Back()
	if front != uint32(0) || back != uint32(64) {
		t.Errorf("front=%v back=%v", front, back)
	}
}

func TestPushPopBack_Reallocates(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	d, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	for i := uint32(0); i < 512; i++ {
		if err := d.PushBack(i); err != nil {
			t.Fatalf("PushBack(%d): %v", i, err)
		}
	}
	for i := 511; i >= 0; i-- {
		v, ok, err := d.PopBack()
		if err != nil || !ok || v != uint32(i) {
			t.Fatalf("PopBack = %v, %v, %v; want %d", v, ok, err, i)
		}
	}
	if _, ok, _ := d.PopBack(); ok {
		t.Error("PopBack on empty deque returned ok")
	}
	if _, ok, _ := d.PopFront(); ok {
		t.Error("PopFront on empty deque returned ok")
	}
	empty, _ := d.Empty()
	if !empty {
		t.Error("deque not empty after draining")
	}
}

func TestPushPopFront_Reallocates(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	d, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	for i := uint32(0); i < 512; i++ {
		if err := d.PushFront(i); err != nil {
			t.Fatalf("PushFront(%d): %v", i, err)
		}
	}
	for i := 511; i >= 0; i-- {
		v, ok, err := d.PopFront()
		if err != nil || !ok || v != uint32(i) {
			t.Fatalf("PopFront = %v, %v, %v; want %d", v, ok, err, i)
		}
	}
	empty, _ := d.Empty()
	if !empty {
		t.Error("deque not empty after draining")
	}
}

func TestMixedEnds(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	d, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)

	d.PushFront(uint32(0))
	d.PushBack(uint32(1))
	for i := uint32(2); i < 65; i++ {
		d.PushFront(i)
		d.PushBack(i)
	}
	n, _ := d.Len()
	if n != 128 {
		t.Errorf("Len = %d, want 128", n)
	}
	front, _, _ := d.Front()
	back, _, _ := d.Back()
	if front != uint32(64) || back != uint32(64) {
		t.Errorf("front=%v back=%v, want 64, 64", front, back)
	}
}

func TestRemove(t *testing.T) {
	p := abi.Profile64()

	fill := func(t *testing.T) (*Deque, *mem.View) {
		view, arena := setup(t, p)
		d, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)
		for i := uint32(0); i < 6; i++ {
			d.PushBack(i)
		}
		return d, view
	}
	collect := func(d *Deque) []uint32 {
		var out []uint32
		d.Each(func(v any) bool {
			out = append(out, v.(uint32))
			return true
		})
		return out
	}
	equal := func(got []uint32, want ...uint32) bool {
		if len(got) != len(want) {
			return false
		}
		for i := range want {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}

	t.Run("out of bounds", func(t *testing.T) {
		d, _ := fill(t)
		if _, ok, _ := d.Remove(6); ok {
			t.Error("Remove(6) returned ok")
		}
		if got := collect(d); !equal(got, 0, 1, 2, 3, 4, 5) {
			t.Errorf("content = %v", got)
		}
	})
	t.Run("front", func(t *testing.T) {
		d, _ := fill(t)
		v, ok, _ := d.Remove(0)
		if !ok || v != uint32(0) {
			t.Fatalf("Remove(0) = %v, %v", v, ok)
		}
		if got := collect(d); !equal(got, 1, 2, 3, 4, 5) {
			t.Errorf("content = %v", got)
		}
	})
	t.Run("back", func(t *testing.T) {
		d, _ := fill(t)
		v, ok, _ := d.Remove(5)
		if !ok || v != uint32(5) {
			t.Fatalf("Remove(5) = %v, %v", v, ok)
		}
		if got := collect(d); !equal(got, 0, 1, 2, 3, 4) {
			t.Errorf("content = %v", got)
		}
	})
	t.Run("middle front half", func(t *testing.T) {
		d, _ := fill(t)
		d.Remove(1)
		if got := collect(d); !equal(got, 0, 2, 3, 4, 5) {
			t.Errorf("content = %v", got)
		}
	})
	t.Run("middle back half", func(t *testing.T) {
		d, _ := fill(t)
		d.Remove(4)
		if got := collect(d); !equal(got, 0, 1, 2, 3, 5) {
			t.Errorf("content = %v", got)
		}
	})
}

func TestStringElements(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	// 24-byte elements get 8-slot subarrays
	d, _ := Initialize(view, p, 0x40, str.Type, arena)
	if d.subLen != 8 {
		t.Fatalf("subLen = %d, want 8", d.subLen)
	}

	for i := 0; i < 10; i++ {
		if err := d.PushBack(string(rune('a' + i))); err != nil {
			t.Fatalf("PushBack: %v", err)
		}
	}
	v, _ := d.AtIndex(9)
	if v != "j" {
		t.Errorf("AtIndex(9) = %v, want j", v)
	}
	got, ok, _ := d.PopFront()
	if !ok || got != "a" {
		t.Errorf("PopFront = %v, %v", got, ok)
	}
}

func TestClearAndRelease(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	free := arena.FreeBytes()

	d, _ := Initialize(view, p, 0x40, abi.TypeU32, arena)
	for i := uint32(0); i < 200; i++ {
		d.PushBack(i)
	}
	if err := d.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, _ := d.Len()
	if n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}

	// cleared deque still works
	d.PushBack(uint32(42))
	v, _, _ := d.Front()
	if v != uint32(42) {
		t.Errorf("Front = %v, want 42", v)
	}

	if err := d.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if arena.FreeBytes() != free {
		t.Errorf("Release leaked %d bytes", free-arena.FreeBytes())
	}
}

func TestReadBack(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	w, _ := Initialize(view, p, 0x40, abi.TypeU64, arena)
	for i := uint64(0); i < 40; i++ {
		w.PushBack(i * 3)
	}

	r, err := At(view, p, 0x40, abi.TypeU64, nil)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	n, _ := r.Len()
	if n != 40 {
		t.Errorf("Len = %d, want 40", n)
	}
	v, _ := r.AtIndex(35)
	if v != uint64(105) {
		t.Errorf("AtIndex(35) = %v, want 105", v)
	}
	if err := r.PushBack(uint64(1)); err == nil {
		t.Error("push through a nil allocator must fail")
	}
}

func TestAt_Corrupt(t *testing.T) {
	p := abi.Profile64()
	view, _ := setup(t, p)

	_, err := At(view, p, 0x40, abi.TypeU32, nil)
	target := &errors.Error{Phase: errors.PhaseRead, Kind: errors.KindCorruptLayout}
	if !stderrors.Is(err, target) {
		t.Errorf("null array error = %v", err)
	}

	// end iterator behind the begin iterator
	view.WritePtr(0x40, 0x2000)
	view.Mem.WriteU32(0x40+8, 8)
	view.WritePtr(0x40+16+24, 0x3000) // b current_array
	view.WritePtr(0x40+48+24, 0x2000) // e current_array
	if _, err := At(view, p, 0x40, abi.TypeU32, nil); err == nil {
		t.Error("reversed iterators must fail")
	}
}

func TestQueue(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	q, err := InitializeQueue(view, p, 0x40, abi.TypeU32, arena)
	if err != nil {
		t.Fatalf("InitializeQueue: %v", err)
	}

	for i := uint32(0); i < 100; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	for i := uint32(0); i < 100; i++ {
		v, ok, err := q.Pop()
		if err != nil || !ok || v != i {
			t.Fatalf("Pop = %v, %v, %v; want %d", v, ok, err, i)
		}
	}
	if _, ok, _ := q.Pop(); ok {
		t.Error("Pop on empty queue returned ok")
	}
}

func TestSetIndex_FreesHeapContent(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	d, _ := Initialize(view, p, 0x40, str.Type, arena)

	long := "a string long enough to spill out of the inline buffer"
	if err := d.PushBack(long); err != nil {
		t.Fatalf("PushBack: %v", err)
	}

	free := arena.FreeBytes()
	if err := d.SetIndex(0, "short"); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	if arena.FreeBytes() <= free {
		t.Error("overwriting a heap string returned no bytes")
	}
	v, _ := d.AtIndex(0)
	if v != "short" {
		t.Errorf("AtIndex(0) = %v, want short", v)
	}

	r, _ := At(view, p, 0x40, str.Type, nil)
	if err := r.SetIndex(0, "x"); err == nil {
		t.Error("set through a nil allocator must fail")
	}
}

func TestPop_FreesHeapContent(t *testing.T) {
	p := abi.Profile64()
	view, arena := setup(t, p)
	d, _ := Initialize(view, p, 0x40, str.Type, arena)

	long := "a string long enough to spill out of the inline buffer"
	d.PushBack(long)
	d.PushBack(long + " and then some")

	free := arena.FreeBytes()
	if v, ok, err := d.PopBack(); err != nil || !ok || v != long+" and then some" {
		t.Fatalf("PopBack = %v, %v, %v", v, ok, err)
	}
	if arena.FreeBytes() <= free {
		t.Error("popping a heap string from the back returned no bytes")
	}

	free = arena.FreeBytes()
	if v, ok, err := d.PopFront(); err != nil || !ok || v != long {
		t.Fatalf("PopFront = %v, %v, %v", v, ok, err)
	}
	if arena.FreeBytes() <= free {
		t.Error("popping a heap string from the front returned no bytes")
	}
}
