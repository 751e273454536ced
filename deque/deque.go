// Package deque implements the double-ended queue backed by fixed-size
// subarrays.
//
// The control block is eleven pointer words: the subarray pointer array
// and its slot count, a begin iterator and an end iterator of four words
// each {current, begin, end, current_array}, and the allocator word. A new
// deque allocates eight pointer slots with one subarray in slot 3 so both
// ends have room to grow. Subarray length depends on the element size:
// 64/32/16/8/4 slots for elements of at most 4/8/16/32/more bytes.
package deque

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

const initialPtrArraySize = 8

func layout(p *abi.Profile) abi.Info {
	return abi.Layout(abi.FamilyDeque, p, func(p *abi.Profile) []abi.Field {
		return []abi.Field{
			abi.Ptr(p, "ptr_array"),
			abi.U32("ptr_array_size"),
			abi.Ptr(p, "b_current"),
			abi.Ptr(p, "b_begin"),
			abi.Ptr(p, "b_end"),
			abi.Ptr(p, "b_current_array"),
			abi.Ptr(p, "e_current"),
			abi.Ptr(p, "e_begin"),
			abi.Ptr(p, "e_end"),
			abi.Ptr(p, "e_current_array"),
			abi.Ptr(p, "allocator"),
		}
	})
}

// SizeOf returns the size of the deque control block.
func SizeOf(p *abi.Profile) uint64 {
	return layout(p).Size
}

// AlignOf returns the alignment of the deque control block.
func AlignOf(p *abi.Profile) uint64 {
	return p.Word()
}

// SubarrayLen returns the element count of one subarray for the element
// size.
func SubarrayLen(elemSize uint64) uint64 {
	switch {
	case elemSize <= 4:
		return 64
	case elemSize <= 8:
		return 32
	case elemSize <= 16:
		return 16
	case elemSize <= 32:
		return 8
	default:
		return 4
	}
}

// Deque is a handle over a deque control block.
type Deque struct {
	view    *mem.View
	profile *abi.Profile
	addr    uint64
	elem    abi.Type
	alloc   eastl.Allocator

	elemSize uint64
	subLen   uint64
}

// Initialize writes an empty deque at addr, allocating the pointer array
// and the first subarray.
func Initialize(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*Deque, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	d := newDeque(view, profile, addr, elem, alloc)
	w := view.Word()

	arr, err := alloc.Alloc(initialPtrArraySize*w, w)
	if err != nil {
		return nil, errors.AllocationFailed(errors.PhaseInit, initialPtrArraySize*w, w, err)
	}
	if err := view.Fill(arr, initialPtrArraySize*w, 0); err != nil {
		return nil, err
	}
	sub, err := d.allocSubarray()
	if err != nil {
		return nil, err
	}
	// the first subarray sits mid-array so both ends have headroom
	slot := arr + ((initialPtrArraySize-1)/2)*w
	if err := view.WritePtr(slot, sub); err != nil {
		return nil, err
	}

	if err := view.WritePtr(d.offs("ptr_array"), arr); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(d.offs("ptr_array_size"), initialPtrArraySize); err != nil {
		return nil, err
	}
	if err := view.WritePtr(d.offs("allocator"), 0); err != nil {
		return nil, err
	}

	for _, it := range []iter{d.beginIt(), d.endIt()} {
		if err := it.setSubarray(slot); err != nil {
			return nil, err
		}
		if err := it.setCurrent(sub); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// At interprets an existing deque control block at addr.
func At(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*Deque, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	d := newDeque(view, profile, addr, elem, alloc)

	arr, err := view.ReadPtr(d.offs("ptr_array"))
	if err != nil {
		return nil, err
	}
	if arr == 0 {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "null pointer array")
	}
	if _, err := d.Len(); err != nil {
		return nil, err
	}
	return d, nil
}

func newDeque(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) *Deque {
	es := elem.Size(profile)
	return &Deque{
		view:     view,
		profile:  profile,
		addr:     addr,
		elem:     elem,
		alloc:    alloc,
		elemSize: es,
		subLen:   SubarrayLen(es),
	}
}

// Addr returns the control block address.
func (d *Deque) Addr() uint64 {
	return d.addr
}

func (d *Deque) offs(name string) uint64 {
	return d.addr + layout(d.profile).Offset(name)
}

func (d *Deque) allocSubarray() (uint64, error) {
	size := d.subLen * d.elemSize
	sub, err := d.alloc.Alloc(size, d.elem.Align(d.profile))
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseGrow, size, d.elem.Align(d.profile), err)
	}
	return sub, nil
}

func (d *Deque) freeSubarray(sub uint64) {
	d.alloc.Free(sub, d.subLen*d.elemSize, d.elem.Align(d.profile))
}

// iter reads and writes one of the two control block iterators in place.
type iter struct {
	d      *Deque
	prefix string
}

func (d *Deque) beginIt() iter { return iter{d: d, prefix: "b_"} }
func (d *Deque) endIt() iter   { return iter{d: d, prefix: "e_"} }

func (it iter) field(name string) uint64 {
	return it.d.offs(it.prefix + name)
}

func (it iter) current() (uint64, error) {
	return it.d.view.ReadPtr(it.field("current"))
}

func (it iter) begin() (uint64, error) {
	return it.d.view.ReadPtr(it.field("begin"))
}

func (it iter) end() (uint64, error) {
	return it.d.view.ReadPtr(it.field("end"))
}

func (it iter) currentArray() (uint64, error) {
	return it.d.view.ReadPtr(it.field("current_array"))
}

func (it iter) setCurrent(v uint64) error {
	return it.d.view.WritePtr(it.field("current"), v)
}

// setSubarray points the iterator at the subarray slot: begin and end are
// refreshed from the slot, current is left alone.
func (it iter) setSubarray(slot uint64) error {
	sub, err := it.d.view.ReadPtr(slot)
	if err != nil {
		return err
	}
	if err := it.d.view.WritePtr(it.field("current_array"), slot); err != nil {
		return err
	}
	if err := it.d.view.WritePtr(it.field("begin"), sub); err != nil {
		return err
	}
	return it.d.view.WritePtr(it.field("end"), sub+it.d.subLen*it.d.elemSize)
}

// Empty reports whether the deque holds no elements.
func (d *Deque) Empty() (bool, error) {
	bc, err := d.beginIt().current()
	if err != nil {
		return false, err
	}
	ec, err := d.endIt().current()
	if err != nil {
		return false, err
	}
	return bc == ec, nil
}

// Len computes the element count from the two iterators.
func (d *Deque) Len() (uint64, error) {
	b, e := d.beginIt(), d.endIt()
	bArr, err := b.currentArray()
	if err != nil {
		return 0, err
	}
	eArr, err := e.currentArray()
	if err != nil {
		return 0, err
	}
	bCur, err := b.current()
	if err != nil {
		return 0, err
	}
	eCur, err := e.current()
	if err != nil {
		return 0, err
	}

	if bArr == eArr {
		if eCur < bCur || (eCur-bCur)%d.elemSize != 0 {
			return 0, errors.CorruptLayout(errors.PhaseRead, d.addr, "iterator span mismatch")
		}
		return (eCur - bCur) / d.elemSize, nil
	}

	bBegin, err := b.begin()
	if err != nil {
		return 0, err
	}
	eBegin, err := e.begin()
	if err != nil {
		return 0, err
	}
	if eArr < bArr {
		return 0, errors.CorruptLayout(errors.PhaseRead, d.addr, "end iterator behind begin iterator")
	}
	full := (eArr - bArr) / d.view.Word() * d.subLen
	n := int64(full) + int64((eCur-eBegin)/d.elemSize) - int64((bCur-bBegin)/d.elemSize)
	if n < 0 {
		return 0, errors.CorruptLayout(errors.PhaseRead, d.addr, "negative length")
	}
	return uint64(n), nil
}

func (d *Deque) checkWritable() error {
	if d.alloc == nil {
		return errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(d.addr).
			Detail("read-only handle cannot modify").
			Build()
	}
	return nil
}

// PushBack appends val, allocating a fresh subarray when the current one
// is down to its last slot.
func (d *Deque) PushBack(val any) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	e := d.endIt()
	cur, err := e.current()
	if err != nil {
		return err
	}
	end, err := e.end()
	if err != nil {
		return err
	}

	if cur != end-d.elemSize {
		if err := d.elem.Store(d.view, cur, val, d.alloc); err != nil {
			return err
		}
		return e.setCurrent(cur + d.elemSize)
	}

	// the write lands in the last slot; stage the next subarray first
	arr, err := d.view.ReadPtr(d.offs("ptr_array"))
	if err != nil {
		return err
	}
	size, err := d.view.Mem.ReadU32(d.offs("ptr_array_size"))
	if err != nil {
		return err
	}
	slot, err := e.currentArray()
	if err != nil {
		return err
	}
	if slot == arr+uint64(size-1)*d.view.Word() {
		if err := d.reallocPtrArray(1, false); err != nil {
			return err
		}
		if slot, err = e.currentArray(); err != nil {
			return err
		}
	}

	if err := d.elem.Store(d.view, cur, val, d.alloc); err != nil {
		return err
	}
	sub, err := d.allocSubarray()
	if err != nil {
		return err
	}
	next := slot + d.view.Word()
	if err := d.view.WritePtr(next, sub); err != nil {
		return err
	}
	if err := e.setSubarray(next); err != nil {
		return err
	}
	return e.setCurrent(sub)
}

// PushFront prepends val, allocating a fresh subarray when the current one
// has no slot left in front.
func (d *Deque) PushFront(val any) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	b := d.beginIt()
	cur, err := b.current()
	if err != nil {
		return err
	}
	begin, err := b.begin()
	if err != nil {
		return err
	}

	if cur != begin {
		cur -= d.elemSize
		if err := b.setCurrent(cur); err != nil {
			return err
		}
		return d.elem.Store(d.view, cur, val, d.alloc)
	}

	arr, err := d.view.ReadPtr(d.offs("ptr_array"))
	if err != nil {
		return err
	}
	slot, err := b.currentArray()
	if err != nil {
		return err
	}
	if slot == arr {
		if err := d.reallocPtrArray(1, true); err != nil {
			return err
		}
		if slot, err = b.currentArray(); err != nil {
			return err
		}
	}

	sub, err := d.allocSubarray()
	if err != nil {
		return err
	}
	prev := slot - d.view.Word()
	if err := d.view.WritePtr(prev, sub); err != nil {
		return err
	}
	if err := b.setSubarray(prev); err != nil {
		return err
	}
	cur = sub + (d.subLen-1)*d.elemSize
	if err := b.setCurrent(cur); err != nil {
		return err
	}
	return d.elem.Store(d.view, cur, val, d.alloc)
}

// PopBack removes and returns the last value. Heap content owned by the
// element is released. ok is false on an empty
// deque.
func (d *Deque) PopBack() (val any, ok bool, err error) {
	empty, err := d.Empty()
	if err != nil || empty {
		return nil, false, err
	}
	if err := d.checkWritable(); err != nil {
		return nil, false, err
	}

	e := d.endIt()
	cur, err := e.current()
	if err != nil {
		return nil, false, err
	}
	begin, err := e.begin()
	if err != nil {
		return nil, false, err
	}

	if cur != begin {
		cur -= d.elemSize
		if err := e.setCurrent(cur); err != nil {
			return nil, false, err
		}
		val, err = d.elem.Load(d.view, cur)
		if err != nil {
			return nil, false, err
		}
		return val, true, d.elem.Release(d.view, cur, d.alloc)
	}

	// the end iterator sits at the start of its subarray; retreat one
	d.freeSubarray(begin)
	slot, err := e.currentArray()
	if err != nil {
		return nil, false, err
	}
	if err := e.setSubarray(slot - d.view.Word()); err != nil {
		return nil, false, err
	}
	end, err := e.end()
	if err != nil {
		return nil, false, err
	}
	cur = end - d.elemSize
	if err := e.setCurrent(cur); err != nil {
		return nil, false, err
	}
	val, err = d.elem.Load(d.view, cur)
	if err != nil {
		return nil, false, err
	}
	return val, true, d.elem.Release(d.view, cur, d.alloc)
}

// PopFront removes and returns the first value. Heap content owned by the
// element is released. ok is false on an empty
// deque.
func (d *Deque) PopFront() (val any, ok bool, err error) {
	empty, err := d.Empty()
	if err != nil || empty {
		return nil, false, err
	}
	if err := d.checkWritable(); err != nil {
		return nil, false, err
	}

	b := d.beginIt()
	cur, err := b.current()
	if err != nil {
		return nil, false, err
	}
	end, err := b.end()
	if err != nil {
		return nil, false, err
	}

	if cur != end-d.elemSize {
		val, err = d.elem.Load(d.view, cur)
		if err != nil {
			return nil, false, err
		}
		if err := d.elem.Release(d.view, cur, d.alloc); err != nil {
			return nil, false, err
		}
		return val, true, b.setCurrent(cur + d.elemSize)
	}

	// last slot of the begin subarray; read, release, drop it, advance
	val, err = d.elem.Load(d.view, cur)
	if err != nil {
		return nil, false, err
	}
	if err := d.elem.Release(d.view, cur, d.alloc); err != nil {
		return nil, false, err
	}
	begin, err := b.begin()
	if err != nil {
		return nil, false, err
	}
	d.freeSubarray(begin)
	slot, err := b.currentArray()
	if err != nil {
		return nil, false, err
	}
	if err := b.setSubarray(slot + d.view.Word()); err != nil {
		return nil, false, err
	}
	newBegin, err := b.begin()
	if err != nil {
		return nil, false, err
	}
	return val, true, b.setCurrent(newBegin)
}

// elemAddr returns the address of element i.
func (d *Deque) elemAddr(i uint64) (uint64, error) {
	b := d.beginIt()
	cur, err := b.current()
	if err != nil {
		return 0, err
	}
	begin, err := b.begin()
	if err != nil {
		return 0, err
	}
	slot, err := b.currentArray()
	if err != nil {
		return 0, err
	}

	idx := (cur-begin)/d.elemSize + i
	slot += idx / d.subLen * d.view.Word()
	sub, err := d.view.ReadPtr(slot)
	if err != nil {
		return 0, err
	}
	if sub == 0 {
		return 0, errors.CorruptLayout(errors.PhaseRead, d.addr, "null subarray pointer")
	}
	return sub + idx%d.subLen*d.elemSize, nil
}

// AtIndex returns the value at index i; index 0 is the front.
func (d *Deque) AtIndex(i uint64) (any, error) {
	n, err := d.Len()
	if err != nil {
		return nil, err
	}
	if i >= n {
		return nil, errors.OutOfBounds(errors.PhaseRead, []string{"deque", "at"}, i, n)
	}
	addr, err := d.elemAddr(i)
	if err != nil {
		return nil, err
	}
	return d.elem.Load(d.view, addr)
}

// SetIndex stores val at index i. Heap content owned by the replaced
// element is released first.
func (d *Deque) SetIndex(i uint64, val any) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	n, err := d.Len()
	if err != nil {
		return err
	}
	if i >= n {
		return errors.OutOfBounds(errors.PhaseWrite, []string{"deque", "set"}, i, n)
	}
	addr, err := d.elemAddr(i)
	if err != nil {
		return err
	}
	if err := d.elem.Release(d.view, addr, d.alloc); err != nil {
		return err
	}
	return d.elem.Store(d.view, addr, val, d.alloc)
}

// Remove deletes the value at index i by shifting whichever end is closer
// and popping it. ok is false when i is out of bounds.
func (d *Deque) Remove(i uint64) (val any, ok bool, err error) {
	n, err := d.Len()
	if err != nil {
		return nil, false, err
	}
	if i >= n {
		return nil, false, nil
	}
	val, err = d.AtIndex(i)
	if err != nil {
		return nil, false, err
	}

	if i < n/2 {
		// shift the front half one slot toward the removal point
		for j := i; j > 0; j-- {
			v, err := d.AtIndex(j - 1)
			if err != nil {
				return nil, false, err
			}
			if err := d.SetIndex(j, v); err != nil {
				return nil, false, err
			}
		}
		if _, _, err := d.PopFront(); err != nil {
			return nil, false, err
		}
	} else {
		for j := i; j+1 < n; j++ {
			v, err := d.AtIndex(j + 1)
			if err != nil {
				return nil, false, err
			}
			if err := d.SetIndex(j, v); err != nil {
				return nil, false, err
			}
		}
		if _, _, err := d.PopBack(); err != nil {
			return nil, false, err
		}
	}
	return val, true, nil
}

// Front returns the first value. ok is false on an empty deque.
func (d *Deque) Front() (val any, ok bool, err error) {
	n, err := d.Len()
	if err != nil || n == 0 {
		return nil, false, err
	}
	val, err = d.AtIndex(0)
	return val, err == nil, err
}

// Back returns the last value. ok is false on an empty deque.
func (d *Deque) Back() (val any, ok bool, err error) {
	n, err := d.Len()
	if err != nil || n == 0 {
		return nil, false, err
	}
	val, err = d.AtIndex(n - 1)
	return val, err == nil, err
}

// Each calls fn for every value front to back until fn returns false.
func (d *Deque) Each(fn func(val any) bool) error {
	n, err := d.Len()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		v, err := d.AtIndex(i)
		if err != nil {
			return err
		}
		if !fn(v) {
			return nil
		}
	}
	return nil
}

// Elements loads every value front to back.
func (d *Deque) Elements() ([]any, error) {
	n, err := d.Len()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, n)
	err = d.Each(func(v any) bool {
		out = append(out, v)
		return true
	})
	return out, err
}

// Clear pops every element; exhausted subarrays are freed along the way.
func (d *Deque) Clear() error {
	n, err := d.Len()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if _, ok, err := d.PopFront(); err != nil {
			return err
		} else if !ok {
			break
		}
	}
	return nil
}

// Release frees every subarray and the pointer array, zeroing the control
// block. The handle is dead afterwards.
func (d *Deque) Release() error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	bSlot, err := d.beginIt().currentArray()
	if err != nil {
		return err
	}
	eSlot, err := d.endIt().currentArray()
	if err != nil {
		return err
	}
	for slot := bSlot; slot <= eSlot; slot += d.view.Word() {
		sub, err := d.view.ReadPtr(slot)
		if err != nil {
			return err
		}
		if sub != 0 {
			d.freeSubarray(sub)
		}
	}

	arr, err := d.view.ReadPtr(d.offs("ptr_array"))
	if err != nil {
		return err
	}
	size, err := d.view.Mem.ReadU32(d.offs("ptr_array_size"))
	if err != nil {
		return err
	}
	d.alloc.Free(arr, uint64(size)*d.view.Word(), d.view.Word())

	return d.view.Fill(d.addr, SizeOf(d.profile), 0)
}

// reallocPtrArray makes room for more subarray slots on the requested
// side, recentering inside the existing array when the other side has
// spare slots. The growth curve for a fresh array is old + max(old,
// needed) + 2.
func (d *Deque) reallocPtrArray(additional uint64, front bool) error {
	w := d.view.Word()
	arr, err := d.view.ReadPtr(d.offs("ptr_array"))
	if err != nil {
		return err
	}
	size64, err := d.view.Mem.ReadU32(d.offs("ptr_array_size"))
	if err != nil {
		return err
	}
	size := uint64(size64)

	b, e := d.beginIt(), d.endIt()
	bSlot, err := b.currentArray()
	if err != nil {
		return err
	}
	eSlot, err := e.currentArray()
	if err != nil {
		return err
	}

	unusedFront := (bSlot - arr) / w
	used := (eSlot-bSlot)/w + 1
	unusedBack := size - unusedFront - used
	start := unusedFront

	var newStart uint64
	switch {
	case !front && additional <= unusedFront:
		// heavy push_back traffic; grab extra slots while recentering
		if additional < (unusedFront+1)/2 {
			additional = (unusedFront + 1) / 2
		}
		newStart = unusedFront - additional
		if err := d.view.Copy(arr+newStart*w, arr+start*w, used*w); err != nil {
			return err
		}
	case front && additional <= unusedBack:
		if additional < unusedBack/2 {
			additional = unusedBack / 2
		}
		newStart = start + additional
		if err := d.view.Copy(arr+newStart*w, arr+start*w, used*w); err != nil {
			return err
		}
	default:
		grow := size
		if additional > grow {
			grow = additional
		}
		newSize := size + grow + 2
		newArr, err := d.alloc.Alloc(newSize*w, w)
		if err != nil {
			return errors.AllocationFailed(errors.PhaseGrow, newSize*w, w, err)
		}
		if err := d.view.Fill(newArr, newSize*w, 0); err != nil {
			return err
		}
		newStart = unusedFront
		if front {
			newStart += additional
		}
		if err := d.view.Copy(newArr+newStart*w, arr+start*w, used*w); err != nil {
			return err
		}
		d.alloc.Free(arr, size*w, w)
		if err := d.view.WritePtr(d.offs("ptr_array"), newArr); err != nil {
			return err
		}
		if err := d.view.Mem.WriteU32(d.offs("ptr_array_size"), uint32(newSize)); err != nil {
			return err
		}
		arr = newArr
	}

	if err := b.setSubarray(arr + newStart*w); err != nil {
		return err
	}
	return e.setSubarray(arr + (newStart+used-1)*w)
}

// Regions returns the memory the deque occupies: the control block, the
// pointer array, every live subarray, and heap payloads owned by the
// elements.
func (d *Deque) Regions() ([]eastl.Region, error) {
	n, err := d.Len()
	if err != nil {
		return nil, err
	}
	arr, err := d.view.ReadPtr(d.offs("ptr_array"))
	if err != nil {
		return nil, err
	}
	arrSize, err := d.view.Mem.ReadU32(d.offs("ptr_array_size"))
	if err != nil {
		return nil, err
	}
	bArr, err := d.beginIt().currentArray()
	if err != nil {
		return nil, err
	}
	eArr, err := d.endIt().currentArray()
	if err != nil {
		return nil, err
	}

	out := []eastl.Region{
		{Addr: d.addr, Size: SizeOf(d.profile)},
		{Addr: arr, Size: uint64(arrSize) * d.view.Word()},
	}
	for slot := bArr; slot <= eArr; slot += d.view.Word() {
		sub, err := d.view.ReadPtr(slot)
		if err != nil {
			return nil, err
		}
		if sub == 0 {
			return nil, errors.CorruptLayout(errors.PhaseExport, d.addr,
				"null subarray slot %#x", slot)
		}
		out = append(out, eastl.Region{Addr: sub, Size: d.subLen * d.elemSize})
	}

	if _, ok := d.elem.(abi.RegionLister); ok {
		for i := uint64(0); i < n; i++ {
			addr, err := d.elemAddr(i)
			if err != nil {
				return nil, err
			}
			more, err := abi.TypeRegions(d.elem, d.view, addr)
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
		}
	}
	return out, nil
}
