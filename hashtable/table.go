// Package hashtable implements the chained hash table engine behind the
// hash map and hash set containers.
//
// The control block holds a one-byte extractor pad, the bucket array
// pointer, bucket and element counts, the rehash policy constants and the
// allocator word. An empty table points at a two-slot array {null, ~0} with
// a bucket count of one. Real bucket arrays carry one extra slot whose ~0
// sentinel terminates iteration. Nodes are {key, value, next} and insertion
// links at the head of the chain.
package hashtable

import (
	"math"

	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/hashing"
	"github.com/memscape/eastl/mem"
)

func layout(p *abi.Profile) abi.Info {
	return abi.Layout(abi.FamilyHashTable, p, func(p *abi.Profile) []abi.Field {
		return []abi.Field{
			abi.U8("pad"),
			abi.Ptr(p, "bucket_array"),
			abi.U32("bucket_count"),
			abi.U32("element_count"),
			abi.F32("max_load_factor"),
			abi.F32("growth_factor"),
			abi.U32("next_resize"),
			abi.Ptr(p, "allocator"),
		}
	})
}

// SizeOf returns the size of the hash table control block.
func SizeOf(p *abi.Profile) uint64 {
	return layout(p).Size
}

// AlignOf returns the alignment of the hash table control block.
func AlignOf(p *abi.Profile) uint64 {
	return layout(p).Align
}

// NodeSizeOf returns the size of one chain node for the given key and
// value types. Sets pass a nil value type.
func NodeSizeOf(p *abi.Profile, key, value abi.Type) uint64 {
	info, _ := nodeLayout(p, key, value)
	return info.Size
}

func nodeLayout(p *abi.Profile, key, value abi.Type) (abi.Info, bool) {
	fields := []abi.Field{
		{Name: "key", Size: key.Size(p), Align: key.Align(p)},
	}
	hasValue := value != nil
	if hasValue {
		fields = append(fields, abi.Field{Name: "val", Size: value.Size(p), Align: value.Align(p)})
	}
	fields = append(fields, abi.Ptr(p, "next"))
	return abi.Struct(fields...), hasValue
}

// Table is a handle over a hash table control block. Keys hash with the
// default policy: FNV-1 for strings, identity for integral values.
type Table struct {
	view    *mem.View
	profile *abi.Profile
	addr    uint64
	key     abi.Type
	value   abi.Type
	alloc   eastl.Allocator

	node abi.Info

	// ownedEmpty marks the two-slot empty array as allocated by this
	// handle; foreign images may share a static one we must not free.
	ownedEmpty bool
}

func sentinel(view *mem.View) uint64 {
	if view.PtrSize == 4 {
		return 0xffffffff
	}
	return ^uint64(0)
}

// Initialize writes an empty hash table at addr. The empty bucket array is
// allocated per table so the image stays self-contained.
func Initialize(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Table, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	t := newTable(view, profile, addr, key, value, alloc)
	info := layout(profile)

	empty, err := alloc.Alloc(2*view.Word(), view.Word())
	if err != nil {
		return nil, errors.AllocationFailed(errors.PhaseInit, 2*view.Word(), view.Word(), err)
	}
	if err := view.WritePtr(empty, 0); err != nil {
		return nil, err
	}
	if err := view.WritePtr(empty+view.Word(), sentinel(view)); err != nil {
		return nil, err
	}

	if err := view.Mem.WriteU8(addr+info.Offset("pad"), 0); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("bucket_array"), empty); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(addr+info.Offset("bucket_count"), 1); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(addr+info.Offset("element_count"), 0); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(addr+info.Offset("max_load_factor"), math.Float32bits(profile.MaxLoadFactor)); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(addr+info.Offset("growth_factor"), math.Float32bits(profile.GrowthFactor)); err != nil {
		return nil, err
	}
	if err := view.Mem.WriteU32(addr+info.Offset("next_resize"), 0); err != nil {
		return nil, err
	}
	if err := view.WritePtr(addr+info.Offset("allocator"), 0); err != nil {
		return nil, err
	}

	t.ownedEmpty = true
	return t, nil
}

// At interprets an existing hash table control block at addr.
func At(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Table, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	t := newTable(view, profile, addr, key, value, alloc)

	buckets, err := view.ReadPtr(addr + layout(profile).Offset("bucket_array"))
	if err != nil {
		return nil, err
	}
	if buckets == 0 {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "null bucket array")
	}
	count, err := t.BucketCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "bucket count zero")
	}
	return t, nil
}

func newTable(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) *Table {
	node, _ := nodeLayout(profile, key, value)
	return &Table{
		view:    view,
		profile: profile,
		addr:    addr,
		key:     key,
		value:   value,
		alloc:   alloc,
		node:    node,
	}
}

// Addr returns the control block address.
func (t *Table) Addr() uint64 {
	return t.addr
}

func (t *Table) offs(name string) uint64 {
	return t.addr + layout(t.profile).Offset(name)
}

// Len returns the element count.
func (t *Table) Len() (uint64, error) {
	n, err := t.view.Mem.ReadU32(t.offs("element_count"))
	return uint64(n), err
}

// Empty reports whether the table holds no elements.
func (t *Table) Empty() (bool, error) {
	n, err := t.Len()
	return n == 0, err
}

// BucketCount returns the bucket count; an empty table reports one.
func (t *Table) BucketCount() (uint32, error) {
	return t.view.Mem.ReadU32(t.offs("bucket_count"))
}

func (t *Table) policy() (hashing.PrimeRehashPolicy, error) {
	var p hashing.PrimeRehashPolicy
	raw, err := t.view.Mem.ReadU32(t.offs("max_load_factor"))
	if err != nil {
		return p, err
	}
	p.MaxLoadFactor = math.Float32frombits(raw)
	raw, err = t.view.Mem.ReadU32(t.offs("growth_factor"))
	if err != nil {
		return p, err
	}
	p.GrowthFactor = math.Float32frombits(raw)
	p.NextResize, err = t.view.Mem.ReadU32(t.offs("next_resize"))
	return p, err
}

func (t *Table) hashKey(k any) (uint64, error) {
	h, ok := hashing.Default(k)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseWrite, []string{"hash_table", "key"}, t.key.Name(), "unhashable value")
	}
	// a 32-bit native build hashes through a 32-bit word
	if t.view.PtrSize == 4 {
		h = uint64(uint32(h))
	}
	return h, nil
}

// bucketSlot returns the address of the bucket array slot for key k.
func (t *Table) bucketSlot(k any, bucketCount uint32) (uint64, error) {
	h, err := t.hashKey(k)
	if err != nil {
		return 0, err
	}
	buckets, err := t.view.ReadPtr(t.offs("bucket_array"))
	if err != nil {
		return 0, err
	}
	return buckets + (h%uint64(bucketCount))*t.view.Word(), nil
}

// findNode walks the chain rooted at slot for a node whose key equals k.
// It returns the node address and the address of the pointer that links it
// (the slot itself or a predecessor's next field).
func (t *Table) findNode(slot uint64, k any) (nodeAddr, linkAddr uint64, err error) {
	total, err := t.Len()
	if err != nil {
		return 0, 0, err
	}
	link := slot
	steps := uint64(0)
	for {
		node, err := t.view.ReadPtr(link)
		if err != nil {
			return 0, 0, err
		}
		if node == 0 {
			return 0, 0, nil
		}
		if steps >= total {
			return 0, 0, errors.CorruptLayout(errors.PhaseTraverse, slot,
				"bucket chain exceeds element count %d", total)
		}
		got, err := t.key.Load(t.view, node+t.node.Offset("key"))
		if err != nil {
			return 0, 0, err
		}
		if got == k {
			return node, link, nil
		}
		link = node + t.node.Offset("next")
		steps++
	}
}

// Get returns the value stored under k. For sets the key itself is
// returned. ok is false when the key is absent.
func (t *Table) Get(k any) (val any, ok bool, err error) {
	count, err := t.BucketCount()
	if err != nil {
		return nil, false, err
	}
	slot, err := t.bucketSlot(k, count)
	if err != nil {
		return nil, false, err
	}
	node, _, err := t.findNode(slot, k)
	if err != nil || node == 0 {
		return nil, false, err
	}
	if t.value == nil {
		return k, true, nil
	}
	val, err = t.value.Load(t.view, node+t.node.Offset("val"))
	return val, err == nil, err
}

// Contains reports whether k is present.
func (t *Table) Contains(k any) (bool, error) {
	_, ok, err := t.Get(k)
	return ok, err
}

// Insert stores v under k, replacing an existing value. replaced reports
// whether the key was already present.
func (t *Table) Insert(k, v any) (replaced bool, err error) {
	count, err := t.BucketCount()
	if err != nil {
		return false, err
	}
	slot, err := t.bucketSlot(k, count)
	if err != nil {
		return false, err
	}
	node, _, err := t.findNode(slot, k)
	if err != nil {
		return false, err
	}
	if node != 0 {
		if t.value == nil {
			return true, nil
		}
		if err := t.value.Release(t.view, node+t.node.Offset("val"), t.alloc); err != nil {
			return false, err
		}
		return true, t.value.Store(t.view, node+t.node.Offset("val"), v, t.alloc)
	}
	return false, t.insertNode(k, v)
}

// InsertMulti stores v under k without checking for duplicates; repeated
// keys accumulate in chain order.
func (t *Table) InsertMulti(k, v any) error {
	return t.insertNode(k, v)
}

func (t *Table) insertNode(k, v any) error {
	if t.alloc == nil {
		return errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(t.addr).
			Detail("read-only handle cannot insert").
			Build()
	}
	count, err := t.BucketCount()
	if err != nil {
		return err
	}
	elems, err := t.Len()
	if err != nil {
		return err
	}
	policy, err := t.policy()
	if err != nil {
		return err
	}

	if newCount, need := policy.RehashRequired(count, uint32(elems), 1); need {
		if err := t.rehash(count, newCount); err != nil {
			return err
		}
		count = newCount
	}
	// the policy caches its threshold even when no rehash happens
	if err := t.view.Mem.WriteU32(t.offs("next_resize"), policy.NextResize); err != nil {
		return err
	}

	node, err := t.alloc.Alloc(t.node.Size, t.node.Align)
	if err != nil {
		return errors.AllocationFailed(errors.PhaseWrite, t.node.Size, t.node.Align, err)
	}
	if err := t.key.Store(t.view, node+t.node.Offset("key"), k, t.alloc); err != nil {
		t.alloc.Free(node, t.node.Size, t.node.Align)
		return err
	}
	if t.value != nil {
		if err := t.value.Store(t.view, node+t.node.Offset("val"), v, t.alloc); err != nil {
			t.alloc.Free(node, t.node.Size, t.node.Align)
			return err
		}
	}

	slot, err := t.bucketSlot(k, count)
	if err != nil {
		return err
	}
	head, err := t.view.ReadPtr(slot)
	if err != nil {
		return err
	}
	if err := t.view.WritePtr(node+t.node.Offset("next"), head); err != nil {
		return err
	}
	if err := t.view.WritePtr(slot, node); err != nil {
		return err
	}
	return t.view.Mem.WriteU32(t.offs("element_count"), uint32(elems)+1)
}

// rehash moves every node into a freshly allocated bucket array of
// newCount+1 slots, relinking at the head of each new chain. The old array
// is released afterwards, so a failed allocation leaves the table intact.
func (t *Table) rehash(oldCount, newCount uint32) error {
	w := t.view.Word()
	newArr, err := t.alloc.Alloc((uint64(newCount)+1)*w, w)
	if err != nil {
		return errors.New(errors.PhaseRehash, errors.KindAllocationFailure).
			Addr(t.addr).
			Detail("bucket array of %d slots", newCount+1).
			Cause(err).
			Build()
	}
	if err := t.view.Fill(newArr, uint64(newCount)*w, 0); err != nil {
		return err
	}
	if err := t.view.WritePtr(newArr+uint64(newCount)*w, sentinel(t.view)); err != nil {
		return err
	}

	oldArr, err := t.view.ReadPtr(t.offs("bucket_array"))
	if err != nil {
		return err
	}
	total, err := t.Len()
	if err != nil {
		return err
	}

	moved := uint64(0)
	for i := uint32(0); i < oldCount; i++ {
		node, err := t.view.ReadPtr(oldArr + uint64(i)*w)
		if err != nil {
			return err
		}
		for node != 0 {
			if moved >= total {
				return errors.CorruptLayout(errors.PhaseRehash, t.addr,
					"chains exceed element count %d", total)
			}
			next, err := t.view.ReadPtr(node + t.node.Offset("next"))
			if err != nil {
				return err
			}
			k, err := t.key.Load(t.view, node+t.node.Offset("key"))
			if err != nil {
				return err
			}
			h, err := t.hashKey(k)
			if err != nil {
				return err
			}
			newSlot := newArr + (h%uint64(newCount))*w
			head, err := t.view.ReadPtr(newSlot)
			if err != nil {
				return err
			}
			if err := t.view.WritePtr(node+t.node.Offset("next"), head); err != nil {
				return err
			}
			if err := t.view.WritePtr(newSlot, node); err != nil {
				return err
			}
			node = next
			moved++
		}
	}

	if err := t.view.WritePtr(t.offs("bucket_array"), newArr); err != nil {
		return err
	}
	if err := t.view.Mem.WriteU32(t.offs("bucket_count"), newCount); err != nil {
		return err
	}

	if oldCount == 1 {
		if t.ownedEmpty {
			t.alloc.Free(oldArr, 2*w, w)
			t.ownedEmpty = false
		}
	} else {
		t.alloc.Free(oldArr, (uint64(oldCount)+1)*w, w)
	}
	return nil
}

// Remove deletes the node stored under k and returns its value (the key
// for sets). ok is false when the key is absent.
func (t *Table) Remove(k any) (val any, ok bool, err error) {
	count, err := t.BucketCount()
	if err != nil {
		return nil, false, err
	}
	slot, err := t.bucketSlot(k, count)
	if err != nil {
		return nil, false, err
	}
	node, link, err := t.findNode(slot, k)
	if err != nil || node == 0 {
		return nil, false, err
	}

	if t.value != nil {
		val, err = t.value.Load(t.view, node+t.node.Offset("val"))
		if err != nil {
			return nil, false, err
		}
	} else {
		val = k
	}

	next, err := t.view.ReadPtr(node + t.node.Offset("next"))
	if err != nil {
		return nil, false, err
	}
	if err := t.view.WritePtr(link, next); err != nil {
		return nil, false, err
	}

	if err := t.releaseNode(node); err != nil {
		return nil, false, err
	}
	elems, err := t.Len()
	if err != nil {
		return nil, false, err
	}
	if err := t.view.Mem.WriteU32(t.offs("element_count"), uint32(elems)-1); err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (t *Table) releaseNode(node uint64) error {
	if err := t.key.Release(t.view, node+t.node.Offset("key"), t.alloc); err != nil {
		return err
	}
	if t.value != nil {
		if err := t.value.Release(t.view, node+t.node.Offset("val"), t.alloc); err != nil {
			return err
		}
	}
	if t.alloc != nil {
		t.alloc.Free(node, t.node.Size, t.node.Align)
	}
	return nil
}

// Clear removes every element, keeping the current bucket array.
func (t *Table) Clear() error {
	count, err := t.BucketCount()
	if err != nil {
		return err
	}
	if count > 1 {
		buckets, err := t.view.ReadPtr(t.offs("bucket_array"))
		if err != nil {
			return err
		}
		total, err := t.Len()
		if err != nil {
			return err
		}
		freed := uint64(0)
		w := t.view.Word()
		for i := uint32(0); i < count; i++ {
			slot := buckets + uint64(i)*w
			node, err := t.view.ReadPtr(slot)
			if err != nil {
				return err
			}
			for node != 0 {
				if freed >= total {
					return errors.CorruptLayout(errors.PhaseWrite, t.addr,
						"chains exceed element count %d", total)
				}
				next, err := t.view.ReadPtr(node + t.node.Offset("next"))
				if err != nil {
					return err
				}
				if err := t.releaseNode(node); err != nil {
					return err
				}
				node = next
				freed++
			}
			if err := t.view.WritePtr(slot, 0); err != nil {
				return err
			}
		}
	}
	return t.view.Mem.WriteU32(t.offs("element_count"), 0)
}

// Each calls fn for every element in bucket-then-chain order until fn
// returns false. Iteration tolerates empty buckets and is bounded by the
// recorded element count.
func (t *Table) Each(fn func(k, v any) bool) error {
	count, err := t.BucketCount()
	if err != nil {
		return err
	}
	buckets, err := t.view.ReadPtr(t.offs("bucket_array"))
	if err != nil {
		return err
	}
	total, err := t.Len()
	if err != nil {
		return err
	}

	seen := uint64(0)
	w := t.view.Word()
	for i := uint32(0); i < count; i++ {
		node, err := t.view.ReadPtr(buckets + uint64(i)*w)
		if err != nil {
			return err
		}
		for node != 0 {
			if seen >= total {
				return errors.CorruptLayout(errors.PhaseTraverse, t.addr,
					"chains exceed element count %d", total)
			}
			k, err := t.key.Load(t.view, node+t.node.Offset("key"))
			if err != nil {
				return err
			}
			var v any
			if t.value != nil {
				if v, err = t.value.Load(t.view, node+t.node.Offset("val")); err != nil {
					return err
				}
			}
			if !fn(k, v) {
				return nil
			}
			seen++
			if node, err = t.view.ReadPtr(node + t.node.Offset("next")); err != nil {
				return err
			}
		}
	}
	return nil
}

// Regions returns the memory the table occupies: the control block, the
// bucket array with its sentinel slot, every chain node, and heap payloads
// owned by keys or values. Chain walks are bounded by the element count.
func (t *Table) Regions() ([]eastl.Region, error) {
	count, err := t.BucketCount()
	if err != nil {
		return nil, err
	}
	buckets, err := t.view.ReadPtr(t.offs("bucket_array"))
	if err != nil {
		return nil, err
	}
	total, err := t.Len()
	if err != nil {
		return nil, err
	}

	w := t.view.Word()
	out := []eastl.Region{
		{Addr: t.addr, Size: SizeOf(t.profile)},
		{Addr: buckets, Size: (uint64(count) + 1) * w},
	}

	seen := uint64(0)
	for i := uint32(0); i < count; i++ {
		node, err := t.view.ReadPtr(buckets + uint64(i)*w)
		if err != nil {
			return nil, err
		}
		for node != 0 {
			if seen >= total {
				return nil, errors.CorruptLayout(errors.PhaseExport, t.addr,
					"chains exceed element count %d", total)
			}
			out = append(out, eastl.Region{Addr: node, Size: t.node.Size})
			more, err := abi.TypeRegions(t.key, t.view, node+t.node.Offset("key"))
			if err != nil {
				return nil, err
			}
			out = append(out, more...)
			if t.value != nil {
				if more, err = abi.TypeRegions(t.value, t.view, node+t.node.Offset("val")); err != nil {
					return nil, err
				}
				out = append(out, more...)
			}
			seen++
			if node, err = t.view.ReadPtr(node + t.node.Offset("next")); err != nil {
				return nil, err
			}
		}
	}
	if seen != total {
		return nil, errors.CorruptLayout(errors.PhaseExport, t.addr,
			"chains hold %d nodes, count records %d", seen, total)
	}
	return out, nil
}
