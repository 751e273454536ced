// Package rbtree implements the red-black tree behind the ordered map and
// set containers.
//
// The control block is six pointer words: a one-word comparator slot,
// begin (lowest node), end (highest node), parent (the root), the size and
// the allocator word. Nodes are {left, right, parent, key, value} with the
// node color packed into bit 0 of the parent pointer; red is 1.
package rbtree

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/compare"
	"github.com/memscape/eastl/errors"
	"github.com/memscape/eastl/mem"
)

func layout(p *abi.Profile) abi.Info {
	return abi.Layout(abi.FamilyRBTree, p, func(p *abi.Profile) []abi.Field {
		return []abi.Field{
			abi.Ptr(p, "compare"),
			abi.Ptr(p, "begin"),
			abi.Ptr(p, "end"),
			abi.Ptr(p, "parent"),
			abi.Ptr(p, "size"),
			abi.Ptr(p, "allocator"),
		}
	})
}

// SizeOf returns the size of the tree control block.
func SizeOf(p *abi.Profile) uint64 {
	return layout(p).Size
}

// AlignOf returns the alignment of the tree control block.
func AlignOf(p *abi.Profile) uint64 {
	return p.Word()
}

// NodeSizeOf returns the size of one tree node for the given key and value
// types. Sets pass a nil value type.
func NodeSizeOf(p *abi.Profile, key, value abi.Type) uint64 {
	return nodeLayout(p, key, value).Size
}

// NodeAlignOf returns the alignment of one tree node.
func NodeAlignOf(p *abi.Profile, key, value abi.Type) uint64 {
	return nodeLayout(p, key, value).Align
}

func nodeLayout(p *abi.Profile, key, value abi.Type) abi.Info {
	fields := []abi.Field{
		abi.Ptr(p, "left"),
		abi.Ptr(p, "right"),
		abi.Ptr(p, "parent"),
		{Name: "key", Size: key.Size(p), Align: key.Align(p)},
	}
	if value != nil {
		fields = append(fields, abi.Field{Name: "val", Size: value.Size(p), Align: value.Align(p)})
	}
	return abi.Struct(fields...)
}

// Tree is a handle over a red-black tree control block. Keys order with
// compare.Less.
type Tree struct {
	view    *mem.View
	profile *abi.Profile
	addr    uint64
	key     abi.Type
	value   abi.Type
	alloc   eastl.Allocator

	node abi.Info
}

// Initialize writes an empty tree at addr: null begin, end and root.
func Initialize(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Tree, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	t := newTree(view, profile, addr, key, value, alloc)
	for _, f := range []string{"compare", "begin", "end", "parent", "size", "allocator"} {
		if err := view.WritePtr(t.offs(f), 0); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// At interprets an existing tree control block at addr.
func At(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) (*Tree, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	t := newTree(view, profile, addr, key, value, alloc)
	size, err := t.Len()
	if err != nil {
		return nil, err
	}
	root, err := view.ReadPtr(t.offs("parent"))
	if err != nil {
		return nil, err
	}
	if size == 0 && root != 0 {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "empty tree with live root")
	}
	if size > 0 && root == 0 {
		return nil, errors.CorruptLayout(errors.PhaseRead, addr, "size %d with null root", size)
	}
	return t, nil
}

func newTree(view *mem.View, profile *abi.Profile, addr uint64, key, value abi.Type, alloc eastl.Allocator) *Tree {
	return &Tree{
		view:    view,
		profile: profile,
		addr:    addr,
		key:     key,
		value:   value,
		alloc:   alloc,
		node:    nodeLayout(profile, key, value),
	}
}

// Addr returns the control block address.
func (t *Tree) Addr() uint64 {
	return t.addr
}

func (t *Tree) offs(name string) uint64 {
	return t.addr + layout(t.profile).Offset(name)
}

// Len returns the element count.
func (t *Tree) Len() (uint64, error) {
	return t.view.ReadPtr(t.offs("size"))
}

// Empty reports whether the tree holds no elements.
func (t *Tree) Empty() (bool, error) {
	n, err := t.Len()
	return n == 0, err
}

// node field access; the color rides in bit 0 of the parent word.

func (t *Tree) left(n uint64) (uint64, error) {
	return t.view.ReadPtr(n + t.node.Offset("left"))
}

func (t *Tree) right(n uint64) (uint64, error) {
	return t.view.ReadPtr(n + t.node.Offset("right"))
}

func (t *Tree) setLeft(n, v uint64) error {
	return t.view.WritePtr(n+t.node.Offset("left"), v)
}

func (t *Tree) setRight(n, v uint64) error {
	return t.view.WritePtr(n+t.node.Offset("right"), v)
}

func (t *Tree) parentWord(n uint64) (uint64, error) {
	return t.view.ReadPtr(n + t.node.Offset("parent"))
}

func (t *Tree) parentOf(n uint64) (uint64, error) {
	w, err := t.parentWord(n)
	return w &^ 1, err
}

func (t *Tree) isRed(n uint64) (bool, error) {
	if n == 0 {
		// null leaves are black
		return false, nil
	}
	w, err := t.parentWord(n)
	return w&1 == 1, err
}

func (t *Tree) setParent(n, p uint64) error {
	w, err := t.parentWord(n)
	if err != nil {
		return err
	}
	return t.view.WritePtr(n+t.node.Offset("parent"), p|(w&1))
}

func (t *Tree) setRed(n uint64, red bool) error {
	w, err := t.parentWord(n)
	if err != nil {
		return err
	}
	w &^= 1
	if red {
		w |= 1
	}
	return t.view.WritePtr(n+t.node.Offset("parent"), w)
}

func (t *Tree) loadKey(n uint64) (any, error) {
	return t.key.Load(t.view, n+t.node.Offset("key"))
}

// findNode descends from the root; the walk is bounded by the recorded
// size, so a cyclic tree fails instead of spinning.
func (t *Tree) findNode(k any) (uint64, error) {
	size, err := t.Len()
	if err != nil {
		return 0, err
	}
	node, err := t.view.ReadPtr(t.offs("parent"))
	if err != nil {
		return 0, err
	}
	steps := uint64(0)
	for node != 0 {
		if steps >= size {
			return 0, errors.CorruptLayout(errors.PhaseTraverse, t.addr,
				"descent exceeds size %d", size)
		}
		nk, err := t.loadKey(node)
		if err != nil {
			return 0, err
		}
		lt, err := compare.Less(k, nk)
		if err != nil {
			return 0, err
		}
		if lt {
			node, err = t.left(node)
		} else {
			gt, gerr := compare.Less(nk, k)
			if gerr != nil {
				return 0, gerr
			}
			if !gt {
				return node, nil
			}
			node, err = t.right(node)
		}
		if err != nil {
			return 0, err
		}
		steps++
	}
	return 0, nil
}

// Get returns the value stored under k; the key itself for sets. ok is
// false when the key is absent.
func (t *Tree) Get(k any) (val any, ok bool, err error) {
	node, err := t.findNode(k)
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
func (t *Tree) Contains(k any) (bool, error) {
	_, ok, err := t.Get(k)
	return ok, err
}

// Min returns the lowest key. ok is false on an empty tree.
func (t *Tree) Min() (k any, ok bool, err error) {
	return t.edgeKey("begin")
}

// Max returns the highest key. ok is false on an empty tree.
func (t *Tree) Max() (k any, ok bool, err error) {
	return t.edgeKey("end")
}

func (t *Tree) edgeKey(field string) (any, bool, error) {
	node, err := t.view.ReadPtr(t.offs(field))
	if err != nil || node == 0 {
		return nil, false, err
	}
	k, err := t.loadKey(node)
	return k, err == nil, err
}

// Insert stores v under k, replacing an existing value. New nodes enter
// red and the tree rebalances with recoloring and rotations.
func (t *Tree) Insert(k, v any) (replaced bool, err error) {
	if t.alloc == nil {
		return false, errors.New(errors.PhaseWrite, errors.KindAllocationFailure).
			Addr(t.addr).
			Detail("read-only handle cannot insert").
			Build()
	}
	size, err := t.Len()
	if err != nil {
		return false, err
	}

	// descend to the insertion parent, replacing on an equal key
	parent := uint64(0)
	node, err := t.view.ReadPtr(t.offs("parent"))
	if err != nil {
		return false, err
	}
	goLeft := false
	steps := uint64(0)
	for node != 0 {
		if steps >= size {
			return false, errors.CorruptLayout(errors.PhaseTraverse, t.addr,
				"descent exceeds size %d", size)
		}
		nk, err := t.loadKey(node)
		if err != nil {
			return false, err
		}
		lt, err := compare.Less(k, nk)
		if err != nil {
			return false, err
		}
		if !lt {
			gt, err := compare.Less(nk, k)
			if err != nil {
				return false, err
			}
			if !gt {
				if t.value == nil {
					return true, nil
				}
				if err := t.value.Release(t.view, node+t.node.Offset("val"), t.alloc); err != nil {
					return false, err
				}
				return true, t.value.Store(t.view, node+t.node.Offset("val"), v, t.alloc)
			}
		}
		parent = node
		goLeft = lt
		if lt {
			node, err = t.left(node)
		} else {
			node, err = t.right(node)
		}
		if err != nil {
			return false, err
		}
		steps++
	}

	fresh, err := t.alloc.Alloc(t.node.Size, t.node.Align)
	if err != nil {
		return false, errors.AllocationFailed(errors.PhaseWrite, t.node.Size, t.node.Align, err)
	}
	if err := t.setLeft(fresh, 0); err != nil {
		return false, err
	}
	if err := t.setRight(fresh, 0); err != nil {
		return false, err
	}
	// parent pointer with the red bit
	if err := t.view.WritePtr(fresh+t.node.Offset("parent"), parent|1); err != nil {
		return false, err
	}
	if err := t.key.Store(t.view, fresh+t.node.Offset("key"), k, t.alloc); err != nil {
		t.alloc.Free(fresh, t.node.Size, t.node.Align)
		return false, err
	}
	if t.value != nil {
		if err := t.value.Store(t.view, fresh+t.node.Offset("val"), v, t.alloc); err != nil {
			t.alloc.Free(fresh, t.node.Size, t.node.Align)
			return false, err
		}
	}

	if parent == 0 {
		if err := t.view.WritePtr(t.offs("parent"), fresh); err != nil {
			return false, err
		}
	} else if goLeft {
		if err := t.setLeft(parent, fresh); err != nil {
			return false, err
		}
	} else {
		if err := t.setRight(parent, fresh); err != nil {
			return false, err
		}
	}

	if err := t.updateEdges(fresh, k, size); err != nil {
		return false, err
	}
	if err := t.insertFixup(fresh); err != nil {
		return false, err
	}
	return false, t.view.WritePtr(t.offs("size"), size+1)
}

// updateEdges keeps begin and end pointing at the lowest and highest node.
func (t *Tree) updateEdges(fresh uint64, k any, oldSize uint64) error {
	if oldSize == 0 {
		if err := t.view.WritePtr(t.offs("begin"), fresh); err != nil {
			return err
		}
		return t.view.WritePtr(t.offs("end"), fresh)
	}
	lo, ok, err := t.Min()
	if err != nil || !ok {
		return err
	}
	if lt, err := compare.Less(k, lo); err != nil {
		return err
	} else if lt {
		if err := t.view.WritePtr(t.offs("begin"), fresh); err != nil {
			return err
		}
	}
	hi, ok, err := t.Max()
	if err != nil || !ok {
		return err
	}
	if gt, err := compare.Less(hi, k); err != nil {
		return err
	} else if gt {
		return t.view.WritePtr(t.offs("end"), fresh)
	}
	return nil
}

func (t *Tree) rotateLeft(x uint64) error {
	y, err := t.right(x)
	if err != nil {
		return err
	}
	yl, err := t.left(y)
	if err != nil {
		return err
	}
	if err := t.setRight(x, yl); err != nil {
		return err
	}
	if yl != 0 {
		if err := t.setParent(yl, x); err != nil {
			return err
		}
	}
	return t.finishRotate(x, y, true)
}

func (t *Tree) rotateRight(x uint64) error {
	y, err := t.left(x)
	if err != nil {
		return err
	}
	yr, err := t.right(y)
	if err != nil {
		return err
	}
	if err := t.setLeft(x, yr); err != nil {
		return err
	}
	if yr != 0 {
		if err := t.setParent(yr, x); err != nil {
			return err
		}
	}
	return t.finishRotate(x, y, false)
}

// finishRotate reseats y in x's place and hangs x under y on the vacated
// side: the left for a left rotation, the right otherwise.
func (t *Tree) finishRotate(x, y uint64, leftRotation bool) error {
	xp, err := t.parentOf(x)
	if err != nil {
		return err
	}
	if err := t.setParent(y, xp); err != nil {
		return err
	}
	if xp == 0 {
		if err := t.view.WritePtr(t.offs("parent"), y); err != nil {
			return err
		}
	} else {
		pl, err := t.left(xp)
		if err != nil {
			return err
		}
		if pl == x {
			if err := t.setLeft(xp, y); err != nil {
				return err
			}
		} else {
			if err := t.setRight(xp, y); err != nil {
				return err
			}
		}
	}
	if leftRotation {
		if err := t.setLeft(y, x); err != nil {
			return err
		}
	} else {
		if err := t.setRight(y, x); err != nil {
			return err
		}
	}
	return t.setParent(x, y)
}

func (t *Tree) insertFixup(z uint64) error {
	for {
		zp, err := t.parentOf(z)
		if err != nil {
			return err
		}
		red, err := t.isRed(zp)
		if err != nil {
			return err
		}
		if zp == 0 || !red {
			break
		}
		gp, err := t.parentOf(zp)
		if err != nil {
			return err
		}
		gpl, err := t.left(gp)
		if err != nil {
			return err
		}
		if zp == gpl {
			uncle, err := t.right(gp)
			if err != nil {
				return err
			}
			uncleRed, err := t.isRed(uncle)
			if err != nil {
				return err
			}
			if uncleRed {
				if err := t.recolorUp(zp, uncle, gp); err != nil {
					return err
				}
				z = gp
				continue
			}
			zpr, err := t.right(zp)
			if err != nil {
				return err
			}
			if z == zpr {
				z = zp
				if err := t.rotateLeft(z); err != nil {
					return err
				}
				if zp, err = t.parentOf(z); err != nil {
					return err
				}
			}
			if err := t.setRed(zp, false); err != nil {
				return err
			}
			if err := t.setRed(gp, true); err != nil {
				return err
			}
			if err := t.rotateRight(gp); err != nil {
				return err
			}
		} else {
			uncle := gpl
			uncleRed, err := t.isRed(uncle)
			if err != nil {
				return err
			}
			if uncleRed {
				if err := t.recolorUp(zp, uncle, gp); err != nil {
					return err
				}
				z = gp
				continue
			}
			zpl, err := t.left(zp)
			if err != nil {
				return err
			}
			if z == zpl {
				z = zp
				if err := t.rotateRight(z); err != nil {
					return err
				}
				if zp, err = t.parentOf(z); err != nil {
					return err
				}
			}
			if err := t.setRed(zp, false); err != nil {
				return err
			}
			if err := t.setRed(gp, true); err != nil {
				return err
			}
			if err := t.rotateLeft(gp); err != nil {
				return err
			}
		}
	}
	root, err := t.view.ReadPtr(t.offs("parent"))
	if err != nil {
		return err
	}
	return t.setRed(root, false)
}

func (t *Tree) recolorUp(parent, uncle, grandparent uint64) error {
	if err := t.setRed(parent, false); err != nil {
		return err
	}
	if err := t.setRed(uncle, false); err != nil {
		return err
	}
	return t.setRed(grandparent, true)
}

// Each calls fn for every pair in key order until fn returns false.
func (t *Tree) Each(fn func(k, v any) bool) error {
	size, err := t.Len()
	if err != nil {
		return err
	}
	root, err := t.view.ReadPtr(t.offs("parent"))
	if err != nil {
		return err
	}

	// iterative in-order walk; the stack and visit count are bounded by
	// the recorded size
	var stack []uint64
	node := root
	seen := uint64(0)
	for node != 0 || len(stack) > 0 {
		for node != 0 {
			if uint64(len(stack)) > size {
				return errors.CorruptLayout(errors.PhaseTraverse, t.addr,
					"descent exceeds size %d", size)
			}
			stack = append(stack, node)
			if node, err = t.left(node); err != nil {
				return err
			}
		}
		node = stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen >= size {
			return errors.CorruptLayout(errors.PhaseTraverse, t.addr,
				"walk exceeds size %d", size)
		}
		k, err := t.loadKey(node)
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
		if node, err = t.right(node); err != nil {
			return err
		}
	}
	return nil
}

// Keys loads every key in order.
func (t *Tree) Keys() ([]any, error) {
	size, err := t.Len()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, size)
	err = t.Each(func(k, _ any) bool {
		out = append(out, k)
		return true
	})
	return out, err
}

// Clear frees every node and resets the control block to empty.
func (t *Tree) Clear() error {
	size, err := t.Len()
	if err != nil {
		return err
	}
	root, err := t.view.ReadPtr(t.offs("parent"))
	if err != nil {
		return err
	}

	// post-order free using an explicit stack
	var stack []uint64
	if root != 0 {
		stack = append(stack, root)
	}
	freed := uint64(0)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if freed >= size {
			return errors.CorruptLayout(errors.PhaseWrite, t.addr,
				"tree exceeds size %d", size)
		}
		l, err := t.left(node)
		if err != nil {
			return err
		}
		r, err := t.right(node)
		if err != nil {
			return err
		}
		if l != 0 {
			stack = append(stack, l)
		}
		if r != 0 {
			stack = append(stack, r)
		}
		if err := t.releaseNode(node); err != nil {
			return err
		}
		freed++
	}

	for _, f := range []string{"begin", "end", "parent", "size"} {
		if err := t.view.WritePtr(t.offs(f), 0); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) releaseNode(node uint64) error {
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

// Regions returns the memory the tree occupies: the control block, every
// node, and heap payloads owned by keys or values. The walk is bounded by
// the recorded size.
func (t *Tree) Regions() ([]eastl.Region, error) {
	size, err := t.Len()
	if err != nil {
		return nil, err
	}
	root, err := t.view.ReadPtr(t.offs("parent"))
	if err != nil {
		return nil, err
	}
	out := []eastl.Region{{Addr: t.addr, Size: SizeOf(t.profile)}}

	stack := make([]uint64, 0, 64)
	if root != 0 {
		stack = append(stack, root)
	}
	seen := uint64(0)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen >= size {
			return nil, errors.CorruptLayout(errors.PhaseExport, t.addr,
				"nodes exceed recorded size %d", size)
		}
		seen++
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
		l, err := t.left(node)
		if err != nil {
			return nil, err
		}
		r, err := t.right(node)
		if err != nil {
			return nil, err
		}
		if l != 0 {
			stack = append(stack, l)
		}
		if r != 0 {
			stack = append(stack, r)
		}
	}
	if seen != size {
		return nil, errors.CorruptLayout(errors.PhaseExport, t.addr,
			"tree holds %d nodes, size records %d", seen, size)
	}
	return out, nil
}
