package abi

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/mem"
)

// RegionLister is implemented by element types whose stored form owns heap
// memory beyond the slot itself. Exporters use it to flatten payloads that
// a raw copy of the slot would leave dangling.
type RegionLister interface {
	Regions(v *mem.View, addr uint64) ([]eastl.Region, error)
}

// TypeRegions returns the heap regions owned by the element stored at
// addr. Plain value types own nothing and report nil.
func TypeRegions(t Type, v *mem.View, addr uint64) ([]eastl.Region, error) {
	if rl, ok := t.(RegionLister); ok {
		return rl.Regions(v, addr)
	}
	return nil, nil
}

// Regions reports the heap regions owned by either half of the pair.
func (t *Pair) Regions(v *mem.View, addr uint64) ([]eastl.Region, error) {
	info := t.layout(&Profile{PtrSize: v.PtrSize})
	out, err := TypeRegions(t.Key, v, addr+info.Offset("first"))
	if err != nil {
		return nil, err
	}
	more, err := TypeRegions(t.Value, v, addr+info.Offset("second"))
	if err != nil {
		return nil, err
	}
	return append(out, more...), nil
}
