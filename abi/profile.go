package abi

import (
	"github.com/memscape/eastl/errors"
)

// Profile pins the layout-relevant properties of a native build. All layout
// decisions derive from the profile at run time; nothing is compiled in.
// Profiles are shared read-only between handles once validated.
type Profile struct {
	// PtrSize is the native pointer width in bytes, 4 or 8.
	PtrSize uint32

	// MaxLoadFactor and GrowthFactor parameterize the hash table rehash
	// policy. The native defaults are 1.0 and 2.0.
	MaxLoadFactor float32
	GrowthFactor  float32

	// FixedOverflow selects whether fixed-capacity containers spill to
	// their overflow allocator when full, or fail with capacity_exceeded.
	FixedOverflow bool
}

// Profile64 returns the default 64-bit little-endian profile.
func Profile64() *Profile {
	return &Profile{
		PtrSize:       8,
		MaxLoadFactor: 1.0,
		GrowthFactor:  2.0,
	}
}

// Profile32 returns the default 32-bit little-endian profile. It matches
// wasm32 guests and 32-bit native builds.
func Profile32() *Profile {
	return &Profile{
		PtrSize:       4,
		MaxLoadFactor: 1.0,
		GrowthFactor:  2.0,
	}
}

// Validate checks the profile for internal consistency.
func (p *Profile) Validate() error {
	if p == nil {
		return errors.InvalidProfile("nil profile")
	}
	if p.PtrSize != 4 && p.PtrSize != 8 {
		return errors.InvalidProfile("pointer size %d not supported (want 4 or 8)", p.PtrSize)
	}
	if !(p.MaxLoadFactor > 0) {
		return errors.InvalidProfile("max load factor %v must be positive", p.MaxLoadFactor)
	}
	if !(p.GrowthFactor > 1) {
		return errors.InvalidProfile("growth factor %v must exceed 1", p.GrowthFactor)
	}
	return nil
}

// Word returns the pointer width in bytes.
func (p *Profile) Word() uint64 {
	return uint64(p.PtrSize)
}

// SSOCapacity returns the inline character capacity of the string layout:
// the three-word heap triple reinterpreted as a byte buffer, minus the
// trailing tag byte. 23 on 64-bit, 11 on 32-bit.
func (p *Profile) SSOCapacity() uint64 {
	return 3*p.Word() - 1
}
