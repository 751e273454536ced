package eastl

// Memory is the address space a container lives in. It may be a local
// buffer, a captured process dump, or live memory shared with a native
// process. All multi-byte accesses are little-endian. Implementations
// must bounds-check every access and return an error instead of
// panicking on out-of-range addresses.
type Memory interface {
	Read(addr uint64, length uint64) ([]byte, error)
	Write(addr uint64, data []byte) error
	ReadU8(addr uint64) (uint8, error)
	ReadU16(addr uint64) (uint16, error)
	ReadU32(addr uint64) (uint32, error)
	ReadU64(addr uint64) (uint64, error)
	WriteU8(addr uint64, value uint8) error
	WriteU16(addr uint64, value uint16) error
	WriteU32(addr uint64, value uint32) error
	WriteU64(addr uint64, value uint64) error
	// Size returns the extent of the address space in bytes.
	Size() uint64
}

// Allocator carves storage for container payloads out of a Memory.
// Address 0 is never a valid allocation; it is reserved as the null
// pointer value.
type Allocator interface {
	Alloc(size, align uint64) (uint64, error)
	Free(addr, size, align uint64)
}

// Region is a contiguous span of container-owned memory: the control
// block, a bucket or pointer array, a node, or a heap payload. Exporters
// flatten a container by reading every region it reports.
type Region struct {
	Addr uint64
	Size uint64
}
