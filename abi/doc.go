// Package abi models the binary interface of a native build: pointer width,
// structure layout rules and the tuning constants that feed the container
// engines.
//
// A Profile pins everything layout depends on. Layouts themselves are
// computed with C structure rules (fields at aligned offsets, total size
// rounded up to the widest alignment) through Struct and the caching
// Calculator. Type descriptors give containers a uniform way to size, load
// and store element values against foreign memory.
package abi
