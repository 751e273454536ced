// Package eastl reproduces the in-memory representation and the
// operational semantics of the EASTL container library, so that values
// built or mutated through this package are byte-identical to values
// produced by the native library, and native values can be read back
// without the native code present.
//
// # Overview
//
// Containers never live in Go memory. Every container is a thin handle
// over an address inside a Memory - a local buffer, a captured dump, or
// memory shared with a live process:
//
//	┌──────────────────────────────────────────────────────────┐
//	│ Go handle ←→ [layout model + engines] ←→ raw bytes       │
//	└──────────────────────────────────────────────────────────┘
//
// The layout model (package abi) decides field offsets, sizes and
// alignment per container family and per ABI profile. The engines
// replay the algorithms that shape those bytes:
//
//	growth    - geometric capacity policy shared by contiguous containers
//	hashing   - EASTL default hashes, the prime bucket sequence and the
//	            rehash threshold policy
//	fixedpool - free-list node pool carved from an inline buffer
//
// Container families compose the engines:
//
//	Family        Package     Control block
//	──────────────────────────────────────────────────────────
//	vector        vector      begin/end/capacity + allocator
//	fixed_vector  vector      vector + inline element buffer
//	string        str         SSO union: inline buf vs ptr/len/cap
//	hash_map/set  hashtable   bucket array + chained nodes
//	list          list        sentinel ring + size
//	fixed_list    list        list + pooled inline nodes
//	map/set       rbtree      red-black tree, parent/color packed
//	deque/queue   deque       block map + begin/end cursors
//	vector_map    vectormap   sorted vector of pairs
//
// # Memory contract
//
// Every adapter exposes SizeOf/AlignOf for its control block,
// Initialize to write a valid empty container into caller-supplied
// bytes, and a read path that interprets existing bytes without copying
// element data. The byte image of the control block (plus inline
// buffers) is the wire format; heap payloads are referenced by address
// and only flattened by the snapshot package on request.
//
// # ABI profiles
//
// A Profile fixes pointer width, alignment, inline capacities and the
// overflow policy for fixed containers. Profiles are validated at
// construction and shared read-only by all handles; every layout
// decision is derived from the profile, never compiled in.
//
// # Safety and concurrency
//
// Foreign bytes are untrusted. Structural walks (chains, rings, trees)
// are step-bounded against the recorded element count and surface
// CorruptLayout instead of looping. No handle is safe for concurrent
// mutation; callers serialize access per container, as the native
// library requires.
//
// # Errors
//
// All failures use the structured types from the errors package:
//
//	[grow] capacity_exceeded at push_back: fixed capacity 4 reached
//	[read] corrupt_layout at 0x2f10: bucket chain exceeds element count
package eastl
