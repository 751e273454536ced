// Package mem provides concrete Memory implementations and allocation
// primitives for hosting container images.
//
// Buffer is a bounds-checked, slice-backed Memory for owned or captured
// images. View layers pointer-width-aware accessors on top of any Memory so
// container code can read and write native words without knowing the
// profile's pointer size. Arena is a first-fit free-list Allocator carving
// payload storage out of a Memory region.
package mem
