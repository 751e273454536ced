// Package growth implements the geometric capacity policy shared by the
// contiguous containers.
package growth

// NeedsGrowth reports whether a container of the given size needs more
// capacity before accepting one more element.
func NeedsGrowth(size, capacity uint64) bool {
	return size >= capacity
}

// Grow returns the capacity a contiguous container reallocates to when it
// must hold at least min elements. An empty container grows to min (at
// least one element); otherwise capacity doubles, then is raised to min if
// doubling was not enough.
func Grow(current, min uint64) uint64 {
	if current == 0 {
		if min < 1 {
			return 1
		}
		return min
	}
	next := current * 2
	if next < min {
		next = min
	}
	return next
}
