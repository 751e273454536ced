package growth

import "testing"

func TestGrow(t *testing.T) {
	tests := []struct {
		current, min, want uint64
	}{
		{0, 0, 1},
		{0, 1, 1},
		{0, 5, 5},
		{1, 2, 2},
		{2, 3, 4},
		{4, 5, 8},
		{8, 9, 16},
		{4, 100, 100},
	}

	for _, tt := range tests {
		if got := Grow(tt.current, tt.min); got != tt.want {
			t.Errorf("Grow(%d, %d) = %d, want %d", tt.current, tt.min, got, tt.want)
		}
	}
}

func TestGrow_Sequence(t *testing.T) {
	// capacity after n push_backs into an empty vector
	var cap, size uint64
	wantCaps := []uint64{1, 2, 4, 4, 8, 8, 8, 8, 16}
	for i, want := range wantCaps {
		if NeedsGrowth(size, cap) {
			cap = Grow(cap, size+1)
		}
		size++
		if cap != want {
			t.Fatalf("after %d pushes capacity = %d, want %d", i+1, cap, want)
		}
	}
}

func TestNeedsGrowth(t *testing.T) {
	if !NeedsGrowth(0, 0) {
		t.Error("empty container with no capacity must grow")
	}
	if NeedsGrowth(3, 4) {
		t.Error("size 3 cap 4 must not grow")
	}
	if !NeedsGrowth(4, 4) {
		t.Error("size 4 cap 4 must grow")
	}
}
