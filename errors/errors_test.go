package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseRead,
				Kind:   KindCorruptLayout,
				Path:   []string{"hash_map", "bucket_array"},
				Addr:   0x2f10,
				Detail: "bucket chain exceeds element count",
			},
			contains: []string{"[read]", "corrupt_layout", "hash_map.bucket_array", "0x2f10", "bucket chain exceeds element count"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseGrow,
				Kind:  KindCapacityExceeded,
			},
			contains: []string{"[grow]", "capacity_exceeded"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseWrite,
				Kind:   KindAllocationFailure,
				Detail: "arena full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[write]", "allocation_failure", "arena full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseWrite,
		Kind:  KindAllocationFailure,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseRead,
		Kind:  KindCorruptLayout,
		Path:  []string{"list"},
	}

	// Same phase and kind
	if !err.Is(&Error{Phase: PhaseRead, Kind: KindCorruptLayout}) {
		t.Error("Is should match same phase and kind")
	}

	// Different phase
	if err.Is(&Error{Phase: PhaseWrite, Kind: KindCorruptLayout}) {
		t.Error("Is should not match different phase")
	}

	// Different kind
	if err.Is(&Error{Phase: PhaseRead, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	// Test with errors.Is
	target := &Error{Phase: PhaseRead, Kind: KindCorruptLayout}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseRehash, KindAllocationFailure).
		Path("hash_set", "bucket_array").
		Addr(0x1000).
		Value(uint32(97)).
		Cause(cause).
		Detail("need %d buckets", 97).
		Build()

	if err.Phase != PhaseRehash {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseRehash)
	}
	if err.Kind != KindAllocationFailure {
		t.Errorf("Kind = %v, want %v", err.Kind, KindAllocationFailure)
	}
	if len(err.Path) != 2 || err.Path[0] != "hash_set" || err.Path[1] != "bucket_array" {
		t.Errorf("Path = %v, want [hash_set bucket_array]", err.Path)
	}
	if err.Addr != 0x1000 {
		t.Errorf("Addr = %#x, want 0x1000", err.Addr)
	}
	if err.Value != uint32(97) {
		t.Errorf("Value = %v, want 97", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "need 97 buckets" {
		t.Errorf("Detail = %v, want 'need 97 buckets'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidProfile", func(t *testing.T) {
		err := InvalidProfile("pointer size %d not supported", 2)
		if err.Kind != KindInvalidProfile {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidProfile)
		}
		if err.Phase != PhaseProfile {
			t.Errorf("Phase = %v, want %v", err.Phase, PhaseProfile)
		}
		if !strings.Contains(err.Detail, "2") {
			t.Errorf("Detail = %v, should contain pointer size", err.Detail)
		}
	})

	t.Run("CapacityExceeded", func(t *testing.T) {
		err := CapacityExceeded(PhaseGrow, []string{"fixed_vector", "push_back"}, 4)
		if err.Kind != KindCapacityExceeded {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCapacityExceeded)
		}
		if err.Value != uint64(4) {
			t.Errorf("Value = %v, want 4", err.Value)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseGrow, 1024, 8, nil)
		if err.Kind != KindAllocationFailure {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocationFailure)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseRead, "key 42")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
	})

	t.Run("CorruptLayout", func(t *testing.T) {
		err := CorruptLayout(PhaseTraverse, 0xbeef, "sentinel ring broken after %d steps", 12)
		if err.Kind != KindCorruptLayout {
			t.Errorf("Kind = %v, want %v", err.Kind, KindCorruptLayout)
		}
		if err.Addr != 0xbeef {
			t.Errorf("Addr = %#x, want 0xbeef", err.Addr)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseRead, []string{"vector"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint64(10) {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("MemoryOutOfBounds", func(t *testing.T) {
		err := MemoryOutOfBounds(PhaseRead, 0xff00, 256, 65536)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Addr != 0xff00 {
			t.Errorf("Addr = %#x, want 0xff00", err.Addr)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseWrite, []string{"hash_map", "key"}, "u32", "string")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseProfile, "big-endian targets")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})
}
