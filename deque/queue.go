package deque

import (
	"github.com/memscape/eastl"
	"github.com/memscape/eastl/abi"
	"github.com/memscape/eastl/mem"
)

// Queue is a FIFO adapter over a Deque: pushes enter at the back and pops
// leave from the front.
type Queue struct {
	*Deque
}

// InitializeQueue writes an empty queue control block at addr. The image
// is a plain deque.
func InitializeQueue(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*Queue, error) {
	d, err := Initialize(view, profile, addr, elem, alloc)
	if err != nil {
		return nil, err
	}
	return &Queue{Deque: d}, nil
}

// QueueAt interprets an existing queue control block at addr.
func QueueAt(view *mem.View, profile *abi.Profile, addr uint64, elem abi.Type, alloc eastl.Allocator) (*Queue, error) {
	d, err := At(view, profile, addr, elem, alloc)
	if err != nil {
		return nil, err
	}
	return &Queue{Deque: d}, nil
}

// Push enqueues val.
func (q *Queue) Push(val any) error {
	return q.PushBack(val)
}

// Pop dequeues the oldest value. ok is false on an empty queue.
func (q *Queue) Pop() (val any, ok bool, err error) {
	return q.PopFront()
}
