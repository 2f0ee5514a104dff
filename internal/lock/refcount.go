package locking

// used for pin/unpin of buffer frames:
// a frame whose count is zero may be chosen for eviction

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrUnderflow = errors.New("locking: count would drop below zero")

// RefCount is a non-negative counter of outstanding references.
// The zero value holds no references.
type RefCount struct {
	count atomic.Int32
}

// Inc adds one reference and returns the new count.
func (r *RefCount) Inc() int32 {
	return r.count.Add(1)
}

// Dec drops one reference and reports whether the count reached zero.
// A counter already at zero is left unchanged and ErrUnderflow is returned.
func (r *RefCount) Dec() (bool, error) {
	for {
		cur := r.count.Load()
		if cur <= 0 {
			return false, ErrUnderflow
		}
		if r.count.CompareAndSwap(cur, cur-1) {
			return cur == 1, nil
		}
	}
}

// Set overwrites the count, e.g. when a frame is reloaded with a new page.
func (r *RefCount) Set(n int32) {
	r.count.Store(n)
}

func (r *RefCount) Get() int32 {
	return r.count.Load()
}

func (r *RefCount) String() string {
	return fmt.Sprintf("RefCount: %d", r.Get())
}
