package share

import "sync"

// Quota tracks the aggregate bytes held by all live shares against a
// fixed ceiling. Reserve and release are atomic with respect to each
// other; callers sequence them around registry mutations (reserve
// before insert, release after removal).
type Quota struct {
	mu       sync.Mutex
	used     int64
	capacity int64
}

// NewQuota creates a tracker with the given capacity in bytes.
func NewQuota(capacity int64) *Quota {
	return &Quota{capacity: capacity}
}

// TryReserve atomically admits n bytes if they fit under the ceiling.
// On failure nothing changes.
func (q *Quota) TryReserve(n int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.used+n > q.capacity {
		return false
	}
	q.used += n
	return true
}

// Release returns n bytes to the pool, floored at zero so a stray
// double-release can never drive usage negative.
func (q *Quota) Release(n int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.used -= n
	if q.used < 0 {
		q.used = 0
	}
}

// Used returns the bytes currently reserved.
func (q *Quota) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Capacity returns the fixed ceiling.
func (q *Quota) Capacity() int64 {
	return q.capacity
}

// Remaining returns the bytes still admissible.
func (q *Quota) Remaining() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity - q.used
}
