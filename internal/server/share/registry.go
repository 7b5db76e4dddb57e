package share

import (
	"sync"
	"time"
)

// Registry is the authoritative mapping from share code to record.
// All state lives in process memory; nothing survives a restart.
//
// Code selection and insertion happen under one lock hold, so two
// concurrent Create calls can never commit the same code. Critical
// sections contain only map mutation and arithmetic; file I/O always
// happens outside.
type Registry struct {
	mu     sync.RWMutex
	shares map[string]*Record
	quota  *Quota
}

// NewRegistry creates an empty registry that accounts its bytes
// against quota.
func NewRegistry(quota *Quota) *Registry {
	return &Registry{
		shares: make(map[string]*Record),
		quota:  quota,
	}
}

// Create reserves quota for the given files, assigns a unique 4-digit
// code, and inserts the new record. The quota reservation commits
// before the record becomes visible; on any failure nothing changes.
func (r *Registry) Create(files []FileEntry, ttl time.Duration) (*Record, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}

	if !r.quota.TryReserve(total) {
		return nil, ErrStorageExceeded
	}

	r.mu.Lock()
	code, err := r.pickCodeLocked()
	if err != nil {
		r.mu.Unlock()
		r.quota.Release(total)
		return nil, err
	}

	now := time.Now()
	rec := &Record{
		Code:       code,
		Files:      append([]FileEntry(nil), files...),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		TotalBytes: total,
	}
	r.shares[code] = rec
	r.mu.Unlock()

	return rec, nil
}

// pickCodeLocked draws random codes until one misses the live set.
// When the space is crowded enough that draws keep colliding, it falls
// back to a linear scan from a random offset, so allocation fails only
// when every code is genuinely taken. Caller holds r.mu.
func (r *Registry) pickCodeLocked() (string, error) {
	if len(r.shares) >= codeSpaceSize {
		return "", ErrCodeSpaceExhausted
	}

	for i := 0; i < maxCodeAttempts; i++ {
		idx, err := randomCodeIndex()
		if err != nil {
			return "", err
		}
		if code := codeAt(idx); !r.taken(code) {
			return code, nil
		}
	}

	start, err := randomCodeIndex()
	if err != nil {
		return "", err
	}
	for i := int64(0); i < codeSpaceSize; i++ {
		if code := codeAt((start + i) % codeSpaceSize); !r.taken(code) {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (r *Registry) taken(code string) bool {
	_, ok := r.shares[code]
	return ok
}

// Get returns the record for code. A record whose deadline has passed
// is reported as ErrNotFound even if the sweeper has not removed it
// yet; presence in the map is never trusted on its own.
func (r *Registry) Get(code string) (*Record, error) {
	r.mu.RLock()
	rec, ok := r.shares[code]
	r.mu.RUnlock()

	if !ok || rec.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Remove deletes the entry for code and returns it. Removing an
// absent code is a no-op, which makes the sweep sequence idempotent.
func (r *Registry) Remove(code string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.shares[code]
	if ok {
		delete(r.shares, code)
	}
	return rec, ok
}

// TakeExpired removes and returns every record whose deadline is at or
// before now. Removal is atomic per run: no reader can obtain a
// returned record afterwards, so each one is handed to exactly one
// cleanup pass.
func (r *Registry) TakeExpired(now time.Time) []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*Record
	for code, rec := range r.shares {
		if !now.Before(rec.ExpiresAt) {
			expired = append(expired, rec)
			delete(r.shares, code)
		}
	}
	return expired
}

// Len returns the number of live entries, expired-but-unswept included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shares)
}
