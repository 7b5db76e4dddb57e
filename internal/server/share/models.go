package share

import "time"

// FileEntry describes one uploaded file within a share.
type FileEntry struct {
	OriginalName string
	ContentRef   string // storage handle, owned exclusively by this entry
	Size         int64
	MimeType     string
}

// Record binds a share code to its files and expiration.
// A Record is immutable once inserted into the Registry, so it is safe
// to hand out by pointer to concurrent readers.
type Record struct {
	Code       string
	Files      []FileEntry
	CreatedAt  time.Time
	ExpiresAt  time.Time
	TotalBytes int64
}

// Expired reports whether the record's deadline has passed at now.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
