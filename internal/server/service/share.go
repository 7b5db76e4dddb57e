package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"shared/internal/server/config"
	"shared/internal/server/metrics"
	"shared/internal/server/share"
	"shared/internal/server/storage"
)

// Sentinel errors for the service layer. Registry-level sentinels
// (share.ErrNotFound and friends) pass through unchanged.
var (
	ErrTooManyFiles = errors.New("too many files in one upload")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// UploadFile is one file of an incoming upload batch.
type UploadFile struct {
	Name     string
	Size     int64 // declared size from the multipart header
	MimeType string
	Data     io.Reader
}

// FileMeta is the client-visible slice of a file entry.
type FileMeta struct {
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

// StorageInfo is the humanized usage summary attached to upload
// responses.
type StorageInfo struct {
	Used      string `json:"used"`
	Limit     string `json:"limit"`
	Remaining string `json:"remaining"`
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Code        string      `json:"code"`
	Files       []FileMeta  `json:"files"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	ExpiresIn   string      `json:"expiresIn"`
	StorageInfo StorageInfo `json:"storageInfo"`
}

// ShareInfo is returned for metadata queries.
type ShareInfo struct {
	Files     []FileMeta `json:"files"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// StorageStatus is the full usage snapshot for the storage endpoint.
type StorageStatus struct {
	UsedBytes       int64  `json:"usedBytes"`
	CapacityBytes   int64  `json:"capacityBytes"`
	Remaining       int64  `json:"remaining"`
	UsagePercentage int    `json:"usagePercentage"`
	ActiveCodeCount int    `json:"activeCodeCount"`
	UsedHuman       string `json:"currentUsage"`
	LimitHuman      string `json:"limit"`
	RemainingHuman  string `json:"remainingHuman"`
}

// ShareService contains the business logic for creating, querying,
// and streaming shares.
type ShareService struct {
	registry *share.Registry
	quota    *share.Quota
	store    storage.Store
	cfg      *config.Config
}

// NewShareService creates a new share service.
func NewShareService(registry *share.Registry, quota *share.Quota, store storage.Store, cfg *config.Config) *ShareService {
	return &ShareService{
		registry: registry,
		quota:    quota,
		store:    store,
		cfg:      cfg,
	}
}

// ProcessUpload handles an incoming batch: validates it, streams each
// file to the content store, and commits the registry record. Content
// is written outside any lock; if admission fails afterwards, every
// byte already written is removed before the error returns.
func (s *ShareService) ProcessUpload(ctx context.Context, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		recordRejection("no_files")
		return nil, share.ErrNoFiles
	}
	if len(files) > s.cfg.MaxFilesPerUpload {
		recordRejection("too_many_files")
		return nil, ErrTooManyFiles
	}
	for _, f := range files {
		if f.Size > s.cfg.MaxFileSize {
			recordRejection("file_too_large")
			return nil, ErrFileTooLarge
		}
	}

	entries := make([]share.FileEntry, 0, len(files))
	discard := func() {
		for _, e := range entries {
			if err := s.store.Delete(e.ContentRef); err != nil {
				slog.Error("failed to discard rejected upload content",
					"ref", e.ContentRef, "error", err)
			}
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			discard()
			return nil, err
		}

		// Cap the copy so a lying multipart header can't overshoot the
		// per-file limit on disk.
		ref, n, err := s.store.Save(f.Name, io.LimitReader(f.Data, s.cfg.MaxFileSize+1))
		if err != nil {
			discard()
			return nil, fmt.Errorf("failed to store %s: %w", f.Name, err)
		}
		entries = append(entries, share.FileEntry{
			OriginalName: storage.SanitizeName(f.Name),
			ContentRef:   ref,
			Size:         n,
			MimeType:     f.MimeType,
		})
		if n > s.cfg.MaxFileSize {
			discard()
			recordRejection("file_too_large")
			return nil, ErrFileTooLarge
		}
	}

	rec, err := s.registry.Create(entries, s.cfg.ShareTTL)
	if err != nil {
		discard()
		switch {
		case errors.Is(err, share.ErrStorageExceeded):
			recordRejection("storage_exceeded")
		case errors.Is(err, share.ErrCodeSpaceExhausted):
			recordRejection("code_space_exhausted")
		}
		return nil, err
	}

	if m := metrics.Get(); m != nil {
		m.UploadsTotal.Inc()
		m.UploadedBytes.Add(float64(rec.TotalBytes))
		m.ActiveShares.Set(float64(s.registry.Len()))
		m.StorageUsedBytes.Set(float64(s.quota.Used()))
	}

	slog.Info("upload processed",
		"code", rec.Code,
		"files", len(rec.Files),
		"bytes", rec.TotalBytes,
		"expires_at", rec.ExpiresAt,
	)

	return &UploadResult{
		Code:      rec.Code,
		Files:     fileMetas(rec),
		ExpiresAt: rec.ExpiresAt,
		ExpiresIn: humanizeDuration(s.cfg.ShareTTL),
		StorageInfo: StorageInfo{
			Used:      humanizeBytes(s.quota.Used()),
			Limit:     humanizeBytes(s.quota.Capacity()),
			Remaining: humanizeBytes(s.quota.Remaining()),
		},
	}, nil
}

// Lookup returns the live record for code, or share.ErrNotFound for
// unknown and expired codes alike.
func (s *ShareService) Lookup(code string) (*share.Record, error) {
	return s.registry.Get(code)
}

// Info returns share metadata without serving any content.
func (s *ShareService) Info(code string) (*ShareInfo, error) {
	rec, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	return &ShareInfo{
		Files:     fileMetas(rec),
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// FileByName returns the first file in the share with the given
// original name. Duplicate names within one batch are shadowed by the
// first match; the index lookup is the lossless alternative.
func (s *ShareService) FileByName(code, name string) (*share.FileEntry, error) {
	rec, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	for i := range rec.Files {
		if rec.Files[i].OriginalName == name {
			return &rec.Files[i], nil
		}
	}
	return nil, share.ErrNotFound
}

// FileByIndex returns the file at the given upload-order position.
func (s *ShareService) FileByIndex(code string, index int) (*share.FileEntry, error) {
	rec, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(rec.Files) {
		return nil, share.ErrNotFound
	}
	return &rec.Files[index], nil
}

// OpenContent opens a file's stored bytes for streaming from the start.
func (s *ShareService) OpenContent(entry *share.FileEntry) (io.ReadSeekCloser, error) {
	return s.store.Open(entry.ContentRef)
}

// Status returns the current storage usage snapshot.
func (s *ShareService) Status() StorageStatus {
	used := s.quota.Used()
	capacity := s.quota.Capacity()
	return StorageStatus{
		UsedBytes:       used,
		CapacityBytes:   capacity,
		Remaining:       capacity - used,
		UsagePercentage: int(math.Round(float64(used) / float64(capacity) * 100)),
		ActiveCodeCount: s.registry.Len(),
		UsedHuman:       humanizeBytes(used),
		LimitHuman:      humanizeBytes(capacity),
		RemainingHuman:  humanizeBytes(capacity - used),
	}
}

func recordRejection(reason string) {
	if m := metrics.Get(); m != nil {
		m.Rejections.WithLabelValues(reason).Inc()
	}
}

func fileMetas(rec *share.Record) []FileMeta {
	metas := make([]FileMeta, len(rec.Files))
	for i, f := range rec.Files {
		metas[i] = FileMeta{OriginalName: f.OriginalName, Size: f.Size}
	}
	return metas
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// humanizeDuration renders a TTL the way clients display it.
func humanizeDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return d.String()
}
