package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"shared/internal/server/config"
	"shared/internal/server/metrics"
	"shared/internal/server/share"
	"shared/internal/server/storage"
)

func newTestService(t *testing.T, mutate func(*config.Config)) (*ShareService, *share.Registry, *share.Quota, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		StoragePath:       dir,
		MaxFileSize:       200 * 1024 * 1024,
		MaxFilesPerUpload: 15,
		MaxStorageBytes:   2 * 1024 * 1024 * 1024,
		ShareTTL:          5 * time.Minute,
		SweepInterval:     5 * time.Minute,
	}
	if mutate != nil {
		mutate(cfg)
	}

	store := storage.NewFileSystemStore(cfg.StoragePath)
	if err := store.EnsureDir(); err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}

	quota := share.NewQuota(cfg.MaxStorageBytes)
	registry := share.NewRegistry(quota)
	return NewShareService(registry, quota, store, cfg), registry, quota, dir
}

func upload(name, content string) UploadFile {
	return UploadFile{
		Name:     name,
		Size:     int64(len(content)),
		MimeType: "text/plain",
		Data:     strings.NewReader(content),
	}
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read storage dir: %v", err)
	}
	return len(entries)
}

func TestProcessUpload(t *testing.T) {
	t.Run("round trips through Info", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)

		result, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("a.txt", "aaa"), upload("b.txt", "bbbbb")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Code) != 4 {
			t.Errorf("expected 4-digit code, got %q", result.Code)
		}
		if result.ExpiresIn != "5 minutes" {
			t.Errorf("expected '5 minutes', got %q", result.ExpiresIn)
		}

		info, err := svc.Info(result.Code)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(info.Files) != 2 {
			t.Fatalf("expected 2 files, got %d", len(info.Files))
		}
		if info.Files[0].OriginalName != "a.txt" || info.Files[0].Size != 3 {
			t.Errorf("first file wrong: %+v", info.Files[0])
		}
		if info.Files[1].OriginalName != "b.txt" || info.Files[1].Size != 5 {
			t.Errorf("second file wrong: %+v", info.Files[1])
		}
		if !info.ExpiresAt.Equal(result.ExpiresAt) {
			t.Error("Info and upload result disagree on expiry")
		}
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)
		_, err := svc.ProcessUpload(context.Background(), nil)
		if !errors.Is(err, share.ErrNoFiles) {
			t.Errorf("expected ErrNoFiles, got %v", err)
		}
	})

	t.Run("rejects too many files", func(t *testing.T) {
		svc, _, _, dir := newTestService(t, func(c *config.Config) {
			c.MaxFilesPerUpload = 2
		})
		_, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("a", "1"), upload("b", "2"), upload("c", "3")})
		if !errors.Is(err, ErrTooManyFiles) {
			t.Errorf("expected ErrTooManyFiles, got %v", err)
		}
		if n := dirEntries(t, dir); n != 0 {
			t.Errorf("expected no stored files, found %d", n)
		}
	})

	t.Run("rejects oversized file by declared size", func(t *testing.T) {
		svc, _, _, dir := newTestService(t, func(c *config.Config) {
			c.MaxFileSize = 10
		})
		_, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("big.bin", "0123456789AB")})
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("expected ErrFileTooLarge, got %v", err)
		}
		if n := dirEntries(t, dir); n != 0 {
			t.Errorf("expected no stored files, found %d", n)
		}
	})

	t.Run("rejects oversized file with lying header", func(t *testing.T) {
		svc, _, quota, dir := newTestService(t, func(c *config.Config) {
			c.MaxFileSize = 10
		})
		_, err := svc.ProcessUpload(context.Background(), []UploadFile{{
			Name:     "liar.bin",
			Size:     5, // declared
			MimeType: "application/octet-stream",
			Data:     strings.NewReader(strings.Repeat("x", 100)),
		}})
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("expected ErrFileTooLarge, got %v", err)
		}
		if n := dirEntries(t, dir); n != 0 {
			t.Errorf("partial bytes must be removed, found %d files", n)
		}
		if quota.Used() != 0 {
			t.Errorf("expected no quota reserved, got %d", quota.Used())
		}
	})

	t.Run("quota rejection rolls back content", func(t *testing.T) {
		svc, _, quota, dir := newTestService(t, func(c *config.Config) {
			c.MaxStorageBytes = 100
		})

		first, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("a.bin", strings.Repeat("a", 60))})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("b.bin", strings.Repeat("b", 60))})
		if !errors.Is(err, share.ErrStorageExceeded) {
			t.Fatalf("expected ErrStorageExceeded, got %v", err)
		}

		if quota.Used() != 60 {
			t.Errorf("expected 60 bytes reserved, got %d", quota.Used())
		}
		if n := dirEntries(t, dir); n != 1 {
			t.Errorf("rejected upload must leave no bytes, found %d files", n)
		}
		if _, err := svc.Info(first.Code); err != nil {
			t.Errorf("first share must remain retrievable: %v", err)
		}
	})
}

func TestFileLookups(t *testing.T) {
	t.Run("by name returns first match for duplicates", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)

		result, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("dup.txt", "first"), upload("dup.txt", "second")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		entry, err := svc.FileByName(result.Code, "dup.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Size != int64(len("first")) {
			t.Errorf("expected first match (5 bytes), got %d bytes", entry.Size)
		}
	})

	t.Run("by name misses unknown file", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)
		result, _ := svc.ProcessUpload(context.Background(), []UploadFile{upload("a.txt", "x")})

		if _, err := svc.FileByName(result.Code, "other.txt"); !errors.Is(err, share.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("by index respects upload order and bounds", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)
		result, _ := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("a.txt", "aaa"), upload("b.txt", "bb")})

		entry, err := svc.FileByIndex(result.Code, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.OriginalName != "b.txt" {
			t.Errorf("expected b.txt at index 1, got %s", entry.OriginalName)
		}

		for _, idx := range []int{-1, 2} {
			if _, err := svc.FileByIndex(result.Code, idx); !errors.Is(err, share.ErrNotFound) {
				t.Errorf("expected ErrNotFound for index %d, got %v", idx, err)
			}
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)
		if _, err := svc.Info("0000"); !errors.Is(err, share.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestExpiry(t *testing.T) {
	t.Run("expired share is not served even before sweep", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, func(c *config.Config) {
			c.ShareTTL = -time.Second
		})
		result, err := svc.ProcessUpload(context.Background(), []UploadFile{upload("a.txt", "x")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := svc.Info(result.Code); !errors.Is(err, share.ErrNotFound) {
			t.Errorf("expected ErrNotFound for expired share, got %v", err)
		}
	})

	t.Run("sweep reclaims content and quota", func(t *testing.T) {
		svc, registry, quota, dir := newTestService(t, func(c *config.Config) {
			c.ShareTTL = -time.Second
		})
		if _, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("a.txt", "aaa"), upload("b.txt", "bb")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		store := storage.NewFileSystemStore(dir)
		sweeper := share.NewSweeper(registry, quota, store, 10*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		sweeper.Start(ctx)

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) && registry.Len() > 0 {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		sweeper.Wait()

		if registry.Len() != 0 {
			t.Fatal("sweeper never removed the expired share")
		}
		if quota.Used() != 0 {
			t.Errorf("expected 0 bytes reserved, got %d", quota.Used())
		}
		if n := dirEntries(t, dir); n != 0 {
			t.Errorf("expected no content on disk, found %d files", n)
		}
	})
}

func TestStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t, func(c *config.Config) {
		c.MaxStorageBytes = 100
	})

	if _, err := svc.ProcessUpload(context.Background(),
		[]UploadFile{upload("a.bin", strings.Repeat("a", 50))}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := svc.Status()
	if status.UsedBytes != 50 || status.CapacityBytes != 100 || status.Remaining != 50 {
		t.Errorf("unexpected byte accounting: %+v", status)
	}
	if status.UsagePercentage != 50 {
		t.Errorf("expected 50%%, got %d", status.UsagePercentage)
	}
	if status.ActiveCodeCount != 1 {
		t.Errorf("expected 1 active code, got %d", status.ActiveCodeCount)
	}
}

func TestProcessUpload_HostileFilenames(t *testing.T) {
	t.Run("accepts name with oversized extension", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)

		name := "a." + strings.Repeat("x", 300)
		result, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload(name, "payload")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := svc.Info(result.Code)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := info.Files[0].OriginalName; len(got) > 200 {
			t.Errorf("expected stored name capped at 200 chars, got %d", len(got))
		}
	})

	t.Run("strips traversal components", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, nil)

		result, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("../../etc/passwd", "x")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := svc.Info(result.Code)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Files[0].OriginalName != "passwd" {
			t.Errorf("expected bare filename, got %q", info.Files[0].OriginalName)
		}
	})
}

func TestProcessUpload_CountsRejections(t *testing.T) {
	metrics.Init(prometheus.NewRegistry())
	m := metrics.Get()

	svc, _, _, _ := newTestService(t, func(c *config.Config) {
		c.MaxFilesPerUpload = 1
		c.MaxStorageBytes = 10
	})

	cases := []struct {
		reason string
		files  []UploadFile
	}{
		{"no_files", nil},
		{"too_many_files", []UploadFile{upload("a", "1"), upload("b", "2")}},
		{"storage_exceeded", []UploadFile{upload("big.bin", strings.Repeat("x", 11))}},
	}

	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			before := testutil.ToFloat64(m.Rejections.WithLabelValues(tc.reason))
			if _, err := svc.ProcessUpload(context.Background(), tc.files); err == nil {
				t.Fatal("expected rejection")
			}
			after := testutil.ToFloat64(m.Rejections.WithLabelValues(tc.reason))
			if after != before+1 {
				t.Errorf("expected %s counter to advance by 1, got %v -> %v", tc.reason, before, after)
			}
		})
	}

	t.Run("file_too_large", func(t *testing.T) {
		svc, _, _, _ := newTestService(t, func(c *config.Config) {
			c.MaxFileSize = 4
		})
		before := testutil.ToFloat64(m.Rejections.WithLabelValues("file_too_large"))
		if _, err := svc.ProcessUpload(context.Background(),
			[]UploadFile{upload("big.bin", "too big")}); !errors.Is(err, ErrFileTooLarge) {
			t.Fatalf("expected ErrFileTooLarge, got %v", err)
		}
		after := testutil.ToFloat64(m.Rejections.WithLabelValues("file_too_large"))
		if after != before+1 {
			t.Errorf("expected file_too_large counter to advance by 1, got %v -> %v", before, after)
		}
	})
}

func TestHumanizeBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{2 * 1024 * 1024 * 1024, "2.0 GB"},
	}
	for _, tt := range tests {
		if got := humanizeBytes(tt.in); got != tt.want {
			t.Errorf("humanizeBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
