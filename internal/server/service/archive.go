package service

import (
	"archive/zip"
	"fmt"
	"io"

	"shared/internal/server/share"
)

// WriteArchive streams every file of the share into w as a ZIP
// archive, entries in upload order under their original names. The
// caller has usually sent response headers already, so a mid-stream
// failure surfaces as a truncated archive.
func (s *ShareService) WriteArchive(w io.Writer, rec *share.Record) error {
	zw := zip.NewWriter(w)

	for i := range rec.Files {
		if err := s.addArchiveEntry(zw, rec, &rec.Files[i]); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zip writer: %w", err)
	}
	return nil
}

func (s *ShareService) addArchiveEntry(zw *zip.Writer, rec *share.Record, f *share.FileEntry) error {
	src, err := s.store.Open(f.ContentRef)
	if err != nil {
		return fmt.Errorf("failed to open content for %s: %w", f.OriginalName, err)
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     f.OriginalName,
		Method:   zip.Deflate,
		Modified: rec.CreatedAt,
	}

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}

	if _, err := io.Copy(writer, src); err != nil {
		return fmt.Errorf("failed to write %s to zip: %w", f.OriginalName, err)
	}

	return nil
}
