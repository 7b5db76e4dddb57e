package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// ValidationError reports an unusable command-line argument.
type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// ParseArgs validates that every argument names an existing regular
// file. Shares are flat file lists, so directories are rejected.
func ParseArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "", Cause: "no files given"}
	}

	paths := make([]string, 0, len(args))
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, &ValidationError{Arg: arg, Cause: "file does not exist"}
		}
		if info.IsDir() {
			return nil, &ValidationError{Arg: arg, Cause: "is a directory, only files can be shared"}
		}
		if !info.Mode().IsRegular() {
			return nil, &ValidationError{Arg: arg, Cause: "not a regular file"}
		}
		paths = append(paths, arg)
	}
	return paths, nil
}

// FileMeta mirrors the server's per-file response shape.
type FileMeta struct {
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

// UploadResponse is the server's answer to a successful upload.
type UploadResponse struct {
	Code      string     `json:"code"`
	Files     []FileMeta `json:"files"`
	ExpiresAt time.Time  `json:"expiresAt"`
	ExpiresIn string     `json:"expiresIn"`
}

// Upload streams the given files to the server as one multipart batch
// and returns the share code. File contents are piped, not buffered,
// so large files don't load into memory.
func Upload(ctx context.Context, serverURL string, paths []string) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeParts(mw, paths))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server rejected upload (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server rejected upload: status %d", resp.StatusCode)
	}

	var result UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func writeParts(mw *multipart.Writer, paths []string) error {
	for _, path := range paths {
		part, err := mw.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			return fmt.Errorf("failed to create form part: %w", err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return mw.Close()
}
