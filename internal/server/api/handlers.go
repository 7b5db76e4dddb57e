package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"shared/internal/server/config"
	"shared/internal/server/metrics"
	"shared/internal/server/service"
	"shared/internal/server/share"

	"github.com/labstack/echo/v4"
)

// Handler contains the HTTP handlers for the share API.
type Handler struct {
	svc *service.ShareService
	cfg *config.Config
}

// NewHandler creates a new handler with the given service dependency.
func NewHandler(svc *service.ShareService, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// HandleUpload handles POST /api/upload.
// Accepts a multipart form with one or more "files" fields and returns
// the share code for the batch.
func (h *Handler) HandleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "invalid multipart form (use form field 'files')",
		})
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files uploaded"})
	}

	uploads := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "failed to read uploaded file",
			})
		}
		defer src.Close()

		uploads = append(uploads, service.UploadFile{
			Name:     fh.Filename,
			Size:     fh.Size,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     src,
		})
	}

	result, err := h.svc.ProcessUpload(c.Request().Context(), uploads)
	if err != nil {
		return h.mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// HandleInfo handles GET /api/info/:code.
// Returns share metadata without serving any content.
func (h *Handler) HandleInfo(c echo.Context) error {
	info, err := h.svc.Info(c.Param("code"))
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDownloadAll handles GET /api/download/:code.
// Streams every file of the share as one ZIP archive.
func (h *Handler) HandleDownloadAll(c echo.Context) error {
	rec, err := h.svc.Lookup(c.Param("code"))
	if err != nil {
		return h.mapServiceError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "application/zip")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="shareD-files.zip"`)
	res.WriteHeader(http.StatusOK)

	if m := metrics.Get(); m != nil {
		m.Downloads.WithLabelValues("archive").Inc()
	}

	// Headers are gone; a failure here terminates the connection with
	// a truncated archive.
	if err := h.svc.WriteArchive(res, rec); err != nil {
		slog.Error("archive stream failed", "code", rec.Code, "error", err)
	}
	return nil
}

// HandleDownloadByName handles GET /api/download/:code/:filename.
// Streams the first file whose original name matches.
func (h *Handler) HandleDownloadByName(c echo.Context) error {
	name := c.Param("filename")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	entry, err := h.svc.FileByName(c.Param("code"), name)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.streamEntry(c, entry)
}

// HandleDownloadByIndex handles GET /api/download/:code/file/:index.
// Streams the file at the given upload-order position.
func (h *Handler) HandleDownloadByIndex(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid file index"})
	}

	entry, err := h.svc.FileByIndex(c.Param("code"), index)
	if err != nil {
		return h.mapServiceError(c, err)
	}
	return h.streamEntry(c, entry)
}

// HandleStorage handles GET /api/storage.
// Returns the global storage usage snapshot.
func (h *Handler) HandleStorage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Status())
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "OK",
		"message": "share server is running",
	})
}

// streamEntry serves one stored file as an attachment with explicit
// length and type headers.
func (h *Handler) streamEntry(c echo.Context, entry *share.FileEntry) error {
	src, err := h.svc.OpenContent(entry)
	if err != nil {
		// Registry still references it but the bytes are gone; treat
		// like any other missing share.
		slog.Error("content missing on disk", "ref", entry.ContentRef, "error", err)
		return c.JSON(http.StatusNotFound, echo.Map{"error": "file not found"})
	}
	defer src.Close()

	mime := entry.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+entry.OriginalName+`"`)
	c.Response().Header().Set(echo.HeaderContentLength,
		strconv.FormatInt(entry.Size, 10))

	if m := metrics.Get(); m != nil {
		m.Downloads.WithLabelValues("file").Inc()
	}

	return c.Stream(http.StatusOK, mime, src)
}

// mapServiceError translates core errors into HTTP responses. Unknown
// and expired codes share one answer so stale codes can't be probed.
func (h *Handler) mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, share.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "share code not found or expired"})
	case errors.Is(err, share.ErrNoFiles):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no files uploaded"})
	case errors.Is(err, service.ErrTooManyFiles):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "too many files, maximum " + strconv.Itoa(h.cfg.MaxFilesPerUpload) + " per upload",
		})
	case errors.Is(err, service.ErrFileTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "file too large, maximum size is " + strconv.FormatInt(h.cfg.MaxFileSize, 10) + " bytes",
		})
	case errors.Is(err, share.ErrStorageExceeded):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "storage limit exceeded, try again after shares expire",
		})
	case errors.Is(err, share.ErrCodeSpaceExhausted):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error": "no share codes available, try again later",
		})
	default:
		slog.Error("request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
