package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/voxelspace/spacemarket/internal/domain"
)

// archivePrefix is where the archiver writes monthly exports in blob
// storage. Objects are laid out as archive/<kind>/<YYYY-MM>.jsonl.
const archivePrefix = "archive/"

// ArchiveHandler serves the cold history exported to blob storage by the
// archiver, so operators can browse and download past months without
// touching the bucket directly.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logger,
	}
}

// archiveEntry is the JSON shape for one archived object.
type archiveEntry struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	LastModified string `json:"last_modified"`
}

// listArchivesResponse wraps the archive listing output.
type listArchivesResponse struct {
	Archives []archiveEntry `json:"archives"`
}

// List returns the archived exports, optionally filtered by kind
// (transactions or audit).
// GET /api/archives?kind=transactions
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := archivePrefix
	if kind := r.URL.Query().Get("kind"); kind != "" {
		prefix += kind + "/"
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	entries := make([]archiveEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, archiveEntry{
			Path:         info.Path,
			Size:         info.Size,
			ContentType:  info.ContentType,
			LastModified: info.LastModified.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	writeJSON(w, http.StatusOK, listArchivesResponse{Archives: entries})
}

// Download streams one monthly export back to the caller.
// GET /api/archives/{kind}/{month}
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	kind := pathParam(r, "kind")
	month := pathParam(r, "month")
	if kind == "" || month == "" {
		writeError(w, http.StatusBadRequest, "missing archive kind or month")
		return
	}

	path := fmt.Sprintf("%s%s/%s.jsonl", archivePrefix, kind, month)
	body, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: download archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to download archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
