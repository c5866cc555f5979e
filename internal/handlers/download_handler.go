package handlers

import (
	"errors"
	"mime"
	"net/http"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/models"
	"github.com/ternarybob/tubefetch/internal/services/downloads"
	"github.com/ternarybob/tubefetch/internal/services/extraction"
)

// DownloadHandler serves metadata lookups, job submission, progress polling and file retrieval
type DownloadHandler struct {
	downloads DownloadSubmitter
	progress  ProgressQuerier
	logger    arbor.ILogger
}

func NewDownloadHandler(downloads DownloadSubmitter, progress ProgressQuerier, logger arbor.ILogger) *DownloadHandler {
	return &DownloadHandler{
		downloads: downloads,
		progress:  progress,
		logger:    logger,
	}
}

// VideoInfoHandler handles POST /api/video-info
func (h *DownloadHandler) VideoInfoHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.VideoInfoRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.downloads.VideoInfo(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Str("url", req.URL).Msg("Video info lookup failed")
		WriteError(w, http.StatusBadRequest, clientMessage(err))
		return
	}

	WriteJSON(w, http.StatusOK, info)
}

// DownloadHandler handles POST /api/download
func (h *DownloadHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.DownloadRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.downloads.Submit(req)
	if err != nil {
		if errors.Is(err, downloads.ErrShuttingDown) {
			WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		WriteError(w, http.StatusBadRequest, clientMessage(err))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"download_id": id,
		"message":     "Download started",
	})
}

// ProgressHandler handles GET /api/progress/{id}. Unknown ids are a normal answer, not an error.
func (h *DownloadHandler) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathID(r.URL.Path, "/api/progress/")
	snapshot, ok := h.progress.Query(id)
	if id == "" || !ok {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": string(models.StatusNotFound),
		})
		return
	}

	WriteJSON(w, http.StatusOK, snapshot)
}

// FileHandler handles GET /api/file/{id}, streaming the artifact as an attachment
func (h *DownloadHandler) FileHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathID(r.URL.Path, "/api/file/")
	snapshot, ok := h.progress.Query(id)
	if id == "" || !ok || snapshot.Status != models.StatusCompleted || snapshot.FilePath == "" {
		WriteError(w, http.StatusNotFound, "File not found")
		return
	}

	f, err := os.Open(snapshot.FilePath)
	if err != nil {
		// Most likely removed by the reaper after the retention window
		h.logger.Debug().Err(err).Str("download_id", id).Msg("Completed download has no file")
		WriteError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		WriteError(w, http.StatusNotFound, "File not found")
		return
	}

	filename := snapshot.Filename
	if filename == "" {
		filename = info.Name()
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))

	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// clientMessage returns the text safe to show a client for a failed request
func clientMessage(err error) string {
	var extErr *extraction.Error
	if errors.As(err, &extErr) {
		return extErr.UserMessage()
	}
	return err.Error()
}
