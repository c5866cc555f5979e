package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/interfaces"
	"github.com/ternarybob/tubefetch/internal/models"
)

// multipartOverhead allows for boundaries and headers around the file part
const multipartOverhead = 64 * 1024

// cookieFields are the accepted multipart field names, in order of preference
var cookieFields = []string{"cookies", "file"}

// CookieHandler accepts and releases Netscape cookie files
type CookieHandler struct {
	store   interfaces.CookieStore
	events  interfaces.EventService
	maxSize int64
	logger  arbor.ILogger
}

func NewCookieHandler(store interfaces.CookieStore, events interfaces.EventService, maxSize int64, logger arbor.ILogger) *CookieHandler {
	return &CookieHandler{
		store:   store,
		events:  events,
		maxSize: maxSize,
		logger:  logger,
	}
}

// UploadHandler handles POST /api/cookies (multipart form, field "cookies" or "file")
func (h *CookieHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxSize + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusBadRequest, "Cookie file too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "Expected a multipart form with a cookie file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := formFile(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "No cookie file provided")
		return
	}
	defer file.Close()

	id, err := h.store.UploadReader(file, header.Size)
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			WriteError(w, http.StatusBadRequest, validationErr.Reason)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to store cookie file")
		WriteError(w, http.StatusInternalServerError, "Failed to store cookie file")
		return
	}

	h.publish(interfaces.EventCookieUploaded, id)

	WriteJSON(w, http.StatusOK, map[string]string{
		"cookie_id": id,
		"message":   "Cookies uploaded",
	})
}

// DeleteHandler handles DELETE /api/cookies/{id}. Releasing an unknown id succeeds.
func (h *CookieHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	id := PathID(r.URL.Path, "/api/cookies/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Cookie id is required")
		return
	}

	h.store.Release(id)
	h.publish(interfaces.EventCookieReleased, id)

	WriteSuccess(w, "Cookies released")
}

func (h *CookieHandler) publish(eventType interfaces.EventType, id string) {
	if h.events == nil {
		return
	}
	event := interfaces.Event{
		Type:    eventType,
		Payload: map[string]interface{}{"cookie_id": id},
	}
	if err := h.events.Publish(context.Background(), event); err != nil {
		h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, field := range cookieFields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}
