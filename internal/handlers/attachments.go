package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskboard/apiserver/internal/services"
	"github.com/taskboard/apiserver/internal/store"
)

const (
	maxAttachmentMemory = 32 << 20
	maxAttachmentBytes  = 64 << 20
	formFieldFile       = "file"
)

// AttachmentHandler provides HTTP handlers for card attachments.
type AttachmentHandler struct {
	attachmentService *services.AttachmentService
}

func NewAttachmentHandler(attachmentService *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// AttachmentRouter registers attachment routes addressed by
// attachment id. Upload and per-card listing live under /cards.
func AttachmentRouter(
	r chi.Router,
	attachmentService *services.AttachmentService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAttachmentHandler(attachmentService)

	r.Use(authMiddleware)
	r.Route("/{attachmentID}", func(r chi.Router) {
		r.Get("/download", handler.Download)
		r.Delete("/", handler.Delete)
	})
}

// Upload stores one multipart file on a card.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cardID, err := parseUUIDParam(r, "cardID")
	if err != nil {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File[formFieldFile]
	if len(files) != 1 {
		writeError(w, http.StatusBadRequest, "exactly one file is required")
		return
	}
	fileHeader := files[0]
	if fileHeader.Size > maxAttachmentBytes {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	att, err := h.attachmentService.Upload(r.Context(), userID, cardID, fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "card not found")
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusServiceUnavailable, "attachments are not available")
		default:
			writeError(w, http.StatusInternalServerError, "failed to store attachment")
		}
		return
	}

	writeJSON(w, http.StatusCreated, att)
}

func (h *AttachmentHandler) ListByCard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cardID, err := parseUUIDParam(r, "cardID")
	if err != nil {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}

	attachments, err := h.attachmentService.ListByCard(r.Context(), userID, cardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list attachments")
		return
	}

	writeJSON(w, http.StatusOK, attachments)
}

// Download streams the attachment bytes back to the caller.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	attachmentID, err := parseUUIDParam(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}

	att, reader, err := h.attachmentService.Open(r.Context(), userID, attachmentID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "attachment not found")
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusServiceUnavailable, "attachments are not available")
		default:
			writeError(w, http.StatusInternalServerError, "failed to fetch attachment")
		}
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	// Headers are already out by now; a copy failure cannot be
	// reported to the client.
	_, _ = io.Copy(w, reader)
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	attachmentID, err := parseUUIDParam(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}

	if err := h.attachmentService.Delete(r.Context(), userID, attachmentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete attachment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
