package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/services"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

// CardHandler provides HTTP handlers for cards.
type CardHandler struct {
	cardService       *services.CardService
	attachmentHandler *AttachmentHandler
}

func NewCardHandler(cardService *services.CardService, attachmentService *services.AttachmentService) *CardHandler {
	return &CardHandler{
		cardService:       cardService,
		attachmentHandler: NewAttachmentHandler(attachmentService),
	}
}

// CardRouter registers card routes on the given router.
func CardRouter(
	r chi.Router,
	cardService *services.CardService,
	attachmentService *services.AttachmentService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewCardHandler(cardService, attachmentService)

	r.Use(authMiddleware)
	r.Route("/{cardID}", func(r chi.Router) {
		r.Get("/", handler.GetCard)
		r.Put("/", handler.UpdateCard)
		r.Delete("/", handler.DeleteCard)
		r.Patch("/reorder", handler.ReorderCard)
		r.Patch("/move", handler.MoveCard)
		r.Post("/attachments", handler.attachmentHandler.Upload)
		r.Get("/attachments", handler.attachmentHandler.ListByCard)
	})
}

func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
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

	card, err := h.cardService.Get(r.Context(), userID, cardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch card")
		return
	}

	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
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

	var req CardUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	card, err := h.cardService.Get(r.Context(), userID, cardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch card")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		card.Title = title
	}
	if req.Description != nil {
		card.Description = *req.Description
	}
	if req.AssignedToID != nil {
		card.AssignedToID = req.AssignedToID
	}
	if req.DueDate != nil {
		card.DueDate = req.DueDate
	}
	if req.Priority != nil {
		if *req.Priority == "" {
			card.Priority = nil
		} else {
			priority := types.Priority(*req.Priority)
			if !priority.Valid() {
				writeError(w, http.StatusBadRequest, "invalid priority")
				return
			}
			card.Priority = &priority
		}
	}

	updated, err := h.cardService.Update(r.Context(), userID, card)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update card")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
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

	if err := h.cardService.Delete(r.Context(), userID, cardID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete card")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderCard changes a card's position within its current list.
func (h *CardHandler) ReorderCard(w http.ResponseWriter, r *http.Request) {
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

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}

	card, err := h.cardService.Reorder(r.Context(), userID, cardID, *req.Position)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reorder card")
		return
	}

	writeJSON(w, http.StatusOK, card)
}

// MoveCard transfers a card to another list on the same board.
func (h *CardHandler) MoveCard(w http.ResponseWriter, r *http.Request) {
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

	var req MoveCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "list_id is required")
		return
	}

	card, err := h.cardService.Move(r.Context(), userID, cardID, req.ListID, req.Position)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "card not found")
		case errors.Is(err, services.ErrDifferentBoard):
			writeError(w, http.StatusBadRequest, "cannot move card to a list in a different board")
		default:
			writeError(w, http.StatusInternalServerError, "failed to move card")
		}
		return
	}

	writeJSON(w, http.StatusOK, card)
}

type MoveCardRequest struct {
	ListID   uuid.UUID `json:"list_id"`
	Position int       `json:"position"`
}

// CardUpdateRequest carries the optional fields of a card update.
// Fields left out of the payload keep their current values; an empty
// priority string clears the priority.
type CardUpdateRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	AssignedToID *uuid.UUID `json:"assigned_to_id"`
	DueDate      *time.Time `json:"due_date"`
	Priority     *string    `json:"priority"`
}
