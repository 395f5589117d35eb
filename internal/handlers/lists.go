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

// ListHandler provides HTTP handlers for lists.
type ListHandler struct {
	listService *services.ListService
	cardService *services.CardService
}

func NewListHandler(listService *services.ListService, cardService *services.CardService) *ListHandler {
	return &ListHandler{listService: listService, cardService: cardService}
}

// ListRouter registers list routes on the given router.
func ListRouter(
	r chi.Router,
	listService *services.ListService,
	cardService *services.CardService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewListHandler(listService, cardService)

	r.Use(authMiddleware)
	r.Route("/{listID}", func(r chi.Router) {
		r.Get("/", handler.GetList)
		r.Put("/", handler.UpdateList)
		r.Delete("/", handler.DeleteList)
		r.Patch("/reorder", handler.ReorderList)
		r.Post("/cards", handler.CreateCard)
	})
}

func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	listID, err := parseUUIDParam(r, "listID")
	if err != nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	list, err := h.listService.Get(r.Context(), userID, listID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "list not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch list")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *ListHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	listID, err := parseUUIDParam(r, "listID")
	if err != nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	var req ListUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	list, err := h.listService.Update(r.Context(), userID, types.List{ID: listID, Title: req.Title})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "list not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update list")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *ListHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	listID, err := parseUUIDParam(r, "listID")
	if err != nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	if err := h.listService.Delete(r.Context(), userID, listID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "list not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete list")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderList changes a list's position within its board.
func (h *ListHandler) ReorderList(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	listID, err := parseUUIDParam(r, "listID")
	if err != nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}

	list, err := h.listService.Reorder(r.Context(), userID, listID, *req.Position)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "list not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reorder list")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// CreateCard appends a new card at the end of the list.
func (h *ListHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	listID, err := parseUUIDParam(r, "listID")
	if err != nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	card, ok := decodeCardRequest(w, r)
	if !ok {
		return
	}

	created, err := h.cardService.Create(r.Context(), userID, listID, card)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "list not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create card")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

type ListUpsertRequest struct {
	Title string `json:"title"`
}

// ReorderRequest carries a target position. The pointer distinguishes
// a missing field from an explicit zero.
type ReorderRequest struct {
	Position *int `json:"position"`
}

// CardUpsertRequest is the payload for creating a card.
type CardUpsertRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	AssignedToID *uuid.UUID `json:"assigned_to_id"`
	DueDate      *time.Time `json:"due_date"`
	Priority     *string    `json:"priority"`
}

// decodeCardRequest parses and validates a card payload, writing the
// error response itself when validation fails.
func decodeCardRequest(w http.ResponseWriter, r *http.Request) (types.Card, bool) {
	var req CardUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return types.Card{}, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return types.Card{}, false
	}

	card := types.Card{
		Title:        req.Title,
		Description:  req.Description,
		AssignedToID: req.AssignedToID,
		DueDate:      req.DueDate,
	}
	if req.Priority != nil && *req.Priority != "" {
		priority := types.Priority(*req.Priority)
		if !priority.Valid() {
			writeError(w, http.StatusBadRequest, "invalid priority")
			return types.Card{}, false
		}
		card.Priority = &priority
	}
	return card, true
}
