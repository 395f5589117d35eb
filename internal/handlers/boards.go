package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/taskboard/apiserver/internal/services"
	"github.com/taskboard/apiserver/internal/store"
	"github.com/taskboard/apiserver/types"
)

// BoardHandler provides HTTP handlers for boards.
type BoardHandler struct {
	boardService *services.BoardService
	listService  *services.ListService
}

func NewBoardHandler(boardService *services.BoardService, listService *services.ListService) *BoardHandler {
	return &BoardHandler{boardService: boardService, listService: listService}
}

// BoardRouter registers board routes on the given router. All of them
// require authentication.
func BoardRouter(
	r chi.Router,
	boardService *services.BoardService,
	listService *services.ListService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewBoardHandler(boardService, listService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListBoards)
	r.Post("/", handler.CreateBoard)
	r.Route("/{boardID}", func(r chi.Router) {
		r.Get("/", handler.GetBoard)
		r.Put("/", handler.UpdateBoard)
		r.Delete("/", handler.DeleteBoard)
		r.Post("/lists", handler.CreateList)
	})
}

func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	boards, err := h.boardService.ListByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list boards")
		return
	}

	writeJSON(w, http.StatusOK, boards)
}

func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req BoardUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	board, err := h.boardService.Create(r.Context(), userID, types.Board{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create board")
		return
	}

	writeJSON(w, http.StatusCreated, board)
}

// GetBoard returns the board with its lists and cards nested in
// position order.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	boardID, err := parseUUIDParam(r, "boardID")
	if err != nil {
		writeError(w, http.StatusNotFound, "board not found")
		return
	}

	detail, err := h.boardService.GetDetail(r.Context(), userID, boardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "board not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch board")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *BoardHandler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	boardID, err := parseUUIDParam(r, "boardID")
	if err != nil {
		writeError(w, http.StatusNotFound, "board not found")
		return
	}

	var req BoardUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	board, err := h.boardService.Get(r.Context(), userID, boardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "board not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch board")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		board.Title = title
	}
	if req.Description != nil {
		board.Description = *req.Description
	}

	board, err = h.boardService.Update(r.Context(), userID, board)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "board not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update board")
		return
	}

	writeJSON(w, http.StatusOK, board)
}

func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	boardID, err := parseUUIDParam(r, "boardID")
	if err != nil {
		writeError(w, http.StatusNotFound, "board not found")
		return
	}

	if err := h.boardService.Delete(r.Context(), userID, boardID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "board not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete board")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateList appends a new list at the end of the board.
func (h *BoardHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	boardID, err := parseUUIDParam(r, "boardID")
	if err != nil {
		writeError(w, http.StatusNotFound, "board not found")
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

	list, err := h.listService.Create(r.Context(), userID, boardID, types.List{Title: req.Title})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "board not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create list")
		return
	}

	writeJSON(w, http.StatusCreated, list)
}

type BoardUpsertRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BoardUpdateRequest carries the optional fields of a board update.
// Fields left out of the payload keep their current values.
type BoardUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}
