package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskboard/apiserver/internal/services"
	"github.com/taskboard/apiserver/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler provides profile endpoints for the authenticated user.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers user profile routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService)

	r.Use(authMiddleware)
	r.Put("/me", handler.UpdateMe)
	r.Patch("/me/password", handler.UpdatePassword)
}

// UpdateMe updates the caller's profile fields. Email and username
// stay unique; collisions with other accounts are rejected.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			writeError(w, http.StatusBadRequest, "invalid email")
			return
		}
		if email != user.Email {
			if _, err := h.userService.GetByEmail(r.Context(), email); err == nil {
				writeError(w, http.StatusConflict, "email already registered")
				return
			} else if !errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to check user")
				return
			}
		}
		user.Email = email
	}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			writeError(w, http.StatusBadRequest, "username must not be empty")
			return
		}
		if username != user.Username {
			if _, err := h.userService.GetByUsername(r.Context(), username); err == nil {
				writeError(w, http.StatusConflict, "username already taken")
				return
			} else if !errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "failed to check user")
				return
			}
		}
		user.Username = username
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}

	updated, err := h.userService.Update(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email or username already in use")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// UpdatePassword verifies the current password and replaces it.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		writeError(w, http.StatusBadRequest, "incorrect password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	user.PasswordHash = string(hashed)
	updated, err := h.userService.Update(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
