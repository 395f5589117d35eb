package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

func userIDFromContext(ctx context.Context) (uuid.UUID, error) {
	value := ctx.Value(contextSubjectKey)
	switch subject := value.(type) {
	case uuid.UUID:
		if subject == uuid.Nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return subject, nil
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(subject))
		if err != nil || parsed == uuid.Nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return parsed, nil
	default:
		return uuid.Nil, errors.New("missing subject")
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
