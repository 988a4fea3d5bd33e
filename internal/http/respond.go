package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Fallenproud/create.xyzdashboard/internal/repository"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/assistant"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/auth"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/deploy"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/mockapi"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/project"
)

const maxJSONBody = 2 << 20

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, project.ErrContentTooLarge):
		return http.StatusRequestEntityTooLarge
	case project.IsValidation(err),
		errors.Is(err, mockapi.ErrInvalidEmail),
		errors.Is(err, mockapi.ErrInvalidProvider),
		errors.Is(err, mockapi.ErrInvalidEnvironment),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrUnknownRole),
		errors.Is(err, assistant.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, mockapi.ErrInvalidCredentials),
		errors.Is(err, mockapi.ErrInvalidMagicLink),
		errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, deploy.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeServiceError logs unexpected failures and answers with the mapped status.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
