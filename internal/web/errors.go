package web

// errors.go provides unified error response handling for the web layer.
//
// Errors are logged with full technical detail and the request id, then
// mapped through sde.MapError to a short message, action and code. API
// routes answer JSON; pages answer an HTML error page.

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sdemirror/internal/sde"
	"github.com/JonMunkholm/sdemirror/internal/store"
	"github.com/JonMunkholm/sdemirror/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status of err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, sde.ErrRefreshRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := sde.MapError(err)

	logArgs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	}
	if statusCode >= http.StatusInternalServerError {
		slog.Error("request error", logArgs...)
	} else {
		slog.Debug("request error", logArgs...)
	}

	if wantsJSON(r) {
		writeJSON(w, statusCode, ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		})
		return
	}

	templ.Handler(
		templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code),
		templ.WithStatus(statusCode),
	).ServeHTTP(w, r)
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
