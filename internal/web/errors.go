package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request ID. The client gets the
// core.MapError message, action and support code, with a status derived
// from the error kind.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/regionalert/internal/core"
	"github.com/JonMunkholm/regionalert/internal/logging"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindMissingRegionCode, core.KindMissingMessage:
		return http.StatusBadRequest
	case core.KindInvalidRegionCode:
		return http.StatusUnprocessableEntity
	case core.KindNotFound, core.KindOpen, core.KindRead:
		return http.StatusBadRequest
	case core.KindPersistence, core.KindPublish:
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its mapped message with statusFor(err).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorStatus(w, r, err, statusFor(err))
}

func (s *Server) respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}
	respondJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// respondBadRequest reports a malformed request that never reached core.
func respondBadRequest(w http.ResponseWriter, r *http.Request, code, msg, action string) {
	logging.FromContext(r.Context()).Warn("bad request",
		"path", r.URL.Path,
		"method", r.Method,
		"code", code,
		"reason", msg,
	)
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   msg,
		Message: msg,
		Action:  action,
		Code:    code,
	})
}

// respondJSON writes v with status. Encoding errors are only logged since
// the header is already sent.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
