package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with support codes
//   - Sent with the HTTP status that matches the error class
//
// The error flow:
//  1. Handler receives an error from core.Service
//  2. Calls s.respondError(w, r, err)
//  3. core.NewUserError pairs it with the user message, statusFor picks the status
//  4. Technical error + request id + caller id are logged
//  5. The JSON envelope {success: false, message, action, code} is written

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/csvshare/internal/core"
	"github.com/JonMunkholm/csvshare/internal/logging"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusClientClosedRequest is the nginx status for a client that went away
// before the response was ready. The client never reads it; it keeps
// cancellations out of the 5xx counts.
const statusClientClosedRequest = 499

// statusRules is checked in order; the first match wins.
var statusRules = []struct {
	target error
	status int
}{
	{core.ErrForbidden, http.StatusForbidden},
	{core.ErrNotFound, http.StatusNotFound},
	{core.ErrStorageNameConflict, http.StatusConflict},
	{core.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
	{core.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
	{core.ErrMalformedInput, http.StatusUnprocessableEntity},
	{core.ErrNoData, http.StatusUnprocessableEntity},
	{core.ErrInvalidAccessLevel, http.StatusBadRequest},
	{core.ErrInvalidRecipient, http.StatusBadRequest},
	{core.ErrNoFile, http.StatusBadRequest},
	{core.ErrTooManyWrites, http.StatusTooManyRequests},
	{core.ErrNotificationFailed, http.StatusBadGateway},
	{core.ErrContentMissing, http.StatusInternalServerError},
	{core.ErrSchemaMismatch, http.StatusInternalServerError},
	{core.ErrStorageIO, http.StatusInternalServerError},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{context.Canceled, statusClientClosedRequest},
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	for _, rule := range statusRules {
		if errors.Is(err, rule.target) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err with request context and writes the mapped user
// message. Client errors log at warn, server errors at error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	uerr := core.NewUserError(err)
	status := statusFor(uerr)
	logRequestError(r, status, uerr)
	respondErrorJSON(w, uerr.User, status)
}

// logRequestError logs the technical error behind a failed request.
func logRequestError(r *http.Request, status int, uerr *core.UserError) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", uerr.Technical.Error(),
		"code", uerr.User.Code,
	)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSONStatus(w, status, ErrorResponse{
		Success: false,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondBadRequest rejects a request that never reached the service, such
// as an unparsable id or body.
func respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	logging.FromContext(r.Context()).Warn("bad request",
		"path", r.URL.Path,
		"method", r.Method,
		"reason", message,
	)
	writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
		Success: false,
		Message: message,
		Code:    "REQ001",
	})
}
