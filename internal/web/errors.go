package web

// errors.go maps engine errors to HTTP responses.
//
// Every error is logged server-side with the request ID; the client gets a
// short message and a stable code it can quote:
//
//	SET001 - Unknown record set (404)
//	SET002 - Record set file not found (404)
//	SET003 - Record set could not be read (500)
//	REQ001 - Bad request parameter (400)
//	REQ002 - Request cancelled or timed out (503)

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/JonMunkholm/tabload/internal/core"
	"github.com/JonMunkholm/tabload/internal/logging"
)

var errBadRequest = errors.New("bad request")

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{core.ErrUnknownSchema, http.StatusNotFound, "SET001", "Unknown record set"},
	{errBadRequest, http.StatusBadRequest, "REQ001", "Invalid request parameter"},
	{context.Canceled, http.StatusServiceUnavailable, "REQ002", "Request was cancelled"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "REQ002", "Request timed out"},
	{fs.ErrNotExist, http.StatusNotFound, "SET002", "Record set file not found"},
}

// mapError returns the status, code and client message for err.
func mapError(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, "SET003", "Record set could not be read"
}

// respondError logs err with request context and writes a JSON error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err,
	)

	writeJSON(w, r, status, ErrorResponse{Error: message, Code: code})
}
