package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vnmchuo/quill/internal/apperr"
	"github.com/vnmchuo/quill/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// writeError maps err to its status and writes {"error": message}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", err, "path", r.URL.Path)
	} else {
		logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err.Error())
	}
	writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.TooLarge("request body exceeds %d bytes", tooLarge.Limit)
	}
	return apperr.Validation("invalid request body")
}
