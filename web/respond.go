package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/envdash/uda/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v before writing any header so an encoding failure is
// reported as a 500 rather than a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding response failed", logging.Err(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
