package api

import (
	"encoding/json"
	"net/http"

	"github.com/arcalabs/arca/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger log.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger log.Logger, status int, msg string) {
	writeJSON(w, logger, status, errorBody{Error: msg})
}
