package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/service"
	"github.com/gold-portfolio/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends a categorized error response. Internal causes are
// never echoed to the client.
func respondError(w http.ResponseWriter, err error) {
	catErr := apperrors.Categorize(err)
	respondJSON(w, catErr.StatusCode, ErrorResponse{Error: *catErr.ToServiceError()})
}

// respondCommand sends a command result with its own status
func respondCommand(w http.ResponseWriter, result service.CommandResult) {
	status := result.Status
	if status == 0 {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// maxBodyBytes bounds command payloads
const maxBodyBytes = 64 << 10

// parseJSONBody parses JSON request body.
func parseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.NewValidationError("body", err.Error())
	}
	return nil
}
