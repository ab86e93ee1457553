package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto its HTTP status.
func statusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation:
		if errors.Is(err, models.ErrAttachmentTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case models.KindAuth:
		return http.StatusUnauthorized
	case models.KindConflict:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the client-facing error. Transient and internal failures
// never leak their detail.
func errorBody(err error) ErrorResponse {
	body := ErrorResponse{Success: false, Error: models.ErrorCode(err), Message: err.Error()}
	switch models.KindOf(err) {
	case models.KindTransient:
		body.Message = "Temporary failure, please try again."
	case models.KindInternal:
		body.Error = "Internal"
		body.Message = "Something went wrong."
	case models.KindAuth:
		if errors.Is(err, models.ErrInvalidCredentials) {
			body.Message = "Invalid code or passcode"
		} else {
			body.Message = "Session is missing or expired. Please log in again."
		}
	}
	return body
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch models.KindOf(err) {
	case models.KindTransient:
		h.logger.Warn(r.Context(), "transient store failure", "path", r.URL.Path, "error", err)
	case models.KindInternal:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, statusFor(err), errorBody(err))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Success: false, Error: "InvalidInput", Message: "Invalid request body"})
		return false
	}
	return true
}
