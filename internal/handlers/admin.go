package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/soconnect-backend/internal/services"
)

// DeleteUserResponse reports what an account deletion removed.
type DeleteUserResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Deleted *services.DeletionResult `json:"deleted"`
}

// DeleteUser removes a user, their messages and their sessions.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Success: false, Error: "NotFound", Message: "Not found"})
		return
	}

	code := chi.URLParam(r, "code")
	res, err := h.admin.DeleteUser(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info(r.Context(), "✅ User deleted", "code", code, "messages", res.MessagesDeleted)
	writeJSON(w, http.StatusOK, DeleteUserResponse{
		Success: true,
		Message: "User deleted",
		Deleted: res,
	})
}
