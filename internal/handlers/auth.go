package handlers

import (
	"net/http"

	"github.com/AnshRaj112/soconnect-backend/internal/middleware"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Passcode string `json:"passcode"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Code     string `json:"code"`
	Passcode string `json:"passcode"`
}

// AuthResponse is returned by register, login, logout and me.
type AuthResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Token   string          `json:"token,omitempty"`
	User    *models.Profile `json:"user,omitempty"`
}

// Register creates a user with a caller-chosen five-digit code.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.auth.Register(r.Context(), req.Name, req.Code, req.Passcode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	profile := user.Profile()
	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: "Registered successfully",
		User:    &profile,
	})
}

// Login exchanges code and passcode for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Code, req.Passcode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	profile := user.Profile()
	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		Token:   token,
		User:    &profile,
	})
}

// Logout revokes the caller's token. It always succeeds, even for unknown or
// missing tokens, so client cleanup can proceed.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.BearerToken(r); token != "" {
		h.auth.Logout(r.Context(), token)
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Logged out"})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Profile(r.Context(), middleware.UserCode(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	profile := user.Profile()
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: &profile})
}
