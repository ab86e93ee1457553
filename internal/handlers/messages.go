package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/soconnect-backend/internal/middleware"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
)

// maxPageLimit caps ?limit= on conversation reads.
const maxPageLimit = 500

// SendMessageRequest is the body of POST /api/message.
type SendMessageRequest struct {
	To   string  `json:"to"`
	Text *string `json:"text"`
}

// MessageResponse carries one stored message.
type MessageResponse struct {
	Success bool            `json:"success"`
	Msg     *models.Message `json:"msg"`
}

// ConversationResponse carries a conversation, ascending.
type ConversationResponse struct {
	Success  bool             `json:"success"`
	Messages []models.Message `json:"messages"`
}

// ConversationsResponse carries the caller's conversation list.
type ConversationsResponse struct {
	Success       bool                         `json:"success"`
	Conversations []models.ConversationSummary `json:"conversations"`
}

// SendMessage appends a text message from the caller.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	from := middleware.UserCode(r.Context())
	msg, err := h.messages.Append(r.Context(), from, req.To, req.Text, nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Success: true, Msg: msg})
}

// Conversation returns the messages between the caller and {code}.
// Optional ?before_id= and ?limit= page backwards through history.
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	self := middleware.UserCode(r.Context())
	other := chi.URLParam(r, "code")
	msgs, err := h.messages.FetchConversation(r.Context(), self, other, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, ConversationResponse{Success: true, Messages: msgs})
}

// Conversations lists everyone the caller has exchanged messages with.
func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.index.ListConversations(r.Context(), middleware.UserCode(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConversationsResponse{Success: true, Conversations: list})
}

func parsePage(r *http.Request) (repository.Page, error) {
	var page repository.Page
	q := r.URL.Query()

	if v := q.Get("before_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return page, models.ErrInvalidInput
		}
		page.BeforeID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxPageLimit {
			return page, models.ErrInvalidInput
		}
		page.Limit = n
	}
	return page, nil
}
