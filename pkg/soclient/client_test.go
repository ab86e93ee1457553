package soclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// fakeServer answers just enough of the API for the client.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer tok-ann"
	}

	r.Post("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["passcode"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "InvalidCredentials", "message": "Invalid code or passcode"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "tok-ann", "user": map[string]string{"code": "11111", "name": "Ann"}})
	})
	r.Post("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	r.Get("/api/conversation/{code}", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthenticated"})
			return
		}
		if chi.URLParam(r, "code") == "55555" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "TryAgain"})
			return
		}
		text := "before=" + r.URL.Query().Get("before_id") + " limit=" + r.URL.Query().Get("limit")
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": []models.Message{
			{ID: 1, From: chi.URLParam(r, "code"), To: "11111", Text: &text},
		}})
	})
	r.Post("/api/message", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["to"] == "11111" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "SameParticipant", "message": "sender and recipient must differ"})
			return
		}
		text := in["text"]
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "msg": models.Message{ID: 7, From: "11111", To: in["to"], Text: &text}})
	})
	r.Post("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "msg": models.Message{
			ID: 8, From: "11111", To: r.FormValue("to"),
			Attachment: &models.Attachment{FileName: header.Filename, FileSize: int64(len(data))},
		}})
	})
	r.Get("/api/conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversations": []models.ConversationSummary{{CounterpartyCode: "22222"}}})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginAndFetch(t *testing.T) {
	ctx := context.Background()
	c := New(fakeServer(t).URL)

	_, err := c.FetchConversation(ctx, models.NewConversationKey("11111", "22222"))
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = c.Login(ctx, "11111", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Empty(t, c.Token())

	user, err := c.Login(ctx, "11111", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, "11111", c.Self())

	msgs, err := c.FetchConversation(ctx, models.NewConversationKey("22222", "11111"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "22222", msgs[0].From)

	msgs, err = c.Conversation(ctx, "22222", 40, 5)
	require.NoError(t, err)
	assert.Equal(t, "before=40 limit=5", *msgs[0].Text)

	list, err := c.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "22222", list[0].CounterpartyCode)
}

func TestErrorMapping(t *testing.T) {
	ctx := context.Background()
	c := New(fakeServer(t).URL)
	_, err := c.Login(ctx, "11111", "secret")
	require.NoError(t, err)

	_, err = c.SendText(ctx, "11111", "me")
	assert.ErrorIs(t, err, models.ErrSameParticipant)

	_, err = c.Conversation(ctx, "55555", 0, 0)
	assert.ErrorIs(t, err, models.ErrTransient)
	assert.Equal(t, "11111", c.Self(), "a transient failure keeps the session")
}

func TestUnauthorizedDropsSession(t *testing.T) {
	ctx := context.Background()
	c := New(fakeServer(t).URL)
	_, err := c.Login(ctx, "11111", "secret")
	require.NoError(t, err)

	// Simulate a revoked token.
	c.mu.Lock()
	c.token = "revoked"
	c.mu.Unlock()

	_, err = c.Conversation(ctx, "22222", 0, 0)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	assert.Empty(t, c.Token())
	assert.Empty(t, c.Self())
}

func TestSendAndUpload(t *testing.T) {
	ctx := context.Background()
	c := New(fakeServer(t).URL)
	_, err := c.Login(ctx, "11111", "secret")
	require.NoError(t, err)

	msg, err := c.SendText(ctx, "22222", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.ID)
	assert.Equal(t, "hello", *msg.Text)

	msg, err = c.Upload(ctx, "22222", "notes.txt", []byte("abc"), "fyi")
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "notes.txt", msg.Attachment.FileName)
	assert.Equal(t, int64(3), msg.Attachment.FileSize)

	c.Logout(ctx)
	assert.Empty(t, c.Token())
	_, err = c.SendText(ctx, "22222", "again")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
