// Package soclient is a small HTTP client for the chat API. It implements
// chatsync.Fetcher so terminal and test clients can run the sync engine
// against a remote server.
package soclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// ErrNotLoggedIn is returned by calls that need a session when none is held.
var ErrNotLoggedIn = fmt.Errorf("%w: not logged in", models.ErrUnauthenticated)

// Client talks to one server with at most one session.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
	self  string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 15s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Self is the code of the logged-in user, or "".
func (c *Client) Self() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// Token is the current session token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.token, c.self = "", ""
	c.mu.Unlock()
}

type apiError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

var sentinels = map[string]error{
	"InvalidCode":           models.ErrInvalidCode,
	"InvalidInput":          models.ErrInvalidInput,
	"EmptyMessage":          models.ErrEmptyMessage,
	"SameParticipant":       models.ErrSameParticipant,
	"UnknownRecipient":      models.ErrUnknownRecipient,
	"AttachmentTooLarge":    models.ErrAttachmentTooLarge,
	"UnsupportedType":       models.ErrUnsupportedType,
	"InvalidCredentials":    models.ErrInvalidCredentials,
	"Unauthenticated":       models.ErrUnauthenticated,
	"CodeAlreadyRegistered": models.ErrCodeAlreadyRegistered,
	"TryAgain":              models.ErrTransient,
	"NotFound":              models.ErrNotFound,
}

// decodeError turns a failed response into one of the models sentinels when
// the server named one.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e apiError
	_ = json.Unmarshal(body, &e)

	if err, ok := sentinels[e.Error]; ok {
		if e.Message != "" && e.Message != err.Error() {
			return fmt.Errorf("%w: %s", err, e.Message)
		}
		return err
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return models.ErrUnauthenticated
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", models.ErrTransient, resp.Status)
	}
	if e.Message != "" {
		return fmt.Errorf("%s: %s", resp.Status, e.Message)
	}
	return fmt.Errorf("unexpected response: %s", resp.Status)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, auth bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth {
		token := c.Token()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := decodeError(resp)
		if auth && errors.Is(err, models.ErrUnauthenticated) {
			c.dropSession()
		}
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, auth bool, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, "application/json", body, auth, out)
}

type authResponse struct {
	Token string          `json:"token"`
	User  *models.Profile `json:"user"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, name, code, passcode string) (*models.Profile, error) {
	var resp authResponse
	in := map[string]string{"name": name, "code": code, "passcode": passcode}
	if err := c.doJSON(ctx, http.MethodPost, "/api/register", in, false, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Login replaces any held session with a new one.
func (c *Client) Login(ctx context.Context, code, passcode string) (*models.Profile, error) {
	var resp authResponse
	in := map[string]string{"code": code, "passcode": passcode}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", in, false, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.User == nil {
		return nil, errors.New("login response is missing the session")
	}
	c.mu.Lock()
	c.token, c.self = resp.Token, resp.User.Code
	c.mu.Unlock()
	return resp.User, nil
}

// Logout revokes the session server-side, best effort, and always forgets it locally.
func (c *Client) Logout(ctx context.Context) {
	if c.Token() != "" {
		_ = c.doJSON(ctx, http.MethodPost, "/api/logout", nil, true, nil)
	}
	c.dropSession()
}

type messageResponse struct {
	Msg *models.Message `json:"msg"`
}

// SendText appends a text message to the conversation with to.
func (c *Client) SendText(ctx context.Context, to, text string) (*models.Message, error) {
	var resp messageResponse
	in := map[string]string{"to": to, "text": text}
	if err := c.doJSON(ctx, http.MethodPost, "/api/message", in, true, &resp); err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Upload sends a file, with an optional caption, as an attachment message.
func (c *Client) Upload(ctx context.Context, to, filename string, data []byte, caption string) (*models.Message, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("to", to)
	if caption != "" {
		_ = mw.WriteField("caption", caption)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload", mw.FormDataContentType(), &buf, true, &resp); err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Conversation reads the messages with other. Zero values mean no paging.
func (c *Client) Conversation(ctx context.Context, other string, beforeID int64, limit int) ([]models.Message, error) {
	q := url.Values{}
	if beforeID > 0 {
		q.Set("before_id", strconv.FormatInt(beforeID, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/conversation/" + url.PathEscape(other)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Conversations lists the caller's counterparties, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// FetchConversation reads the whole conversation behind key for the sync engine.
func (c *Client) FetchConversation(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
	self := c.Self()
	if self == "" {
		return nil, models.ErrUnauthenticated
	}
	return c.Conversation(ctx, key.Other(self), 0, 0)
}
