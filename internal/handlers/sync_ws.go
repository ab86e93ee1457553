package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/soconnect-backend/internal/chatsync"
	"github.com/AnshRaj112/soconnect-backend/internal/metrics"
	"github.com/AnshRaj112/soconnect-backend/internal/middleware"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
	"github.com/AnshRaj112/soconnect-backend/internal/services"
	"github.com/AnshRaj112/soconnect-backend/pkg/utils"
)

const (
	wsReadLimit    = 64 << 10
	wsPongWait     = 90 * time.Second
	wsPingPeriod   = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Sync frame types.
const (
	FrameSnapshot        = "snapshot"
	FrameSent            = "sent"
	FrameError           = "error"
	FramePong            = "pong"
	FrameUnauthenticated = "unauthenticated"

	FrameSend = "send"
	FramePing = "ping"
)

// errSendRateLimited is returned by a socket send that exceeded the sender's allowance.
var errSendRateLimited = errors.New("send rate limit exceeded")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the session token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SyncFrame is a server-to-client frame on the sync socket.
type SyncFrame struct {
	Type         string           `json:"type"`
	Conversation string           `json:"conversation,omitempty"`
	Messages     []models.Message `json:"messages,omitempty"`
	Msg          *models.Message  `json:"msg,omitempty"`
	Error        string           `json:"error,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// ClientFrame is a client-to-server frame on the sync socket.
type ClientFrame struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// syncConn serializes writes to one socket.
type syncConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *syncConn) write(frame SyncFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(frame)
}

func (c *syncConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// SyncSocket runs the sync engine server-side for the conversation between
// the caller and {code}. Every change to the rendered id set is pushed as a
// full snapshot frame; clients replace what they show with it.
func (h *Handler) SyncSocket(w http.ResponseWriter, r *http.Request) {
	self := middleware.UserCode(r.Context())
	token := middleware.SessionToken(r.Context())
	other := utils.NormalizeCode(chi.URLParam(r, "code"))
	if err := h.checkCounterparty(r.Context(), self, other); err != nil {
		h.writeError(w, r, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	conn := &syncConn{conn: ws}
	defer ws.Close()

	metrics.SyncSockets.Inc()
	defer metrics.SyncSockets.Dec()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	hangUp := func() {
		cancel()
		ws.Close()
	}

	key := models.NewConversationKey(self, other)

	// The session is re-checked on every tick so a logout or deletion
	// elsewhere ends this socket.
	fetcher := chatsync.FetcherFunc(func(ctx context.Context, key models.ConversationKey) ([]models.Message, error) {
		if _, err := h.auth.Authorize(ctx, token); err != nil {
			return nil, err
		}
		return h.messages.FetchConversation(ctx, key.A, key.B, repository.Page{})
	})
	renderer := chatsync.RendererFunc(func(key models.ConversationKey, msgs []models.Message) {
		if msgs == nil {
			msgs = []models.Message{}
		}
		if err := conn.write(SyncFrame{Type: FrameSnapshot, Conversation: key.String(), Messages: msgs}); err != nil {
			hangUp()
		}
	})

	poller := chatsync.NewPoller(chatsync.NewEngine(fetcher), renderer,
		chatsync.WithInterval(h.pollInterval),
		chatsync.WithTickHook(func(o chatsync.Outcome, _ error) {
			metrics.SyncPolls.WithLabelValues(o.String()).Inc()
		}),
		chatsync.WithUnauthenticatedHook(func() {
			_ = conn.write(SyncFrame{Type: FrameUnauthenticated, Message: "Session is missing or expired. Please log in again."})
			hangUp()
		}),
	)
	defer poller.Close()

	if h.feed != nil {
		unsubscribe, err := h.feed.Subscribe(key, poller.Nudge)
		if err != nil {
			h.logger.Warn(ctx, "change feed subscribe failed, polling only", "conversation", key.String(), "error", err)
		} else {
			defer unsubscribe()
		}
	}

	h.logger.Info(ctx, "✅ Sync socket opened", "user", self, "conversation", key.String())
	poller.Open(ctx, key)

	go h.pingLoop(ctx, conn, hangUp)
	h.readLoop(ctx, ws, conn, poller, token, self, other)
	h.logger.Info(ctx, "Sync socket closed", "user", self, "conversation", key.String())
}

// checkCounterparty validates the pair before upgrading so bad requests get
// a plain HTTP error.
func (h *Handler) checkCounterparty(ctx context.Context, self, other string) error {
	if err := services.ValidateParticipants(self, other); err != nil {
		return err
	}
	if _, err := h.auth.Profile(ctx, other); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnknownRecipient
		}
		return err
	}
	return nil
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, conn *syncConn, poller *chatsync.Poller, token, self, other string) {
	ws.SetReadLimit(wsReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var frame ClientFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				h.logger.Warn(ctx, "sync socket read failed", "user", self, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))

		switch frame.Type {
		case FramePing:
			_ = conn.write(SyncFrame{Type: FramePong})
		case FrameSend:
			text := frame.Text
			msg, err := poller.Send(ctx, func(ctx context.Context) (*models.Message, error) {
				// Same guards as POST /api/message: a live session, then the sender's allowance.
				if _, err := h.auth.Authorize(ctx, token); err != nil {
					return nil, err
				}
				if _, ok := h.sendLimiter.Allow(ctx, self); !ok {
					return nil, errSendRateLimited
				}
				return h.messages.Append(ctx, self, other, text, nil)
			})
			switch {
			case errors.Is(err, models.ErrUnauthenticated):
				return
			case msg != nil:
				// Stored; a failed refresh only delays the next snapshot.
				_ = conn.write(SyncFrame{Type: FrameSent, Msg: msg})
			case errors.Is(err, errSendRateLimited):
				_ = conn.write(SyncFrame{Type: FrameError, Error: "RateLimited", Message: "You are sending messages too quickly. Please wait a moment."})
			case err != nil:
				body := errorBody(err)
				_ = conn.write(SyncFrame{Type: FrameError, Error: body.Error, Message: body.Message})
			}
		default:
			_ = conn.write(SyncFrame{Type: FrameError, Error: "InvalidInput", Message: "unknown frame type"})
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *syncConn, hangUp func()) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				hangUp()
				return
			}
		}
	}
}
