package handlers

import (
	"time"

	"github.com/AnshRaj112/soconnect-backend/internal/events"
	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/services"
)

// Deps are the services the HTTP surface is built on. Uploads, Admin, Feed
// and SendLimiter may be nil.
type Deps struct {
	Auth         *services.Authority
	Messages     *services.MessageLog
	Index        *services.ConversationIndex
	Uploads      *services.AttachmentPipeline
	Admin        *services.AdminService
	Feed         events.Feed
	SendLimiter  *services.SendLimiter
	PollInterval time.Duration
	Logger       logging.Logger
}

// Handler serves the chat API.
type Handler struct {
	auth         *services.Authority
	messages     *services.MessageLog
	index        *services.ConversationIndex
	uploads      *services.AttachmentPipeline
	admin        *services.AdminService
	feed         events.Feed
	sendLimiter  *services.SendLimiter
	pollInterval time.Duration
	logger       logging.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		auth:         d.Auth,
		messages:     d.Messages,
		index:        d.Index,
		uploads:      d.Uploads,
		admin:        d.Admin,
		feed:         d.Feed,
		sendLimiter:  d.SendLimiter,
		pollInterval: d.PollInterval,
		logger:       d.Logger.With("component", "http"),
	}
}
