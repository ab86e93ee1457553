package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// SubjectPrefix namespaces conversation change subjects.
const SubjectPrefix = "soconnect.conversation."

// Subject is the NATS subject carrying change signals for key.
func Subject(key models.ConversationKey) string {
	return SubjectPrefix + key.A + "." + key.B
}

// NATSFeed shares change signals between server instances over core NATS.
type NATSFeed struct {
	nc     *nats.Conn
	logger logging.Logger
}

// ConnectNATS dials the server at url with reconnects enabled.
func ConnectNATS(url string, logger logging.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("soconnect-backend"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info(context.Background(), "nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

func NewNATSFeed(nc *nats.Conn, logger logging.Logger) *NATSFeed {
	return &NATSFeed{nc: nc, logger: logger.With("component", "nats_feed")}
}

func (f *NATSFeed) ConversationChanged(ctx context.Context, key models.ConversationKey) {
	if err := f.nc.Publish(Subject(key), []byte(key.String())); err != nil {
		f.logger.Warn(ctx, "publish conversation change failed", "conversation", key.String(), "error", err)
	}
}

func (f *NATSFeed) Subscribe(key models.ConversationKey, fn func()) (func(), error) {
	sub, err := f.nc.Subscribe(Subject(key), func(*nats.Msg) { fn() })
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Subject(key), err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
