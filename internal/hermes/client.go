package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of Client the turn pipeline needs.
type Publisher interface {
	Publish(subject string, data any) error
}

// Handler receives the subject and raw payload of one message.
type Handler func(subject string, data []byte)

// ClientName identifies engine connections in NATS monitoring.
const ClientName = "decoy-engine"

// Client carries engine traffic over NATS: inbound messages in, replies and
// session events out.
type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

// NewClient connects to url. The connection retries in the background, so a
// broker that is down at startup does not stop the engine.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	opts := []nats.Option{
		nats.Name(ClientName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("event bus disconnected, replies and events are buffered", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("event bus reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("event bus error", "subject", subject, "error", err)
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

// Publish sends data as JSON on subject.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Subscribe(subject string, handler Handler) error {
	sub, err := c.conn.Subscribe(subject, c.dispatch(handler))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("listening for messages", "subject", subject)
	return nil
}

// QueueSubscribe spreads messages on subject across every replica in queue,
// so each inbound message is processed by one engine.
func (c *Client) QueueSubscribe(subject, queue string, handler Handler) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, c.dispatch(handler))
	if err != nil {
		return fmt.Errorf("queue subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("listening for messages", "subject", subject, "queue", queue)
	return nil
}

// dispatch adapts handler to NATS. A panicking handler loses its message but
// not the subscription.
func (c *Client) dispatch(handler Handler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("message handler panicked", "subject", msg.Subject, "panic", fmt.Sprint(r))
			}
		}()
		handler(msg.Subject, msg.Data)
	}
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	return c.conn.IsConnected()
}

// Close stops receiving and flushes pending replies before disconnecting.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("event bus drain failed", "error", err)
	}
}
