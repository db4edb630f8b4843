// Package events publishes domain events to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher emits an event on a subject relative to the configured prefix.
type Publisher interface {
	Publish(subject string, payload interface{}) error
	Close()
}

// NatsPublisher publishes JSON encoded events on a NATS connection.
type NatsPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNatsPublisher connects to url and reconnects indefinitely on drops.
func NewNatsPublisher(url, prefix string, logger *zap.Logger) (*NatsPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name("school-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NatsPublisher{conn: conn, prefix: strings.TrimSuffix(prefix, "."), logger: logger}, nil
}

// Publish marshals payload and sends it on <prefix>.<subject>.
func (p *NatsPublisher) Publish(subject string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	full := Subject(p.prefix, subject)
	if err := p.conn.Publish(full, body); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	p.logger.Debug("event published", zap.String("subject", full))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Subject joins a prefix and a relative subject.
func Subject(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// Noop discards every event. It is used when NATS is disabled.
type Noop struct{}

func (Noop) Publish(string, interface{}) error { return nil }

func (Noop) Close() {}
