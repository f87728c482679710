// Package notify publishes lifecycle events to NATS so downstream
// consumers can react to uploads, moves and deletes without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/coldkeep/coldkeep/internal/lifecycle"
)

const defaultSubjectPrefix = "coldkeep"

// publisher is the slice of the NATS connection the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink sends lifecycle events as JSON messages on
// "<prefix>.files.<event>" subjects. Delivery is fire and forget: the
// client buffers while disconnected and the manager logs publish errors
// without failing the operation.
type NATSSink struct {
	nc     *nats.Conn
	pub    publisher
	prefix string
}

var _ lifecycle.EventSink = (*NATSSink)(nil)

// NewNATSSink dials NATS and returns a sink. The connection reconnects
// forever with a short backoff.
func NewNATSSink(url, prefix string) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name("coldkeep-events"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info().Str("url", url).Str("prefix", prefix).Msg("Connected to NATS")
	s := newSink(nc, prefix)
	s.nc = nc
	return s, nil
}

// newSink builds a sink over any publisher. Tests use this to capture
// messages without a live server.
func newSink(pub publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSSink{pub: pub, prefix: prefix}
}

// Close drains the underlying NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

// Publish implements lifecycle.EventSink.
func (s *NATSSink) Publish(_ context.Context, e lifecycle.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.pub.Publish(s.subject(e.Type), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// subject builds the NATS subject for an event type.
func (s *NATSSink) subject(eventType string) string {
	return s.prefix + ".files." + eventType
}
