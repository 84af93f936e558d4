// Package nats publishes match lifecycle facts to the message broker so
// sibling services (matchmaking, stats) can react without polling.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher is the broker-backed event publisher.
type Publisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// Connect dials the broker with reconnect options suited to a long-lived
// game server.
func Connect(url string, log zerolog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("truco-server"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect broker %s: %w", url, err)
	}
	return &Publisher{nc: nc, log: log.With().Str("component", "nats").Logger()}, nil
}

// Publish emits payload as JSON on subject.
func (p *Publisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", subject, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending publishes and drops the connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("broker drain failed")
	}
}
