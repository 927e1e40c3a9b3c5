// Package natsbus ingests alarms pushed by remote gateways as JSON messages
// on a NATS subject.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/dispatchworks/alarmhub/internal/config"
	"github.com/dispatchworks/alarmhub/internal/domain/operation"
	"github.com/dispatchworks/alarmhub/internal/logger"
	"github.com/dispatchworks/alarmhub/internal/registry"
	"github.com/dispatchworks/alarmhub/internal/source"
)

// Alias is the registry alias of this source.
const Alias = "natsbus"

// ParamSubject is the job context parameter carrying the NATS subject the
// alarm arrived on.
const ParamSubject = "nats_subject"

// Source receives operations pushed over a NATS subject.
type Source struct {
	cfg config.NATS

	conn *nats.Conn
}

// New creates a NATS source from its configuration.
func New(cfg config.NATS) *Source {
	return &Source{cfg: cfg}
}

// Register adds the source to the registry.
func Register(r *registry.Registry[source.Source], cfg config.NATS) error {
	return r.Register(registry.Registration[source.Source]{
		Alias:       Alias,
		Description: "receives operations pushed as JSON over a NATS subject",
		New: func() (source.Source, error) {
			return New(cfg), nil
		},
	})
}

// Initialize connects to the NATS server.
func (s *Source) Initialize(_ context.Context) error {
	conn, err := nats.Connect(s.cfg.URL,
		nats.Name("alarm-hub"),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", s.cfg.URL, err)
	}

	s.conn = conn

	return nil
}

// Run subscribes to the configured subject and emits decoded operations
// until the context is canceled.
func (s *Source) Run(ctx context.Context, emit source.EmitFunc) error {
	subscription, err := s.conn.Subscribe(s.cfg.Subject, func(msg *nats.Msg) {
		op, err := decodeMessage(msg.Data)
		if err != nil {
			logger.Warnf(ctx, "Dropping malformed alarm message on %s: %v", msg.Subject, err)

			return
		}

		emit(op, map[string]string{ParamSubject: msg.Subject})
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Subject, err)
	}

	<-ctx.Done()

	if err = subscription.Unsubscribe(); err != nil {
		logger.Warnf(ctx, "Failed to unsubscribe from %s: %v", s.cfg.Subject, err)
	}

	return nil
}

// Dispose drains and closes the connection.
func (s *Source) Dispose() error {
	if s.conn == nil {
		return nil
	}

	if err := s.conn.Drain(); err != nil {
		return fmt.Errorf("drain nats connection: %w", err)
	}

	return nil
}

// decodeMessage parses a pushed operation. Remote gateways send a complete
// record; a missing number is rejected because it is the dedup key.
func decodeMessage(data []byte) (*operation.Operation, error) {
	op := operation.New()
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("decode alarm message: %w", err)
	}

	if op.Number == "" {
		return nil, errors.New("alarm message carries no operation number")
	}

	return op, nil
}
