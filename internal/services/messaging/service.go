// Package messaging wraps the NATS connection used for detection ingest and
// alert publishing.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
)

type Service struct {
	conn   *nats.Conn
	cfg    *config.Config
	logger zerolog.Logger
}

func NewService(cfg *config.Config) (*Service, error) {
	logger := logging.NewServiceLogger(cfg, "messaging")

	opts := []nats.Option{
		nats.Name("sentinel-engine-" + cfg.EngineID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := logger.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS async error")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NatsURL, err)
	}

	logger.Info().Str("url", cfg.NatsURL).Msg("NATS connection established")

	return &Service{
		conn:   conn,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Publish sends data as JSON. It satisfies models.MessagePublisher.
func (s *Service) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return s.conn.Publish(subject, payload)
}

func (s *Service) Subscribe(subject string, handler func(subject string, data []byte)) (*nats.Subscription, error) {
	return s.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

// QueueSubscribe shares subject between every engine of the same queue group
// so each message is handled once.
func (s *Service) QueueSubscribe(subject, queue string, handler func(subject string, data []byte)) (*nats.Subscription, error) {
	return s.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Shutdown drains subscriptions and pending publishes, falling back to an
// immediate close after the drain timeout or when ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}

	closed := make(chan struct{})
	s.conn.SetClosedHandler(func(*nats.Conn) { close(closed) })

	if err := s.conn.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
		s.conn.Close()
		return nil
	}

	timeout := s.cfg.NatsDrainTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-closed:
		s.logger.Info().Msg("NATS connection drained")
	case <-time.After(timeout):
		s.logger.Warn().Dur("timeout", timeout).Msg("NATS drain timed out, closing")
		s.conn.Close()
	case <-ctx.Done():
		s.conn.Close()
		return ctx.Err()
	}
	return nil
}
