package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
)

// QueueSubscriber is the part of messaging.Service used for ingest.
type QueueSubscriber interface {
	QueueSubscribe(subject, queue string, handler func(subject string, data []byte)) (*nats.Subscription, error)
}

// NATSSubscriber feeds DETECTIONS_SUBJECT into the handler. Engines sharing
// a queue group split the stream between them.
type NATSSubscriber struct {
	bus     QueueSubscriber
	handler *Handler
	subject string
	queue   string
	logger  zerolog.Logger

	sub *nats.Subscription
}

func NewNATSSubscriber(cfg *config.Config, bus QueueSubscriber, handler *Handler) *NATSSubscriber {
	return &NATSSubscriber{
		bus:     bus,
		handler: handler,
		subject: cfg.DetectionsSubject,
		queue:   cfg.NatsQueueGroup,
		logger:  logging.NewServiceLogger(cfg, "ingest-nats"),
	}
}

func (s *NATSSubscriber) Start() error {
	sub, err := s.bus.QueueSubscribe(s.subject, s.queue, s.onMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info().Str("subject", s.subject).Str("queue", s.queue).Msg("Subscribed to detection events")
	return nil
}

func (s *NATSSubscriber) onMessage(subject string, data []byte) {
	results, err := s.handler.HandlePayload(context.Background(), "nats:"+subject, data)
	if err != nil {
		return
	}
	if sum := Summarize(results); sum.Accepted != len(results) {
		s.logger.Debug().
			Str("subject", subject).
			Int("accepted", sum.Accepted).
			Int("malformed", sum.Malformed).
			Int("dropped", sum.Dropped).
			Msg("Detection message partially accepted")
	}
}

func (s *NATSSubscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return err
	}
	return nil
}
