// Package fanout pushes alert lifecycle messages to live dashboard
// subscribers.
package fanout

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
)

const defaultBuffer = 64

// ErrSlowConsumer is reported by a subscriber that was disconnected because
// its buffer was full.
var ErrSlowConsumer = errors.New("subscriber buffer full")

// Subscriber receives messages in publish order until it is unsubscribed
// or disconnected.
type Subscriber struct {
	ID string

	ch   chan models.FanoutMessage
	err  error
	once sync.Once
}

// Messages is closed when the subscriber is removed from the hub.
func (s *Subscriber) Messages() <-chan models.FanoutMessage {
	return s.ch
}

// Err returns ErrSlowConsumer after a forced disconnect, nil otherwise.
// Only meaningful once Messages is closed.
func (s *Subscriber) Err() error {
	return s.err
}

func (s *Subscriber) close(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.ch)
	})
}

// Hub is a non-blocking broadcaster with a bounded buffer per subscriber.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]*Subscriber
	buffer   int
	counters *observability.Counters
	logger   zerolog.Logger
}

func NewHub(cfg *config.Config, counters *observability.Counters) *Hub {
	buffer := defaultBuffer
	if cfg != nil && cfg.FanoutBuffer > 0 {
		buffer = cfg.FanoutBuffer
	}
	return &Hub{
		subs:     make(map[string]*Subscriber),
		buffer:   buffer,
		counters: counters,
		logger:   logging.NewServiceLogger(cfg, "fanout"),
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID: uuid.NewString(),
		ch: make(chan models.FanoutMessage, h.buffer),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Debug().Str("subscriber_id", sub.ID).Int("subscribers", count).Msg("Subscriber added")
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.subs[sub.ID]; ok {
		delete(h.subs, sub.ID)
	}
	h.mu.Unlock()
	sub.close(nil)
}

// Publish delivers msg to every subscriber without blocking. A subscriber
// whose buffer is full is disconnected on the spot.
func (h *Hub) Publish(msg models.FanoutMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		select {
		case sub.ch <- msg:
		default:
			delete(h.subs, id)
			sub.close(ErrSlowConsumer)
			h.counters.Inc(observability.FanoutDisconnects)
			h.logger.Warn().
				Str("subscriber_id", id).
				Str("type", string(msg.Type)).
				Msg("Disconnected slow subscriber")
		}
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close(nil)
	}
}
