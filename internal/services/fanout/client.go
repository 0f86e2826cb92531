package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
)

// ConnState is a state of the reconnecting client.
type ConnState string

const (
	StateConnecting ConnState = "CONNECTING"
	StateConnected  ConnState = "CONNECTED"
	StateFailed     ConnState = "FAILED"
	StateRetrying   ConnState = "RETRYING"
	StateGivenUp    ConnState = "GIVEN_UP"
)

// ErrGivenUp is returned by Client.Run once retries are exhausted.
var ErrGivenUp = errors.New("fan-out client gave up reconnecting")

// StateChange is reported for every transition. Attempt is the retry
// number for RETRYING and zero otherwise.
type StateChange struct {
	State   ConnState
	Attempt int
	Err     error
}

// ClientOptions configures a Client.
type ClientOptions struct {
	MaxRetries    int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	OnStateChange func(StateChange)
	Dialer        *websocket.Dialer
}

// ClientOptionsFromConfig reads WS_CLIENT_* settings.
func ClientOptionsFromConfig(cfg *config.Config) ClientOptions {
	return ClientOptions{
		MaxRetries: cfg.WSClientMaxRetries,
		BackoffMin: cfg.WSClientBackoffMin,
		BackoffMax: cfg.WSClientBackoffMax,
	}
}

// Client follows a fan-out websocket with bounded reconnects:
// CONNECTING -> CONNECTED -> FAILED -> RETRYING(n) -> CONNECTING ... and
// GIVEN_UP once n exceeds MaxRetries. A successful connection resets n.
type Client struct {
	url    string
	opts   ClientOptions
	logger zerolog.Logger

	mu      sync.Mutex
	state   ConnState
	attempt int
}

func NewClient(url string, opts ClientOptions) *Client {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = opts.BackoffMin
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		url:    url,
		opts:   opts,
		logger: logging.NewServiceLogger(nil, "fanout-client").With().Str("url", url).Logger(),
	}
}

// State returns the current state and retry attempt.
func (c *Client) State() (ConnState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.attempt
}

func (c *Client) transition(state ConnState, attempt int, err error) {
	c.mu.Lock()
	c.state = state
	c.attempt = attempt
	c.mu.Unlock()

	ev := c.logger.Debug()
	if state == StateFailed || state == StateGivenUp {
		ev = c.logger.Warn()
	}
	ev.Str("state", string(state)).Int("attempt", attempt).Err(err).Msg("Fan-out client state changed")

	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(StateChange{State: state, Attempt: attempt, Err: err})
	}
}

// Backoff returns the wait before retry attempt n (1-based).
func (c *Client) Backoff(n int) time.Duration {
	d := c.opts.BackoffMin
	for i := 1; i < n; i++ {
		d *= 2
		if d >= c.opts.BackoffMax {
			return c.opts.BackoffMax
		}
	}
	return d
}

// Run connects and calls handle for every message until ctx is done or
// retries are exhausted. It returns ctx.Err() or ErrGivenUp.
func (c *Client) Run(ctx context.Context, handle func(models.FanoutMessage)) error {
	retries := 0
	for {
		c.transition(StateConnecting, 0, nil)
		err := c.session(ctx, handle, func() { retries = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.transition(StateFailed, 0, err)

		retries++
		if retries > c.opts.MaxRetries {
			c.transition(StateGivenUp, retries-1, err)
			return fmt.Errorf("%w after %d retries: %v", ErrGivenUp, retries-1, err)
		}
		c.transition(StateRetrying, retries, err)

		timer := time.NewTimer(c.Backoff(retries))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) session(ctx context.Context, handle func(models.FanoutMessage), connected func()) error {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	connected()
	c.transition(StateConnected, 0, nil)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var msg models.FanoutMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if handle != nil {
			handle(msg)
		}
	}
}
