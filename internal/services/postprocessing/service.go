package postprocessing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/store"
)

// Outcome is the result of submitting one candidate.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeDropped    Outcome = "dropped"
)

// Broadcaster delivers messages to live subscribers without blocking.
type Broadcaster interface {
	Publish(msg models.FanoutMessage)
}

// AlertDecorator fills presentation-only fields such as presigned URLs.
type AlertDecorator interface {
	Decorate(ctx context.Context, alert *models.Alert)
}

// Service is the alert manager: deduplication, persistence with bounded
// retries, acknowledgment and publication.
//
// Submit is called by camera workers concurrently; each call touches only
// the caller's own AlertHistory, and the store, hub and publisher are safe
// for concurrent use.
type Service struct {
	cfg       *config.Config
	store     store.AlertStore
	hub       Broadcaster
	publisher models.MessagePublisher
	decorator AlertDecorator
	counters  *observability.Counters
	dedup     *Deduper
	logger    zerolog.Logger

	persistAttempts int
	persistBackoff  time.Duration
	now             func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher also publishes alert messages to a message bus.
func WithPublisher(p models.MessagePublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDecorator decorates alerts before they are published or returned.
func WithDecorator(d AlertDecorator) Option {
	return func(s *Service) { s.decorator = d }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the alert manager.
func NewService(cfg *config.Config, alerts store.AlertStore, hub Broadcaster, counters *observability.Counters, opts ...Option) (*Service, error) {
	if alerts == nil {
		return nil, fmt.Errorf("alert store is required")
	}
	if hub == nil {
		return nil, fmt.Errorf("fan-out hub is required")
	}

	s := &Service{
		cfg:             cfg,
		store:           alerts,
		hub:             hub,
		counters:        counters,
		dedup:           NewDeduper(cfg),
		logger:          logging.NewServiceLogger(cfg, "alerts"),
		persistAttempts: cfg.AlertPersistAttempts,
		persistBackoff:  cfg.AlertPersistBackoff,
		now:             time.Now,
	}
	if s.persistAttempts < 1 {
		s.persistAttempts = 1
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info().
		Dur("loitering_cooldown", s.dedup.Cooldown(models.AlertTypeLoitering)).
		Dur("restricted_area_cooldown", s.dedup.Cooldown(models.AlertTypeRestrictedArea)).
		Dur("suspect_match_cooldown", s.dedup.Cooldown(models.AlertTypeSuspectMatch)).
		Dur("suspicious_behavior_cooldown", s.dedup.Cooldown(models.AlertTypeSuspiciousBehavior)).
		Int("persist_attempts", s.persistAttempts).
		Msg("Alert manager initialized")

	return s, nil
}

// MaxCooldown is how long workers must remember a track's alerts.
func (s *Service) MaxCooldown() time.Duration {
	return s.dedup.MaxCooldown()
}

// Shutdown stops the service gracefully
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Alert manager shutdown")
	return nil
}

// Submit deduplicates, persists and publishes one candidate. history is the
// calling worker's cooldown state and must only be touched by that worker.
// A persistence failure after all retries drops the alert without recording
// its cooldown, so the next qualifying event may try again.
func (s *Service) Submit(ctx context.Context, history *AlertHistory, c models.AlertCandidate) (*models.Alert, Outcome, error) {
	if !s.dedup.Allow(history, c) {
		s.counters.Inc(observability.AlertsSuppressed)
		s.logger.Debug().
			Str("camera_id", c.CameraID).
			Str("track_id", c.TrackID).
			Str("alert_type", string(c.AlertType)).
			Msg("Alert blocked by cooldown")
		return nil, OutcomeSuppressed, nil
	}

	alert := models.NewAlert(c, s.now())
	if err := s.persist(ctx, &alert); err != nil {
		s.counters.Inc(observability.AlertsDropped)
		s.logger.Error().
			Err(err).
			Str("camera_id", c.CameraID).
			Str("track_id", c.TrackID).
			Str("alert_type", string(c.AlertType)).
			Str("description", c.Description).
			Msg("Failed to persist alert, dropping")
		return nil, OutcomeDropped, err
	}

	s.dedup.Record(history, c)
	s.counters.Inc(observability.AlertsPersisted)
	s.decorate(ctx, &alert)
	s.publish(models.FanoutAlertCreated, alert)

	s.logger.Info().
		Int64("alert_id", alert.ID).
		Str("camera_id", alert.CameraID).
		Str("track_id", alert.TrackID).
		Str("zone_id", alert.ZoneID).
		Str("alert_type", string(alert.AlertType)).
		Str("severity", alert.SeverityLabel).
		Msg("Alert created")

	return &alert, OutcomeAccepted, nil
}

func (s *Service) persist(ctx context.Context, alert *models.Alert) error {
	backoff := s.persistBackoff
	var lastErr error

	for attempt := 1; attempt <= s.persistAttempts; attempt++ {
		err := s.store.InsertAlert(ctx, alert)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == s.persistAttempts || ctx.Err() != nil {
			break
		}
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Alert write failed, retrying")

		select {
		case <-ctx.Done():
			return engineerrors.Wrap(engineerrors.ErrCategoryStorage, engineerrors.CodePersistenceFailure, "alert write cancelled", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return engineerrors.Wrap(engineerrors.ErrCategoryStorage, engineerrors.CodePersistenceFailure,
		fmt.Sprintf("alert write failed after %d attempts", s.persistAttempts), lastErr)
}

// Acknowledge moves an alert to ACKNOWLEDGED. Acknowledging an already
// acknowledged alert returns its current state unchanged.
func (s *Service) Acknowledge(ctx context.Context, id int64, actor string) (*models.Alert, error) {
	alert, changed, err := s.store.AcknowledgeAlert(ctx, id, actor, s.now())
	if err != nil {
		if errors.Is(err, engineerrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}

	s.decorate(ctx, alert)
	if changed {
		s.counters.Inc(observability.AlertsAcknowledged)
		s.publish(models.FanoutAlertAcknowledged, *alert)
		s.logger.Info().Int64("alert_id", id).Str("actor", actor).Msg("Alert acknowledged")
	}
	return alert, nil
}

// GetAlert returns one alert.
func (s *Service) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(ctx, alert)
	return alert, nil
}

// ListAlerts returns alerts matching filter, newest first.
func (s *Service) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range alerts {
		s.decorate(ctx, &alerts[i])
	}
	return alerts, nil
}

// Stats summarizes alerts of the last days days.
func (s *Service) Stats(ctx context.Context, days int) (*models.AlertStats, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	return s.store.AlertStats(ctx, since)
}

func (s *Service) decorate(ctx context.Context, alert *models.Alert) {
	if s.decorator != nil && alert != nil {
		s.decorator.Decorate(ctx, alert)
	}
}

func (s *Service) publish(eventType models.FanoutEventType, alert models.Alert) {
	msg := models.FanoutMessage{Type: eventType, Alert: alert, Timestamp: s.now().UTC()}
	s.hub.Publish(msg)

	if s.publisher == nil {
		return
	}
	subject := s.cfg.AlertsSubject
	if subject == "" {
		subject = "sentinel.alerts"
	}
	if err := s.publisher.Publish(subject, msg); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("alert_id", alert.ID).
			Str("subject", subject).
			Msg("Failed to publish alert to message bus")
	}
}
