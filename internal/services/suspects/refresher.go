package suspects

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
)

// Refresher periodically reloads the gallery from a Source and swaps it into
// the Matcher. A failed load keeps the previous snapshot.
type Refresher struct {
	matcher  *Matcher
	source   Source
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRefresher creates a refresher. A nil source leaves the gallery
// unavailable and Run returns immediately.
func NewRefresher(cfg *config.Config, matcher *Matcher, source Source) *Refresher {
	return &Refresher{
		matcher:  matcher,
		source:   source,
		interval: cfg.SuspectGalleryRefresh,
		logger:   logging.NewServiceLogger(cfg, "suspects"),
		now:      time.Now,
	}
}

// Reload loads the gallery once and publishes it.
func (r *Refresher) Reload(ctx context.Context) (*Gallery, error) {
	if r.source == nil {
		return nil, fmt.Errorf("no suspect gallery source configured")
	}

	entries, err := r.source.Load(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("source", r.source.Name()).Msg("Suspect gallery reload failed, keeping previous snapshot")
		return nil, err
	}

	g := NewGallery(entries, r.source.Name(), r.now())
	r.matcher.Swap(g)
	r.logger.Info().
		Str("source", g.Source).
		Int("entries", len(entries)).
		Int("active", g.Size()).
		Msg("Suspect gallery loaded")
	return g, nil
}

// Run reloads immediately and then every interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	if r.source == nil {
		r.logger.Info().Msg("No suspect gallery source configured, suspect matching disabled")
		return
	}

	_, _ = r.Reload(ctx)
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.Reload(ctx)
		}
	}
}
