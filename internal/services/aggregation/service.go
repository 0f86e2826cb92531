// Package aggregation rolls persisted detection events up into hourly
// footfall and demographics rows.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/store"
)

// Store is what the aggregator reads from and writes to.
type Store interface {
	store.DetectionStore
	UpsertHourBucket(ctx context.Context, b models.HourBucket) error
}

// Result summarizes one aggregation pass.
type Result struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Buckets int       `json:"buckets_written"`
	Failed  int       `json:"buckets_failed"`
}

type Service struct {
	cfg      *config.Config
	store    Store
	counters *observability.Counters
	logger   zerolog.Logger
	now      func() time.Time

	// one pass at a time; scheduled and on-demand runs share it
	runMu sync.Mutex
}

// NewService creates the aggregator. now may be nil.
func NewService(cfg *config.Config, st Store, counters *observability.Counters, now func() time.Time) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("aggregation store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		counters: counters,
		logger:   logging.NewServiceLogger(cfg, "aggregation"),
		now:      now,
	}, nil
}

// Run performs a catch-up pass and then one pass every AggregationInterval
// until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	interval := s.cfg.AggregationInterval
	if interval <= 0 {
		interval = time.Hour
	}

	s.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Aggregation loop stopped")
			return nil
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Service) runLogged(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Int("failed", res.Failed).Msg("Aggregation pass incomplete, will retry next cycle")
	}
}

// RunOnce aggregates every completed hour inside the lookback window,
// i.e. [now-lookback, current hour).
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	end := store.HourKey(s.now())
	lookback := s.cfg.AggregationLookback
	if lookback < time.Hour {
		lookback = time.Hour
	}
	start := store.HourKey(end.Add(-lookback))
	return s.RunRange(ctx, start, end)
}

// RunHour aggregates the single hour containing t. The current hour is
// refused since it is still being written.
func (s *Service) RunHour(ctx context.Context, t time.Time) (Result, error) {
	hour := store.HourKey(t)
	if !hour.Before(store.HourKey(s.now())) {
		return Result{Start: hour, End: hour}, fmt.Errorf("hour %s is not complete yet", hour.Format(time.RFC3339))
	}
	return s.RunRange(ctx, hour, hour.Add(time.Hour))
}

// RunRange aggregates the hours in [start, end). end is clamped to the
// current hour.
func (s *Service) RunRange(ctx context.Context, start, end time.Time) (Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start = store.HourKey(start)
	end = store.HourKey(end)
	if current := store.HourKey(s.now()); end.After(current) {
		end = current
	}
	res := Result{Start: start, End: end}
	if !start.Before(end) {
		return res, nil
	}

	activity, err := s.store.TrackActivity(ctx, start, end)
	if err != nil {
		s.counters.Inc(observability.AggregationFailures)
		return res, fmt.Errorf("failed to load track activity: %w", err)
	}
	buckets := BuildBuckets(activity)

	limit := s.cfg.AggregationConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var written, failed atomic.Int64
	var errMu sync.Mutex
	var errs []error

	for _, b := range buckets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.store.UpsertHourBucket(gctx, b); err != nil {
				failed.Add(1)
				s.counters.Inc(observability.AggregationFailures)
				s.logger.Warn().
					Err(err).
					Str("camera_id", b.CameraID).
					Time("hour", b.Hour).
					Msg("Failed to write hourly bucket")
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s %s: %w", b.CameraID, b.Hour.Format(time.RFC3339), err))
				errMu.Unlock()
				return nil
			}
			written.Add(1)
			s.counters.Inc(observability.AggregationBuckets)
			return nil
		})
	}
	waitErr := g.Wait()

	res.Buckets = int(written.Load())
	res.Failed = int(failed.Load())

	s.logger.Info().
		Time("start", start).
		Time("end", end).
		Int("events", len(activity)).
		Int("buckets", res.Buckets).
		Int("failed", res.Failed).
		Msg("Aggregation pass completed")

	if waitErr != nil {
		return res, waitErr
	}
	return res, errors.Join(errs...)
}

type bucketKey struct {
	cameraID string
	hour     time.Time
}

// BuildBuckets groups activity by (camera, hour). Footfall is the number
// of distinct tracks; demographics count each track once under the last
// known category it had within the hour. Tracks with no known category are
// counted in footfall only.
func BuildBuckets(activity []models.TrackActivity) []models.HourBucket {
	type trackState struct {
		category string
		seenAt   time.Time
	}
	groups := make(map[bucketKey]map[string]*trackState)

	for _, a := range activity {
		key := bucketKey{cameraID: a.CameraID, hour: store.HourKey(a.Timestamp)}
		tracks, ok := groups[key]
		if !ok {
			tracks = make(map[string]*trackState)
			groups[key] = tracks
		}
		st, ok := tracks[a.TrackID]
		if !ok {
			st = &trackState{}
			tracks[a.TrackID] = st
		}
		if a.Category != "" && !a.Timestamp.Before(st.seenAt) {
			st.category = a.Category
			st.seenAt = a.Timestamp
		}
	}

	out := make([]models.HourBucket, 0, len(groups))
	for key, tracks := range groups {
		b := models.HourBucket{
			CameraID:     key.cameraID,
			Hour:         key.hour,
			Footfall:     len(tracks),
			Demographics: make(map[string]int),
		}
		for _, st := range tracks {
			if st.category != "" {
				b.Demographics[st.category]++
			}
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Hour.Equal(out[j].Hour) {
			return out[i].Hour.Before(out[j].Hour)
		}
		return out[i].CameraID < out[j].CameraID
	})
	return out
}
