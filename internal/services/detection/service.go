// Package detection persists accepted detection events, finalized track
// visits and suspect sightings in batches, off the camera workers' hot path.
package detection

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
)

// Store is the write side used by the writer.
type Store interface {
	InsertDetections(ctx context.Context, records []models.DetectionRecord) error
	InsertVisits(ctx context.Context, visits []models.TrackVisit) error
	InsertSightings(ctx context.Context, sightings []models.SuspectSighting) error
}

// pending batches are capped so a dead database cannot grow memory forever
const maxPendingBatches = 10

type item struct {
	record   *models.DetectionRecord
	visits   []models.TrackVisit
	sighting *models.SuspectSighting
}

// Service buffers records and writes them when a batch fills up or on the
// flush interval. Failed batches are kept and retried on the next flush.
type Service struct {
	store    Store
	counters *observability.Counters
	logger   zerolog.Logger

	batchSize     int
	flushInterval time.Duration

	queue chan item
	flush chan chan struct{}
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}

	// owned by run
	records   []models.DetectionRecord
	visits    []models.TrackVisit
	sightings []models.SuspectSighting
}

func NewService(cfg *config.Config, st Store, counters *observability.Counters) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("detection store is required")
	}
	batch := cfg.DetectionBatchSize
	if batch < 1 {
		batch = 100
	}
	interval := cfg.DetectionFlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{
		store:         st,
		counters:      counters,
		logger:        logging.NewServiceLogger(cfg, "detection-writer"),
		batchSize:     batch,
		flushInterval: interval,
		queue:         make(chan item, batch*4),
		flush:         make(chan chan struct{}),
		done:          make(chan struct{}),
		stop:          make(chan struct{}),
	}, nil
}

// NewRecordID returns a detection_events id: "det_" and 32 hex digits.
func NewRecordID() string {
	return "det_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Start launches the writer loop.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		go s.run()
		s.logger.Info().
			Int("batch_size", s.batchSize).
			Dur("flush_interval", s.flushInterval).
			Msg("Detection writer started")
	})
}

// Enqueue hands a record to the writer. It blocks while the queue is full
// until ctx is done.
func (s *Service) Enqueue(ctx context.Context, record models.DetectionRecord) error {
	return s.put(ctx, item{record: &record})
}

// EnqueueVisits hands finalized visits to the writer.
func (s *Service) EnqueueVisits(ctx context.Context, visits []models.TrackVisit) error {
	if len(visits) == 0 {
		return nil
	}
	return s.put(ctx, item{visits: visits})
}

// EnqueueSighting hands one suspect sighting to the writer.
func (s *Service) EnqueueSighting(ctx context.Context, sighting models.SuspectSighting) error {
	return s.put(ctx, item{sighting: &sighting})
}

func (s *Service) put(ctx context.Context, it item) error {
	select {
	case <-s.done:
		return fmt.Errorf("detection writer stopped")
	default:
	}
	select {
	case s.queue <- it:
		return nil
	case <-s.done:
		return fmt.Errorf("detection writer stopped")
	case <-ctx.Done():
		s.counters.Inc(observability.EventsPersistFailed)
		return ctx.Err()
	}
}

// Flush writes everything queued so far and waits for it.
func (s *Service) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.flush <- ack:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown drains the queue, writes the final batch and stops the loop.
func (s *Service) Shutdown(ctx context.Context) error {
	// never started: there is no loop to drain
	s.startOnce.Do(func() { close(s.done) })
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("detection writer shutdown: %w", ctx.Err())
	}
}

func (s *Service) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case it := <-s.queue:
			s.add(it)
			if s.batchFull() {
				s.write()
			}
		case ack := <-s.flush:
			s.drainQueue()
			s.write()
			close(ack)
		case <-ticker.C:
			s.write()
		case <-s.stop:
			s.drainQueue()
			s.write()
			if n := len(s.records) + len(s.visits) + len(s.sightings); n > 0 {
				s.counters.Add(observability.EventsPersistFailed, int64(len(s.records)))
				s.logger.Error().Int("unwritten", n).Msg("Detection writer stopped with unwritten rows")
			}
			s.logger.Info().Msg("Detection writer stopped")
			return
		}
	}
}

func (s *Service) add(it item) {
	if it.record != nil {
		s.records = append(s.records, *it.record)
	}
	s.visits = append(s.visits, it.visits...)
	if it.sighting != nil {
		s.sightings = append(s.sightings, *it.sighting)
	}
}

func (s *Service) batchFull() bool {
	return len(s.records) >= s.batchSize || len(s.visits) >= s.batchSize || len(s.sightings) >= s.batchSize
}

func (s *Service) drainQueue() {
	for {
		select {
		case it := <-s.queue:
			s.add(it)
		default:
			return
		}
	}
}

func (s *Service) write() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(s.records) > 0 {
		if err := s.store.InsertDetections(ctx, s.records); err != nil {
			s.logger.Warn().Err(err).Int("records", len(s.records)).Msg("Failed to write detection batch, will retry")
			s.records = s.trimRecords(s.records)
		} else {
			s.logger.Debug().Int("records", len(s.records)).Msg("Detection batch written")
			s.records = s.records[:0]
		}
	}

	if len(s.visits) > 0 {
		if err := s.store.InsertVisits(ctx, s.visits); err != nil {
			s.logger.Warn().Err(err).Int("visits", len(s.visits)).Msg("Failed to write track visits, will retry")
			if limit := s.batchSize * maxPendingBatches; len(s.visits) > limit {
				s.visits = append([]models.TrackVisit(nil), s.visits[len(s.visits)-limit:]...)
			}
		} else {
			s.visits = s.visits[:0]
		}
	}

	if len(s.sightings) > 0 {
		if err := s.store.InsertSightings(ctx, s.sightings); err != nil {
			s.logger.Warn().Err(err).Int("sightings", len(s.sightings)).Msg("Failed to write suspect sightings, will retry")
			if limit := s.batchSize * maxPendingBatches; len(s.sightings) > limit {
				s.sightings = append([]models.SuspectSighting(nil), s.sightings[len(s.sightings)-limit:]...)
			}
		} else {
			s.sightings = s.sightings[:0]
		}
	}
}

// trimRecords keeps at most maxPendingBatches batches, oldest dropped.
func (s *Service) trimRecords(records []models.DetectionRecord) []models.DetectionRecord {
	limit := s.batchSize * maxPendingBatches
	if len(records) <= limit {
		return records
	}
	dropped := len(records) - limit
	s.counters.Add(observability.EventsPersistFailed, int64(dropped))
	s.logger.Error().Int("dropped", dropped).Msg("Detection backlog full, dropping oldest records")
	return append([]models.DetectionRecord(nil), records[dropped:]...)
}
