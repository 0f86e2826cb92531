package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
	"sentinel-engine-go/internal/services/aggregation"
	"sentinel-engine-go/internal/services/camera"
	"sentinel-engine-go/internal/services/detection"
	"sentinel-engine-go/internal/services/fanout"
	"sentinel-engine-go/internal/services/ingest"
	"sentinel-engine-go/internal/services/media"
	"sentinel-engine-go/internal/services/messaging"
	"sentinel-engine-go/internal/services/postprocessing"
	"sentinel-engine-go/internal/services/suspects"
	"sentinel-engine-go/internal/store"
	"sentinel-engine-go/internal/store/mysql"
	"sentinel-engine-go/internal/store/sqlite"
	"sentinel-engine-go/internal/zones"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config   *config.Config
	Counters *observability.Counters
	Store    store.Store
	Zones    *zones.Holder

	Hub         *fanout.Hub
	Alerts      *postprocessing.Service
	Matcher     *suspects.Matcher
	Suspects    *suspects.Refresher
	Detections  *detection.Service
	Cameras     *camera.Manager
	Aggregation *aggregation.Service
	Ingest      *ingest.Handler

	Messaging  *messaging.Service
	NATSIngest *ingest.NATSSubscriber
	MQTTIngest *ingest.MQTTSubscriber
	GRPCIngest *ingest.GRPCServer

	redisSource *suspects.RedisSource
	cancel      context.CancelFunc
	group       *errgroup.Group
	startedAt   time.Time
}

// OpenStore opens the backend selected by STORE_DRIVER.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", "sqlite":
		return sqlite.New(cfg.SQLitePath)
	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, fmt.Errorf("MYSQL_DSN is required for the mysql store")
		}
		return mysql.Open(cfg.MySQLDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// LoadZones reads ZONES_FILE. A missing file yields an empty index: every
// camera is then unconfigured and only suspect and behavior rules apply.
func LoadZones(cfg *config.Config) (*zones.Index, error) {
	if cfg.ZonesFile == "" {
		return zones.NewIndex(nil)
	}
	if _, err := os.Stat(cfg.ZonesFile); errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", cfg.ZonesFile).Msg("Zones file not found, running without zones")
		return zones.NewIndex(nil)
	}
	return zones.LoadFile(cfg.ZonesFile)
}

// NewServiceContainer creates a new service container
func NewServiceContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	st, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	sc := &ServiceContainer{
		Config:   cfg,
		Counters: observability.NewCounters(),
		Store:    st,
	}
	if err := sc.build(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContainer) build(ctx context.Context) error {
	cfg := sc.Config

	idx, err := LoadZones(cfg)
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}
	sc.Zones = zones.NewHolder(idx)

	sc.Hub = fanout.NewHub(cfg, sc.Counters)

	var alertOpts []postprocessing.Option
	if cfg.NatsEnabled {
		sc.Messaging, err = messaging.NewService(cfg)
		if err != nil {
			return err
		}
		alertOpts = append(alertOpts, postprocessing.WithPublisher(sc.Messaging))
	}
	if cfg.S3PresignEnabled {
		decorator, err := media.NewDecorator(ctx, cfg)
		if err != nil {
			return err
		}
		alertOpts = append(alertOpts, postprocessing.WithDecorator(decorator))
	}

	sc.Alerts, err = postprocessing.NewService(cfg, sc.Store, sc.Hub, sc.Counters, alertOpts...)
	if err != nil {
		return err
	}

	sc.Matcher = suspects.NewMatcher(cfg.SuspectMatchTolerance)
	var source suspects.Source
	switch {
	case cfg.SuspectGalleryRedisKey != "":
		sc.redisSource = suspects.NewRedisSource(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SuspectGalleryRedisKey)
		source = sc.redisSource
	case cfg.SuspectGalleryFile != "":
		source = suspects.FileSource{Path: cfg.SuspectGalleryFile}
	}
	sc.Suspects = suspects.NewRefresher(cfg, sc.Matcher, source)

	sc.Detections, err = detection.NewService(cfg, sc.Store, sc.Counters)
	if err != nil {
		return err
	}

	deps := camera.DependenciesFromConfig(cfg)
	deps.Cameras = sc.Zones
	deps.Alerts = sc.Alerts
	deps.Matcher = sc.Matcher
	deps.Detections = sc.Detections
	deps.Counters = sc.Counters
	sc.Cameras, err = camera.NewManager(cfg, deps)
	if err != nil {
		return err
	}

	sc.Aggregation, err = aggregation.NewService(cfg, sc.Store, sc.Counters, nil)
	if err != nil {
		return err
	}

	sc.Ingest = ingest.NewHandler(cfg, sc.Cameras, sc.Counters)
	if sc.Messaging != nil {
		sc.NATSIngest = ingest.NewNATSSubscriber(cfg, sc.Messaging, sc.Ingest)
	}
	if cfg.MQTTEnabled {
		sc.MQTTIngest = ingest.NewMQTTSubscriber(cfg, sc.Ingest)
	}
	if cfg.GRPCEnabled {
		sc.GRPCIngest = ingest.NewGRPCServer(cfg, sc.Ingest)
	}
	return nil
}

// Start launches the background loops: detection writer, gallery refresh,
// hourly aggregation and the optional ingest transports.
func (sc *ServiceContainer) Start(ctx context.Context) error {
	ctx, sc.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	sc.group = g
	sc.startedAt = time.Now()

	sc.Detections.Start()

	g.Go(func() error {
		sc.Suspects.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return sc.Aggregation.Run(gctx)
	})

	if sc.NATSIngest != nil {
		if err := sc.NATSIngest.Start(); err != nil {
			return err
		}
	}
	if sc.MQTTIngest != nil {
		if err := sc.MQTTIngest.Start(10 * time.Second); err != nil {
			return err
		}
	}
	if sc.GRPCIngest != nil {
		g.Go(sc.GRPCIngest.ListenAndServe)
	}

	log.Info().
		Int("cameras", len(sc.Zones.Load().Cameras())).
		Str("store", sc.Config.StoreDriver).
		Bool("nats", sc.NATSIngest != nil).
		Bool("mqtt", sc.MQTTIngest != nil).
		Bool("grpc", sc.GRPCIngest != nil).
		Msg("Engine services started")
	return nil
}

// StartedAt is when Start was called.
func (sc *ServiceContainer) StartedAt() time.Time {
	return sc.startedAt
}

// ReloadZones re-reads ZONES_FILE and swaps the index in. Running workers
// see the new zones on their next event.
func (sc *ServiceContainer) ReloadZones() ([]models.Camera, error) {
	idx, err := LoadZones(sc.Config)
	if err != nil {
		return nil, err
	}
	sc.Zones.Store(idx)
	cameras := idx.Cameras()
	log.Info().Int("cameras", len(cameras)).Str("path", sc.Config.ZonesFile).Msg("Zones reloaded")
	return cameras, nil
}

// Shutdown gracefully shuts down all services. Ingest stops first so that
// workers drain a closed stream, then the detection writer flushes what the
// workers produced.
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.GRPCIngest != nil {
		sc.GRPCIngest.Stop(ctx)
	}
	if sc.NATSIngest != nil {
		if err := sc.NATSIngest.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.MQTTIngest != nil {
		sc.MQTTIngest.Stop()
	}

	if sc.Cameras != nil {
		if err := sc.Cameras.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.Detections != nil {
		if err := sc.Detections.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if sc.cancel != nil {
		sc.cancel()
	}
	if sc.group != nil {
		if err := sc.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}

	if sc.Alerts != nil {
		sc.Alerts.Shutdown(ctx)
	}
	if sc.Hub != nil {
		sc.Hub.Close()
	}
	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.redisSource != nil {
		sc.redisSource.Close()
	}
	if sc.Store != nil {
		if err := sc.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
