package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sentinel-engine-go/internal/config"
)

// NewServiceLogger returns a child of the global logger tagged with the
// engine id and the service name.
func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	engineID := ""
	if cfg != nil {
		engineID = cfg.EngineID
	}
	return log.With().Str("engine_id", engineID).Str("service", service).Logger()
}

func WithCamera(base zerolog.Logger, cameraID string) zerolog.Logger {
	return base.With().Str("camera_id", cameraID).Logger()
}

func WithTrack(base zerolog.Logger, trackID string) zerolog.Logger {
	return base.With().Str("track_id", trackID).Logger()
}
