// Package ingest accepts detection events from every inbound transport
// (HTTP, NATS, MQTT, gRPC), validates them and routes them to the camera
// workers.
package ingest

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"sentinel-engine-go/internal/config"
	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/logging"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/observability"
)

// Submitter is the camera manager as seen by ingest.
type Submitter interface {
	Submit(ctx context.Context, evt models.DetectionEvent) error
}

// Status is the outcome of one inbound item.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusMalformed Status = "malformed"
	StatusInactive  Status = "inactive_camera"
	StatusDropped   Status = "dropped"
)

// Result reports what happened to one item of a payload.
type Result struct {
	Index    int    `json:"index"`
	Status   Status `json:"status"`
	CameraID string `json:"camera_id,omitempty"`
	TrackID  string `json:"track_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summary counts results by status.
type Summary struct {
	Accepted  int `json:"accepted"`
	Malformed int `json:"malformed"`
	Inactive  int `json:"inactive_camera"`
	Dropped   int `json:"dropped"`
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusAccepted:
			s.Accepted++
		case StatusMalformed:
			s.Malformed++
		case StatusInactive:
			s.Inactive++
		default:
			s.Dropped++
		}
	}
	return s
}

// Handler is shared by every transport.
type Handler struct {
	submitter Submitter
	counters  *observability.Counters
	logger    zerolog.Logger
}

func NewHandler(cfg *config.Config, submitter Submitter, counters *observability.Counters) *Handler {
	return &Handler{
		submitter: submitter,
		counters:  counters,
		logger:    logging.NewServiceLogger(cfg, "ingest"),
	}
}

// HandlePayload decodes a JSON object or array of objects and submits each
// valid item. Items are independent: a malformed item does not reject its
// neighbours. An error is returned only when the payload as a whole cannot
// be decoded.
func (h *Handler) HandlePayload(ctx context.Context, source string, data []byte) ([]Result, error) {
	events, errs, err := models.ParseDetectionEvents(data)
	if err != nil {
		h.counters.Inc(observability.EventsMalformed)
		h.logger.Warn().Err(err).Str("source", source).Msg("Rejected malformed payload")
		return nil, err
	}

	results := make([]Result, len(events))
	for i := range events {
		if errs[i] != nil {
			h.counters.Inc(observability.EventsMalformed)
			h.logger.Debug().Err(errs[i]).Str("source", source).Int("index", i).Msg("Rejected malformed event")
			results[i] = Result{Index: i, Status: StatusMalformed, Error: errs[i].Error()}
			continue
		}
		results[i] = h.submit(ctx, i, events[i])
	}
	return results, nil
}

// HandleEvent submits one already decoded event.
func (h *Handler) HandleEvent(ctx context.Context, evt models.DetectionEvent) Result {
	return h.submit(ctx, 0, evt)
}

func (h *Handler) submit(ctx context.Context, index int, evt models.DetectionEvent) Result {
	r := Result{Index: index, Status: StatusAccepted, CameraID: evt.CameraID, TrackID: evt.TrackID}
	err := h.submitter.Submit(ctx, evt)
	switch {
	case err == nil:
	case errors.Is(err, engineerrors.ErrCameraInactive):
		r.Status = StatusInactive
		r.Error = err.Error()
	default:
		r.Status = StatusDropped
		r.Error = err.Error()
	}
	return r
}
