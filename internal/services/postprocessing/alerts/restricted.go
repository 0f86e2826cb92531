package alerts

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"sentinel-engine-go/internal/models"
)

// HandleRestrictedArea fires for a non-staff track observed inside a
// restricted zone. There is no dwell threshold; the alert manager cooldown
// turns repeated observations into one alert per window.
func HandleRestrictedArea(in Input) (models.AlertCandidate, bool) {
	tr := in.Transition
	if tr.Stale || tr.Zone == nil || !tr.Zone.Restricted {
		return models.AlertCandidate{}, false
	}
	if tr.Track != nil && tr.Track.IsStaff {
		log.Debug().
			Str("camera_id", in.Event.CameraID).
			Str("track_id", in.Event.TrackID).
			Str("zone_id", tr.Zone.ID).
			Msg("Staff track in restricted zone, no alert")
		return models.AlertCandidate{}, false
	}

	desc := fmt.Sprintf("Unauthorized person detected in restricted area %s", zoneLabel(tr.Zone))
	return buildCandidate(in, models.AlertTypeRestrictedArea, models.AlertSeverityHigh, desc), true
}
