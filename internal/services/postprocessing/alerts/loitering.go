package alerts

import (
	"fmt"
	"time"

	"sentinel-engine-go/internal/models"
)

// HandleLoitering fires once continuous dwell in a non-restricted zone
// reaches threshold. It is re-evaluated on every event of a track that stays
// put; the cooldown keeps it from firing every event.
func HandleLoitering(in Input, threshold time.Duration) (models.AlertCandidate, bool) {
	tr := in.Transition
	if tr.Stale || tr.Zone == nil || tr.Zone.Restricted {
		return models.AlertCandidate{}, false
	}
	if tr.Track != nil && tr.Track.IsStaff {
		return models.AlertCandidate{}, false
	}
	if tr.DwellSeconds < threshold.Seconds() {
		return models.AlertCandidate{}, false
	}

	desc := fmt.Sprintf("Person loitering in %s for %.0f seconds", zoneLabel(tr.Zone), tr.DwellSeconds)
	return buildCandidate(in, models.AlertTypeLoitering, models.AlertSeverityMedium, desc), true
}
