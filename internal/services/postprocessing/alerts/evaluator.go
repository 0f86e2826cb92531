// Package alerts holds the per-rule alert handlers. Handlers are pure
// functions of one detection event and its track transition.
package alerts

import (
	"strings"
	"time"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/models"
	"sentinel-engine-go/internal/tracking"
)

// Rules holds the tunable thresholds of every handler.
type Rules struct {
	LoiteringThreshold  time.Duration
	SuspiciousBehaviors map[string]models.AlertSeverity
}

// RulesFromConfig converts config values. Unknown severity labels fall back
// to medium.
func RulesFromConfig(cfg *config.Config) Rules {
	behaviors := cfg.SuspiciousBehaviors
	if len(behaviors) == 0 {
		behaviors = config.DefaultSuspiciousBehaviors
	}
	r := Rules{
		LoiteringThreshold:  cfg.LoiteringThreshold,
		SuspiciousBehaviors: make(map[string]models.AlertSeverity, len(behaviors)),
	}
	for tag, label := range behaviors {
		sev, ok := models.ParseSeverity(label)
		if !ok {
			sev = models.AlertSeverityMedium
		}
		r.SuspiciousBehaviors[strings.ToLower(tag)] = sev
	}
	return r
}

// Input is everything a handler may look at.
type Input struct {
	Transition tracking.Transition
	Event      models.DetectionEvent
	// Match is the suspect gallery hit for the event's feature vector, if any.
	Match *models.SuspectMatch
}

// Evaluate runs every handler in fixed order and returns the candidates that
// fired: restricted_area, loitering, suspicious_behavior, suspect_match.
func Evaluate(in Input, rules Rules) []models.AlertCandidate {
	var out []models.AlertCandidate

	if c, ok := HandleRestrictedArea(in); ok {
		out = append(out, c)
	}
	if c, ok := HandleLoitering(in, rules.LoiteringThreshold); ok {
		out = append(out, c)
	}
	if c, ok := HandleSuspiciousBehavior(in, rules.SuspiciousBehaviors); ok {
		out = append(out, c)
	}
	if c, ok := HandleSuspectMatch(in); ok {
		out = append(out, c)
	}
	return out
}

func buildCandidate(in Input, alertType models.AlertType, severity models.AlertSeverity, description string) models.AlertCandidate {
	c := models.AlertCandidate{
		AlertType:     alertType,
		CameraID:      in.Event.CameraID,
		TrackID:       in.Event.TrackID,
		Severity:      severity,
		Description:   description,
		SnapshotPath:  in.Event.SnapshotPath,
		VideoClipPath: in.Event.VideoClipPath,
		EventTime:     in.Event.Timestamp,
	}
	if in.Transition.Zone != nil {
		c.ZoneID = in.Transition.Zone.ID
	}
	return c
}

func zoneLabel(z *models.Zone) string {
	if z.Name != "" {
		return z.Name
	}
	return z.ID
}
