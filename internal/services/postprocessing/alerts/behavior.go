package alerts

import (
	"fmt"
	"strings"

	"sentinel-engine-go/internal/models"
)

// HandleSuspiciousBehavior fires when the event's behavior tag is in the
// configured set. Staff are not exempt.
func HandleSuspiciousBehavior(in Input, behaviors map[string]models.AlertSeverity) (models.AlertCandidate, bool) {
	tag := strings.ToLower(strings.TrimSpace(in.Event.BehaviorTag))
	if tag == "" {
		return models.AlertCandidate{}, false
	}
	severity, ok := behaviors[tag]
	if !ok {
		return models.AlertCandidate{}, false
	}

	desc := fmt.Sprintf("Suspicious behavior detected: %s", strings.ReplaceAll(tag, "_", " "))
	return buildCandidate(in, models.AlertTypeSuspiciousBehavior, severity, desc), true
}
