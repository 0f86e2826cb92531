package alerts

import (
	"fmt"

	"sentinel-engine-go/internal/models"
)

// HandleSuspectMatch turns a gallery hit into a critical alert. Staff are
// not exempt.
func HandleSuspectMatch(in Input) (models.AlertCandidate, bool) {
	if in.Match == nil {
		return models.AlertCandidate{}, false
	}

	name := in.Match.Name
	if name == "" {
		name = in.Match.SuspectID
	}
	desc := fmt.Sprintf("Suspect %s detected (similarity %.2f)", name, in.Match.Similarity)

	c := buildCandidate(in, models.AlertTypeSuspectMatch, models.AlertSeverityCritical, desc)
	c.SuspectID = in.Match.SuspectID
	c.Similarity = in.Match.Similarity
	return c, true
}
