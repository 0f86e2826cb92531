package postprocessing

import (
	"time"

	"sentinel-engine-go/internal/config"
	"sentinel-engine-go/internal/models"
)

// AlertHistory remembers when each (track, alert type) of one camera last
// produced an alert. It is owned by a single camera worker and outlives the
// tracks themselves: a track evicted for inactivity that comes back under
// the same id is still inside its cooldowns.
type AlertHistory struct {
	last map[string]map[models.AlertType]time.Time
}

// NewAlertHistory creates an empty history.
func NewAlertHistory() *AlertHistory {
	return &AlertHistory{last: make(map[string]map[models.AlertType]time.Time)}
}

// Last returns the event time of the last accepted alert of type t for trackID.
func (h *AlertHistory) Last(trackID string, t models.AlertType) (time.Time, bool) {
	if h == nil {
		return time.Time{}, false
	}
	at, ok := h.last[trackID][t]
	return at, ok
}

// Len returns the number of tracks with remembered alerts.
func (h *AlertHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.last)
}

// Prune forgets tracks whose newest alert is more than retain before now.
// retain must be at least the longest cooldown; zero keeps everything.
func (h *AlertHistory) Prune(now time.Time, retain time.Duration) int {
	if h == nil || retain <= 0 {
		return 0
	}
	pruned := 0
	for trackID, byType := range h.last {
		keep := false
		for _, at := range byType {
			if now.Sub(at) <= retain {
				keep = true
				break
			}
		}
		if !keep {
			delete(h.last, trackID)
			pruned++
		}
	}
	return pruned
}

func (h *AlertHistory) record(trackID string, t models.AlertType, at time.Time) {
	byType, ok := h.last[trackID]
	if !ok {
		byType = make(map[models.AlertType]time.Time)
		h.last[trackID] = byType
	}
	if prev, ok := byType[t]; ok && prev.After(at) {
		return
	}
	byType[t] = at
}

// Deduper applies per-type cooldowns keyed by (camera, track, alert type).
// The camera is implied by the AlertHistory, which belongs to one worker.
type Deduper struct {
	cooldowns map[models.AlertType]time.Duration
}

// NewDeduper reads the cooldown of every alert type from cfg.
func NewDeduper(cfg *config.Config) *Deduper {
	return &Deduper{cooldowns: map[models.AlertType]time.Duration{
		models.AlertTypeLoitering:          cfg.CooldownLoitering,
		models.AlertTypeRestrictedArea:     cfg.CooldownRestrictedArea,
		models.AlertTypeSuspectMatch:       cfg.CooldownSuspectMatch,
		models.AlertTypeSuspiciousBehavior: cfg.CooldownSuspiciousBehavior,
	}}
}

// Cooldown returns the window for t.
func (d *Deduper) Cooldown(t models.AlertType) time.Duration {
	return d.cooldowns[t]
}

// MaxCooldown is the longest configured window: how long an AlertHistory
// entry has to be kept.
func (d *Deduper) MaxCooldown() time.Duration {
	var longest time.Duration
	for _, c := range d.cooldowns {
		if c > longest {
			longest = c
		}
	}
	return longest
}

// Allow reports whether c may become an alert. Timing uses event time, so a
// replayed or delayed stream deduplicates the same way a live one does; a
// candidate older than the last accepted alert is always suppressed.
func (d *Deduper) Allow(h *AlertHistory, c models.AlertCandidate) bool {
	last, ok := h.Last(c.TrackID, c.AlertType)
	if !ok {
		return true
	}
	return c.EventTime.Sub(last) >= d.cooldowns[c.AlertType]
}

// Record marks c as emitted.
func (d *Deduper) Record(h *AlertHistory, c models.AlertCandidate) {
	if h == nil {
		return
	}
	h.record(c.TrackID, c.AlertType, c.EventTime)
}
