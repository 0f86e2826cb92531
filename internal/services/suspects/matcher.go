// Package suspects matches feature vectors against the suspect gallery.
//
// The gallery is an immutable snapshot published through an atomic pointer.
// Camera workers read it without locks; a refresher builds a new snapshot
// and swaps it in.
package suspects

import (
	"math"
	"sync/atomic"
	"time"

	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
)

// Gallery is one loaded snapshot of active suspects.
type Gallery struct {
	Entries  []models.SuspectEntry
	Source   string
	LoadedAt time.Time
}

// NewGallery keeps active entries that carry at least one vector, in input
// order, and copies their vectors.
func NewGallery(entries []models.SuspectEntry, source string, loadedAt time.Time) *Gallery {
	g := &Gallery{Source: source, LoadedAt: loadedAt}
	for _, e := range entries {
		if !e.Active || e.SuspectID == "" {
			continue
		}
		entry := models.SuspectEntry{SuspectID: e.SuspectID, Name: e.Name, Active: true}
		for _, v := range e.FeatureVectors {
			if len(v) == 0 {
				continue
			}
			entry.FeatureVectors = append(entry.FeatureVectors, append([]float64(nil), v...))
		}
		if len(entry.FeatureVectors) > 0 {
			g.Entries = append(g.Entries, entry)
		}
	}
	return g
}

// Size returns the number of active entries.
func (g *Gallery) Size() int {
	if g == nil {
		return 0
	}
	return len(g.Entries)
}

// Matcher finds the nearest gallery entry for a feature vector.
type Matcher struct {
	tolerance float64
	gallery   atomic.Pointer[Gallery]
}

// NewMatcher creates a matcher with no gallery loaded. Matches fail with
// ErrGalleryUnavailable until Swap is called.
func NewMatcher(tolerance float64) *Matcher {
	return &Matcher{tolerance: tolerance}
}

// Swap publishes a new gallery snapshot.
func (m *Matcher) Swap(g *Gallery) {
	m.gallery.Store(g)
}

// Gallery returns the current snapshot, or nil.
func (m *Matcher) Gallery() *Gallery {
	return m.gallery.Load()
}

// Match compares vector against every vector of every active entry using
// Euclidean distance. The nearest entry wins if its distance is within the
// tolerance; ties keep gallery order. Vectors of a different dimension are
// skipped. An empty vector is no match. Similarity is 1 - distance.
func (m *Matcher) Match(vector []float64) (*models.SuspectMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	g := m.gallery.Load()
	if g == nil {
		return nil, engineerrors.ErrGalleryUnavailable
	}

	var best *models.SuspectEntry
	bestDist := math.Inf(1)
	for i := range g.Entries {
		for _, candidate := range g.Entries[i].FeatureVectors {
			d, ok := euclidean(vector, candidate)
			if ok && d < bestDist {
				bestDist = d
				best = &g.Entries[i]
			}
		}
	}

	if best == nil || bestDist > m.tolerance {
		return nil, nil
	}
	return &models.SuspectMatch{
		SuspectID:  best.SuspectID,
		Name:       best.Name,
		Distance:   bestDist,
		Similarity: 1 - bestDist,
	}, nil
}

func euclidean(a, b []float64) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), true
}
