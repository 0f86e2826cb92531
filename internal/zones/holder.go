package zones

import (
	"sync/atomic"

	"sentinel-engine-go/internal/models"
)

// Holder publishes the current Index to concurrent readers. Store swaps in
// a whole new Index; readers never see a partially built one.
type Holder struct {
	current atomic.Pointer[Index]
}

// NewHolder creates a holder serving idx (which may be nil).
func NewHolder(idx *Index) *Holder {
	h := &Holder{}
	h.current.Store(idx)
	return h
}

// Load returns the current index.
func (h *Holder) Load() *Index {
	return h.current.Load()
}

// Store replaces the current index.
func (h *Holder) Store(idx *Index) {
	h.current.Store(idx)
}

// ResolveZone resolves against the current index.
func (h *Holder) ResolveZone(cameraID string, p models.Point) (*models.Zone, bool) {
	return h.Load().ResolveZone(cameraID, p)
}

// Zone looks up a zone in the current index.
func (h *Holder) Zone(cameraID, zoneID string) (*models.Zone, bool) {
	return h.Load().Zone(cameraID, zoneID)
}

// Camera looks up a camera in the current index.
func (h *Holder) Camera(cameraID string) (*models.Camera, bool) {
	return h.Load().Camera(cameraID)
}
