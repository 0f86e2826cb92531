// Package zones resolves frame positions to configured camera zones.
//
// An Index is immutable once built and is shared by every camera worker
// without locking. Reloading the zones file builds a new Index that callers
// swap in atomically.
//
// When zones overlap, the first polygon in configured order wins.
package zones

import (
	"fmt"
	"sort"

	engineerrors "sentinel-engine-go/internal/errors"
	"sentinel-engine-go/internal/models"
)

// Index maps camera ids to their ordered zones.
type Index struct {
	cameras map[string]*models.Camera
}

// NewIndex validates and copies the given cameras.
func NewIndex(cameras []models.Camera) (*Index, error) {
	idx := &Index{cameras: make(map[string]*models.Camera, len(cameras))}

	for _, cam := range cameras {
		if cam.ID == "" {
			return nil, engineerrors.New(engineerrors.ErrCategoryConfig, engineerrors.CodeInvalidZone, "camera id is required")
		}
		if _, dup := idx.cameras[cam.ID]; dup {
			return nil, engineerrors.New(engineerrors.ErrCategoryConfig, engineerrors.CodeInvalidZone, fmt.Sprintf("camera %s configured twice", cam.ID))
		}

		c := models.Camera{ID: cam.ID, Name: cam.Name, Active: cam.Active, Zones: make([]models.Zone, 0, len(cam.Zones))}
		seen := make(map[string]bool, len(cam.Zones))
		for _, z := range cam.Zones {
			if z.ID == "" {
				return nil, engineerrors.New(engineerrors.ErrCategoryConfig, engineerrors.CodeInvalidZone, fmt.Sprintf("camera %s: zone id is required", cam.ID))
			}
			if seen[z.ID] {
				return nil, engineerrors.New(engineerrors.ErrCategoryConfig, engineerrors.CodeInvalidZone, fmt.Sprintf("camera %s: zone %s configured twice", cam.ID, z.ID))
			}
			if len(z.Polygon) < 3 {
				return nil, engineerrors.New(engineerrors.ErrCategoryConfig, engineerrors.CodeInvalidZone, fmt.Sprintf("camera %s: zone %s needs at least 3 vertices", cam.ID, z.ID))
			}
			seen[z.ID] = true

			poly := make([]models.Point, len(z.Polygon))
			copy(poly, z.Polygon)
			c.Zones = append(c.Zones, models.Zone{
				ID:         z.ID,
				CameraID:   cam.ID,
				Name:       z.Name,
				Polygon:    poly,
				Restricted: z.Restricted,
			})
		}
		idx.cameras[cam.ID] = &c
	}

	return idx, nil
}

// ResolveZone returns the first configured zone containing p. It returns
// false for unknown cameras, cameras without zones and positions outside
// every polygon.
func (idx *Index) ResolveZone(cameraID string, p models.Point) (*models.Zone, bool) {
	if idx == nil {
		return nil, false
	}
	cam, ok := idx.cameras[cameraID]
	if !ok {
		return nil, false
	}
	for i := range cam.Zones {
		if Contains(cam.Zones[i].Polygon, p) {
			return &cam.Zones[i], true
		}
	}
	return nil, false
}

// Zone looks up a zone by id.
func (idx *Index) Zone(cameraID, zoneID string) (*models.Zone, bool) {
	if idx == nil || zoneID == "" {
		return nil, false
	}
	cam, ok := idx.cameras[cameraID]
	if !ok {
		return nil, false
	}
	for i := range cam.Zones {
		if cam.Zones[i].ID == zoneID {
			return &cam.Zones[i], true
		}
	}
	return nil, false
}

// Camera looks up a configured camera.
func (idx *Index) Camera(cameraID string) (*models.Camera, bool) {
	if idx == nil {
		return nil, false
	}
	cam, ok := idx.cameras[cameraID]
	return cam, ok
}

// Cameras returns configured cameras sorted by id.
func (idx *Index) Cameras() []models.Camera {
	if idx == nil {
		return nil
	}
	out := make([]models.Camera, 0, len(idx.cameras))
	for _, cam := range idx.cameras {
		out = append(out, *cam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Contains reports whether p lies inside or on the boundary of polygon.
func Contains(polygon []models.Point, p models.Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := polygon[i], polygon[j]
		if onSegment(a, b, p) {
			return true
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

const epsilon = 1e-9

func onSegment(a, b, p models.Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if cross > epsilon || cross < -epsilon {
		return false
	}
	return p.X >= min(a.X, b.X)-epsilon && p.X <= max(a.X, b.X)+epsilon &&
		p.Y >= min(a.Y, b.Y)-epsilon && p.Y <= max(a.Y, b.Y)+epsilon
}
