package zones

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sentinel-engine-go/internal/models"
)

// FileConfig is the on-disk layout of the zones file:
//
//	cameras:
//	  - id: cam_1
//	    name: Entrance
//	    zones:
//	      - id: storage
//	        restricted: true
//	        polygon: [[0, 0], [100, 0], [100, 100], [0, 100]]
type FileConfig struct {
	Cameras []CameraConfig `yaml:"cameras"`
}

type CameraConfig struct {
	ID     string       `yaml:"id"`
	Name   string       `yaml:"name"`
	Active *bool        `yaml:"active"`
	Zones  []ZoneConfig `yaml:"zones"`
}

type ZoneConfig struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name"`
	Restricted bool        `yaml:"restricted"`
	Polygon    [][]float64 `yaml:"polygon"`
}

// LoadFile reads and validates a zones YAML file.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones file: %w", err)
	}
	return Parse(data)
}

// Parse builds an Index from YAML. Cameras default to active.
func Parse(data []byte) (*Index, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse zones file: %w", err)
	}

	cameras := make([]models.Camera, 0, len(fc.Cameras))
	for _, cc := range fc.Cameras {
		cam := models.Camera{ID: cc.ID, Name: cc.Name, Active: true}
		if cc.Active != nil {
			cam.Active = *cc.Active
		}
		for _, zc := range cc.Zones {
			zone := models.Zone{ID: zc.ID, CameraID: cc.ID, Name: zc.Name, Restricted: zc.Restricted}
			for i, v := range zc.Polygon {
				if len(v) != 2 {
					return nil, fmt.Errorf("camera %s zone %s: vertex %d must be [x, y]", cc.ID, zc.ID, i)
				}
				zone.Polygon = append(zone.Polygon, models.Point{X: v[0], Y: v[1]})
			}
			cam.Zones = append(cam.Zones, zone)
		}
		cameras = append(cameras, cam)
	}

	return NewIndex(cameras)
}
