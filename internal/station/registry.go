// Package station keeps the list of charging stations the fleet can route to.
package station

import (
	"errors"
	"sync"

	"vanara-sim/internal/geo"
)

// Status is the operating state of a charging station.
type Status string

const (
	StatusActive  Status = "Active"
	StatusOffline Status = "Offline"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s == StatusActive || s == StatusOffline }

var (
	// ErrUnknownStation is returned when a station id is not registered.
	ErrUnknownStation = errors.New("unknown station")
	// ErrInvalidStatus rejects statuses other than Active and Offline.
	ErrInvalidStatus = errors.New("invalid station status")
)

// Station is one charging site. Capacity is descriptive only.
type Station struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Lat      float64 `json:"lat" yaml:"lat"`
	Lon      float64 `json:"lon" yaml:"lon"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
	Status   Status  `json:"status" yaml:"status"`
}

// Active reports whether the station accepts bots.
func (s Station) Active() bool { return s.Status == StatusActive }

// Registry holds stations in registration order.
type Registry struct {
	mu       sync.RWMutex
	stations []Station
}

// NewRegistry creates a registry from stations, keeping their order.
func NewRegistry(stations []Station) *Registry {
	r := &Registry{stations: make([]Station, len(stations))}
	copy(r.stations, stations)
	return r
}

// NearestActive returns the active station closest to lat/lon.
// Ties keep the first station in registration order.
func (r *Registry) NearestActive(lat, lon float64) (Station, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best Station
	found := false
	bestDist := 0.0
	for _, s := range r.stations {
		if !s.Active() {
			continue
		}
		d := geo.DistanceKm(lat, lon, s.Lat, s.Lon)
		if !found || d < bestDist {
			best, bestDist, found = s, d, true
		}
	}
	return best, found
}

// Get looks up a station by id.
func (r *Registry) Get(id string) (Station, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}

// All returns a copy of all stations.
func (r *Registry) All() []Station {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Station, len(r.stations))
	copy(out, r.stations)
	return out
}

// SetStatus changes the status of a station.
func (r *Registry) SetStatus(id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.stations {
		if r.stations[i].ID == id {
			r.stations[i].Status = status
			return nil
		}
	}
	return ErrUnknownStation
}
