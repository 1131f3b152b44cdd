// Package catalog serves the active maintenance services as an immutable,
// periodically refreshed snapshot.
package catalog

import (
	"context"
	"sort"
)

// Location types.
const (
	LocationInUnit = "in_unit"
	LocationShared = "shared"
)

// Incident types.
const (
	IncidentTypeIncident = "incident"
	IncidentTypeRequest  = "request"
)

// Attributes are the static facets a service can be filtered by.
type Attributes struct {
	IncidentType string `json:"incidentType" yaml:"incident_type"`
	Category     string `json:"category" yaml:"category"`
	LocationType string `json:"locationType" yaml:"location_type"`
}

// Service is one catalog entry.
type Service struct {
	ID          int32      `json:"id" yaml:"id"`
	Code        string     `json:"code" yaml:"code"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Attributes  Attributes `json:"attributes" yaml:",inline"`
	Tags        []string   `json:"tags" yaml:"tags"`
}

// Source lists the currently active services.
type Source interface {
	ListActiveServices(ctx context.Context) ([]*Service, error)
}

// Snapshot is an immutable view of the catalog. Callers must not modify the services.
type Snapshot struct {
	services []*Service
	byID     map[int32]*Service
}

// NewSnapshot indexes services by id, ordered by id.
func NewSnapshot(services []*Service) *Snapshot {
	sorted := make([]*Service, len(services))
	copy(sorted, services)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int32]*Service, len(sorted))
	for _, s := range sorted {
		byID[s.ID] = s
	}
	return &Snapshot{services: sorted, byID: byID}
}

// Services returns every service ordered by id.
func (s *Snapshot) Services() []*Service {
	return s.services
}

// Get returns the service with the given id.
func (s *Snapshot) Get(id int32) (*Service, bool) {
	svc, ok := s.byID[id]
	return svc, ok
}

// Len returns the number of services.
func (s *Snapshot) Len() int {
	return len(s.services)
}
