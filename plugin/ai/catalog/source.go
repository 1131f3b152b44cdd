package catalog

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/servicefunnel/store"
)

// StoreSource reads active services from the service table.
type StoreSource struct {
	store *store.Store
}

func NewStoreSource(s *store.Store) *StoreSource {
	return &StoreSource{store: s}
}

func (s *StoreSource) ListActiveServices(ctx context.Context) ([]*Service, error) {
	list, err := s.store.ListServices(ctx, &store.FindService{ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list services")
	}

	services := make([]*Service, 0, len(list))
	for _, raw := range list {
		services = append(services, FromStore(raw))
	}
	return services, nil
}

// FromStore converts a stored service row.
func FromStore(raw *store.Service) *Service {
	return &Service{
		ID:          raw.ID,
		Code:        raw.Code,
		Name:        raw.Name,
		Description: raw.Description,
		Attributes: Attributes{
			IncidentType: raw.IncidentType,
			Category:     raw.Category,
			LocationType: raw.LocationType,
		},
		Tags: raw.Tags,
	}
}

// File is the YAML layout of a catalog file.
type File struct {
	Services []*FileService `yaml:"services"`
}

// FileService is a catalog file entry. Active defaults to true.
type FileService struct {
	Service `yaml:",inline"`
	Active  *bool `yaml:"active"`
}

// IsActive reports whether the entry should be served.
func (f *FileService) IsActive() bool {
	return f.Active == nil || *f.Active
}

// ReadFile parses a catalog YAML file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog file %s", path)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to parse catalog file %s", path)
	}
	for i, s := range file.Services {
		if s.Code == "" || s.Name == "" {
			return nil, errors.Errorf("catalog file %s: entry %d needs code and name", path, i+1)
		}
	}
	return &file, nil
}

// FileSource serves the catalog from a YAML file, re-read on every load.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) ListActiveServices(_ context.Context) ([]*Service, error) {
	file, err := ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	services := make([]*Service, 0, len(file.Services))
	for i, fs := range file.Services {
		if !fs.IsActive() {
			continue
		}
		svc := fs.Service
		if svc.ID == 0 {
			svc.ID = int32(i + 1)
		}
		services = append(services, &svc)
	}
	return services, nil
}

// Import upserts the entries of a catalog file into the service table by code.
// Entries marked inactive are stored as inactive, so they stop being served.
func Import(ctx context.Context, s *store.Store, file *File) (int, error) {
	now := time.Now().Unix()
	for _, fs := range file.Services {
		if _, err := s.UpsertService(ctx, &store.Service{
			Code:         fs.Code,
			Name:         fs.Name,
			Description:  fs.Description,
			IncidentType: fs.Attributes.IncidentType,
			Category:     fs.Attributes.Category,
			LocationType: fs.Attributes.LocationType,
			Tags:         fs.Tags,
			Active:       fs.IsActive(),
			UpdatedTs:    now,
		}); err != nil {
			return 0, errors.Wrapf(err, "failed to import service %s", fs.Code)
		}
	}
	return len(file.Services), nil
}
