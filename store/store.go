package store

import (
	"context"

	"github.com/hrygo/servicefunnel/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) ListServices(ctx context.Context, find *FindService) ([]*Service, error) {
	return s.driver.ListServices(ctx, find)
}

func (s *Store) UpsertService(ctx context.Context, upsert *Service) (*Service, error) {
	return s.driver.UpsertService(ctx, upsert)
}

func (s *Store) GetDialogMemory(ctx context.Context, dialogID string) (*DialogMemory, error) {
	return s.driver.GetDialogMemory(ctx, dialogID)
}

func (s *Store) UpsertDialogMemory(ctx context.Context, upsert *DialogMemory) (*DialogMemory, error) {
	return s.driver.UpsertDialogMemory(ctx, upsert)
}

func (s *Store) DeleteDialogMemory(ctx context.Context, delete *DeleteDialogMemory) (int64, error) {
	return s.driver.DeleteDialogMemory(ctx, delete)
}

func (s *Store) CreateLLMUsage(ctx context.Context, create *LLMUsage) (*LLMUsage, error) {
	return s.driver.CreateLLMUsage(ctx, create)
}

func (s *Store) ListLLMUsage(ctx context.Context, find *FindLLMUsage) ([]*LLMUsage, error) {
	return s.driver.ListLLMUsage(ctx, find)
}
