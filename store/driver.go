package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Service model related methods.
	ListServices(ctx context.Context, find *FindService) ([]*Service, error)
	UpsertService(ctx context.Context, upsert *Service) (*Service, error)

	// DialogMemory model related methods.
	// GetDialogMemory returns nil without error when the dialog is unknown.
	GetDialogMemory(ctx context.Context, dialogID string) (*DialogMemory, error)
	UpsertDialogMemory(ctx context.Context, upsert *DialogMemory) (*DialogMemory, error)
	DeleteDialogMemory(ctx context.Context, delete *DeleteDialogMemory) (int64, error)

	// LLMUsage model related methods.
	CreateLLMUsage(ctx context.Context, create *LLMUsage) (*LLMUsage, error)
	ListLLMUsage(ctx context.Context, find *FindLLMUsage) ([]*LLMUsage, error)
}
