package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/servicefunnel/internal/profile"
	"github.com/hrygo/servicefunnel/store"
	"github.com/hrygo/servicefunnel/store/db"
)

// getDriverFromEnv selects the driver under test. Postgres runs only when
// DRIVER=postgres and POSTGRES_TEST_DSN points at a disposable database.
func getDriverFromEnv() string {
	if os.Getenv("DRIVER") == "postgres" && os.Getenv("POSTGRES_TEST_DSN") != "" {
		return "postgres"
	}
	return "sqlite"
}

// NewTestingStore opens a migrated store on a fresh database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	prof := &profile.Profile{
		Mode:   "dev",
		Driver: getDriverFromEnv(),
		Data:   t.TempDir(),
	}
	if prof.Driver == "postgres" {
		prof.DSN = os.Getenv("POSTGRES_TEST_DSN")
	} else {
		prof.DSN = filepath.Join(prof.Data, "funnel_test.db")
	}

	driver, err := db.NewDBDriver(prof)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(driver, prof)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if prof.Driver == "postgres" {
			for _, table := range []string{"llm_usage", "dialog_memory", "service"} {
				_, _ = driver.GetDB().ExecContext(context.Background(), "DELETE FROM "+table)
			}
		}
		_ = ts.Close()
	})
	return ts
}
