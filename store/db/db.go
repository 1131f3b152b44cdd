// Package db selects the storage driver named by the profile.
//
// PostgreSQL serves production deployments shared by several funnel replicas.
// SQLite serves single-node deployments, the CLI and tests. Every table is
// implemented for both.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/servicefunnel/internal/profile"
	"github.com/hrygo/servicefunnel/store"
	"github.com/hrygo/servicefunnel/store/db/postgres"
	"github.com/hrygo/servicefunnel/store/db/sqlite"
)

func NewDBDriver(prof *profile.Profile) (store.Driver, error) {
	open, ok := map[string]func(*profile.Profile) (store.Driver, error){
		"sqlite":   sqlite.NewDB,
		"postgres": postgres.NewDB,
	}[prof.Driver]
	if !ok {
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", prof.Driver)
	}

	driver, err := open(prof)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s driver", prof.Driver)
	}
	return driver, nil
}
