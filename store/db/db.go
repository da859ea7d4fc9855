// Package db provides the store driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/solmari/civassist/internal/profile"
	"github.com/solmari/civassist/store"
	"github.com/solmari/civassist/store/db/memory"
	"github.com/solmari/civassist/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// sqlite: durable single-file storage, the default.
// memory: process-local storage for development and tests.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "memory":
		driver = memory.NewDB()
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' and 'memory' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
