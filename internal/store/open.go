package store

import (
	"context"

	"github.com/mind-engage/mindengage-assess/internal/db"
)

// DriverMemory keeps everything in process; nothing survives a restart.
const DriverMemory = "memory"

// Open returns the backend for driver ("memory", "sqlite" or "postgres")
// and a close func for it.
func Open(ctx context.Context, driver, dsn, siteID string) (Store, func() error, error) {
	if driver == DriverMemory {
		return NewMemoryStore(), func() error { return nil }, nil
	}
	dbh, err := db.Open(ctx, db.Driver(driver), dsn)
	if err != nil {
		return nil, nil, err
	}
	return NewSQLStore(dbh, siteID), dbh.Close, nil
}
