package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Session-level lock key shared by every metron migrator instance.
const migrationLockKey int64 = 6_102_443_987

type releaseFunc func(ctx context.Context) error

// acquireAdvisoryLock takes the postgres advisory lock that serializes
// migration runs. It does not block: a second runner gets an error instead
// of waiting behind the first.
func acquireAdvisoryLock(ctx context.Context, db *sql.DB) (releaseFunc, error) {
	if db == nil {
		return nil, errors.New("advisory lock requires a database handle")
	}

	var acquired bool
	row := db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockKey)
	if err := row.Scan(&acquired); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !acquired {
		return nil, errors.New("migration lock is held by another process")
	}

	release := func(ctx context.Context) error {
		var done bool
		row := db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey)
		if err := row.Scan(&done); err != nil {
			return fmt.Errorf("release migration lock: %w", err)
		}
		if !done {
			return errors.New("migration lock was not held by this session")
		}
		return nil
	}
	return release, nil
}
