package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const bootstrapStatusActive = "active"

// activateSystemBootstrapState upserts the singleton bootstrap row after a
// successful migration run. The row carries the schema version and checksum
// the application verifies at startup.
func activateSystemBootstrapState(ctx context.Context, db *sql.DB, schemaVersion, checksum string) error {
	if db == nil {
		return errors.New("bootstrap state requires a database handle")
	}
	schemaVersion = strings.TrimSpace(schemaVersion)
	if schemaVersion == "" {
		return errors.New("bootstrap state requires a schema version")
	}

	var checksumValue any
	if c := strings.TrimSpace(checksum); c != "" {
		checksumValue = c
	}

	const upsert = `
		INSERT INTO system_bootstrap_state (id, status, schema_version, checksum, activated_at, created_at)
		VALUES (TRUE, $1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    activated_at = EXCLUDED.activated_at`

	if _, err := db.ExecContext(ctx, upsert, bootstrapStatusActive, schemaVersion, checksumValue, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate bootstrap state: %w", err)
	}
	return nil
}
