package migration

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/railzwaylabs/metron/internal/config"
	"go.uber.org/fx"
)

// Migrations run on a dedicated connection so the advisory lock session is
// not shared with the application pool.
var Module = fx.Module("migrations",
	fx.Invoke(func(cfg config.Config) error {
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("migrations require the postgres driver, got %q", cfg.Database.Driver)
		}

		sqlDB, err := sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		return RunMigrations(sqlDB)
	}),
)
