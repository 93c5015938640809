package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Run applies (or rolls back) every migration against databaseURL.
// sourceURL selects a file:// directory; empty uses the embedded Files.
func Run(ctx context.Context, databaseURL, sourceURL string, dir Direction, logger zerolog.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping migrations database: %w", err)
	}

	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return fmt.Errorf("initialise pgx v5 driver: %w", err)
	}

	m, err := newMigrate(sourceURL, driver)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().AnErr("source_error", srcErr).AnErr("db_error", dbErr).Msg("Failed to close migrations")
		}
	}()

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", dir)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info().Str("direction", string(dir)).Msg("Database migrations up-to-date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}

	version, dirty, _ := m.Version()
	logger.Info().Str("direction", string(dir)).Uint("version", version).Bool("dirty", dirty).Msg("Database migrations applied")
	return nil
}

func newMigrate(sourceURL string, driver database.Driver) (*migrate.Migrate, error) {
	if sourceURL != "" {
		m, err := migrate.NewWithDatabaseInstance(sourceURL, "pgx5", driver)
		if err != nil {
			return nil, fmt.Errorf("initialise migrate from %s: %w", sourceURL, err)
		}
		return m, nil
	}

	src, err := iofs.New(Files, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("initialise migrate: %w", err)
	}
	return m, nil
}
