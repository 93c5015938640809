package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cassiomorais/notifications/internal/infrastructure/config"
	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/cassiomorais/notifications/migrations"
)

func main() {
	var (
		direction string
		dbURL     string
		path      string
	)

	flag.StringVar(&direction, "direction", "up", "Migration direction: up or down")
	flag.StringVar(&dbURL, "db", "", "Database URL (or set DATABASE_URL env var)")
	flag.StringVar(&path, "path", "", "file:// URL of a migrations directory (default: embedded migrations)")
	flag.Parse()

	logger := observability.InitLogger("info", observability.LogFormatConsole, os.Stdout)

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" || path == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		if dbURL == "" {
			dbURL = cfg.Database.DatabaseURL()
		}
		if path == "" {
			path = cfg.Database.MigrationsPath
		}
	}

	if err := migrations.Run(context.Background(), dbURL, path, migrations.Direction(direction), logger); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", direction, err)
		os.Exit(1)
	}
}
