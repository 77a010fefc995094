// Migrate manages the Postgres schema. By default it applies every pending migration; -direction
// down rolls everything back, -steps N moves N versions (negative to roll back) and -status only
// reports the current version.
package main

import (
	"errors"
	"flag"
	"log"

	"go.uber.org/zap"

	"bikecare/backend/internal/config"
	"bikecare/backend/internal/db/migrate"
	applog "bikecare/backend/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "apply all pending (up) or roll back all (down)")
	steps := flag.Int("steps", 0, "move this many versions instead; negative rolls back")
	status := flag.Bool("status", false, "print the schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := applog.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("migrate: read version", zap.Error(err))
	}
	if *status {
		logger.Info("schema", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return
	}
	if dirty {
		logger.Fatal("migrate: schema is dirty; fix the failed migration and force the version manually", zap.Uint("version", version))
	}

	if *steps != 0 {
		err = migrate.Steps(cfg.DatabaseURL, *steps)
	} else {
		err = migrate.Run(cfg.DatabaseURL, *direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("migrate", zap.Error(err))
	}

	after, _, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("migrate: read version", zap.Error(err))
		return
	}
	logger.Info("schema migrated", zap.Uint("from", version), zap.Uint("to", after))
}
