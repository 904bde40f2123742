package main

import (
	"context"
	"flag"

	"restaurant_ordering/internal/config"
	"restaurant_ordering/internal/database"
	"restaurant_ordering/internal/logger"
	"restaurant_ordering/internal/migrations"
)

func main() {
	reset := flag.Bool("reset", false, "drop every table before migrating")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	if cfg.IsProduction() && *reset {
		log.Fatal("Refusing to drop tables with APP_ENV=production")
	}

	db, err := database.Initialize(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)

	if err := migrations.RunMigrations(context.Background(), db, log, *reset); err != nil {
		log.WithError(err).Fatal("Database initialization failed")
	}
	log.Info("Database initialized")
}
