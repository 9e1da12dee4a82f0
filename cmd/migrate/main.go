// Migrate manages the behavior_baselines schema.
//
//	go run ./cmd/migrate -direction up
//	go run ./cmd/migrate -direction down
//	go run ./cmd/migrate -status
package main

import (
	"flag"
	"fmt"
	"os"

	"continuous-auth/backend/internal/config"
	"continuous-auth/backend/internal/db/migrate"
	"continuous-auth/backend/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	status := flag.Bool("status", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *status {
		version, dirty, err := migrate.Status(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("migrate: status", "error", err)
		}
		log.Info("migrate: status", "version", version, "dirty", dirty)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		log.Fatal("migrate: failed", "direction", *direction, "error", err)
	}
	log.Info("migrate: complete", "direction", *direction)
}
