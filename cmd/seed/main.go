// Seed writes a development baseline so sessions can be started without enrolling first.
// It needs BASELINE_STORE=postgres (with DATABASE_URL, migrated) or BASELINE_STORE=redis (with REDIS_ADDR).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	baselinerepo "continuous-auth/backend/internal/baseline/repository"
	"continuous-auth/backend/internal/behavior/domain"
	"continuous-auth/backend/internal/config"
	"continuous-auth/backend/internal/db"
	"continuous-auth/backend/internal/logger"
)

const devUserID = "dev-user-001"

// devBaseline is a plausible profile for an average typist.
func devBaseline(now time.Time) domain.Baseline {
	return domain.Baseline{
		WPM:            62,
		AvgHoldMs:      95,
		BackspaceCount: 4,
		SampleCount:    180,
		EnrolledAt:     now,
	}
}

func main() {
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("seed: open store", "store", cfg.BaselineStore, "error", err)
	}
	defer closeFn()

	applied, err := seed(ctx, repo, devUserID, time.Now().UTC())
	if err != nil {
		log.Fatal("seed: failed", "error", err)
	}
	if !applied {
		log.Info("seed already applied; skipping", "user_id", devUserID)
		return
	}
	log.Info("seed applied", "user_id", devUserID, "store", cfg.BaselineStore)
}

func openStore(ctx context.Context, cfg *config.Config) (baselinerepo.Repository, func() error, error) {
	switch cfg.BaselineStore {
	case config.StorePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return baselinerepo.NewPostgresRepository(conn), conn.Close, nil
	case config.StoreRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return baselinerepo.NewRedisRepository(rdb, ""), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("BASELINE_STORE %q is not persistent; use postgres or redis", cfg.BaselineStore)
	}
}

// seed saves the dev baseline for userID unless one exists. It reports whether it wrote.
func seed(ctx context.Context, repo baselinerepo.Repository, userID string, now time.Time) (bool, error) {
	existing, err := repo.Load(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("seed check: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	if err := repo.Save(ctx, userID, devBaseline(now)); err != nil {
		return false, fmt.Errorf("save dev baseline: %w", err)
	}
	return true, nil
}
