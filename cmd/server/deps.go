package main

import (
	"context"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"

	baselinerepo "continuous-auth/backend/internal/baseline/repository"
	"continuous-auth/backend/internal/behavior/classifier"
	"continuous-auth/backend/internal/config"
	"continuous-auth/backend/internal/db"
	"continuous-auth/backend/internal/security"
)

// baselineStore is the configured repository plus whatever connection backs it.
type baselineStore struct {
	baselinerepo.Repository
	closeFn func() error
}

func (s *baselineStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func newBaselineStore(ctx context.Context, cfg *config.Config) (*baselineStore, error) {
	switch cfg.BaselineStore {
	case config.StorePostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &baselineStore{Repository: baselinerepo.NewPostgresRepository(conn), closeFn: conn.Close}, nil
	case config.StoreRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return &baselineStore{Repository: baselinerepo.NewRedisRepository(rdb, ""), closeFn: rdb.Close}, nil
	default:
		return &baselineStore{Repository: baselinerepo.NewMemoryRepository()}, nil
	}
}

// newClassifier returns the configured strategy and, for OPA, the policy health check.
func newClassifier(ctx context.Context, cfg *config.Config) (classifier.Classifier, *classifier.OPA, error) {
	params := classifier.Params{Threshold: cfg.AnomalyThreshold, MinSamples: cfg.MinSampleCount}
	if cfg.Classifier != config.ClassifierOPA {
		return classifier.NewThreshold(params), nil, nil
	}
	var policy string
	if cfg.ClassifierPolicyFile != "" {
		b, err := os.ReadFile(cfg.ClassifierPolicyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read policy file: %w", err)
		}
		policy = string(b)
	}
	opa, err := classifier.NewOPA(ctx, policy, params)
	if err != nil {
		return nil, nil, err
	}
	return opa, opa, nil
}

// newTokenProvider loads the configured key pair, or generates an ephemeral one when none is set.
func newTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if !cfg.AuthEnabled() {
		return security.NewEphemeralTokenProvider(cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	}
	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
}
