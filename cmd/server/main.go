// server runs the continuous-auth gRPC service.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"continuous-auth/backend/internal/config"
	"continuous-auth/backend/internal/continuousauth/service"
	"continuous-auth/backend/internal/logger"
	"continuous-auth/backend/internal/server"
	"continuous-auth/backend/internal/session/registry"
	"continuous-auth/backend/internal/telemetry"
	telemetryotel "continuous-auth/backend/internal/telemetry/otel"
	"continuous-auth/backend/internal/telemetry/producer"
)

const shutdownTimeout = 10 * time.Second

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
	zap.ReplaceGlobals(log.SugaredLogger.Desugar())

	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		log.Fatal("otel providers", "error", err)
	}
	providers.SetGlobal()
	if providers.Enabled() {
		log.Info("otel export enabled", "endpoint", cfg.OTelEndpoint)
	}

	metrics, err := telemetry.NewMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatal("metrics", "error", err)
	}

	store, err := newBaselineStore(ctx, cfg)
	if err != nil {
		log.Fatal("baseline store", "backend", cfg.BaselineStore, "error", err)
	}
	defer store.Close()

	clf, policyChecker, err := newClassifier(ctx, cfg)
	if err != nil {
		log.Fatal("classifier", "kind", cfg.Classifier, "error", err)
	}

	kafka, kafkaEnabled, err := producer.Open(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatal("kafka producer", "error", err)
	}
	if kafkaEnabled {
		log.Info("publishing telemetry to kafka", "topic", cfg.TelemetryKafkaTopic)
	}
	emitter := telemetry.NewAsync(telemetry.Multi(telemetryotel.NewEventEmitter(providers.LoggerProvider), kafka))

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		log.Fatal("session tokens", "error", err)
	}
	if !cfg.AuthEnabled() {
		log.Warn("JWT keys not configured; using an ephemeral signing key")
	}

	reg := registry.New(
		registry.WithLogger(log),
		registry.WithEmitter(emitter),
		registry.WithMetrics(metrics),
	)
	svc := service.New(store.Repository, reg, clf,
		service.WithConfig(service.Config{
			PointerSampleInterval: cfg.PointerSampleEvery(),
			AnalysisInterval:      cfg.AnalysisEvery(),
			IdleTimeout:           cfg.IdleAfter(),
			MinSamples:            cfg.MinSampleCount,
		}),
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithEmitter(emitter),
	)

	deps := server.Deps{
		ContinuousAuth:   svc,
		Tokens:           tokens,
		SessionValidator: svc.ValidateSession,
		Emitter:          emitter,
		HealthPinger:     store.Repository,
		Logger:           log,
	}
	if policyChecker != nil {
		deps.HealthPolicyChecker = policyChecker
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("listen", "addr", cfg.GRPCAddr, "error", err)
	}
	defer lis.Close()

	s := grpc.NewServer(server.ServerOptions(deps)...)
	server.RegisterServices(s, deps)

	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr, "baseline_store", cfg.BaselineStore,
			"classifier", cfg.Classifier, "min_samples", svc.MinSamples(), "threshold", cfg.AnomalyThreshold)
		if err := s.Serve(lis); err != nil {
			log.Fatal("serve", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gRPC server")
	s.GracefulStop()
	svc.Close()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	if err := emitter.Drain(drainCtx); err != nil {
		log.Warn("telemetry drain", "error", err)
	}
	drainCancel()
	if err := kafka.Close(); err != nil {
		log.Warn("kafka producer close", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("otel shutdown", "error", err)
	}
	log.Info("gRPC server stopped")
}

