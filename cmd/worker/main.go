// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	http_api "validation-worker/internal/api/http"
	"validation-worker/internal/config"
	"validation-worker/internal/domain"
	"validation-worker/internal/infra/etcd"
	http_infra "validation-worker/internal/infra/http"
	redis_infra "validation-worker/internal/infra/redis"
	"validation-worker/internal/tracing"
	"validation-worker/internal/validation"
	"validation-worker/internal/worker"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelgrpc "go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

func main() {
	// 1. Load .env (optional) and configuration
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Init logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	nodeID := uuid.New().String()
	logger = logger.With("node_id", nodeID)

	tracerShutdown, err := tracing.InitTracer(cfg.ServiceName, cfg.TracingEnabled, logger)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}()

	logger.Info("starting validation worker", "http_addr", cfg.HttpListenAddr, "grpc_addr", cfg.GrpcListenAddr)

	// 3. Create root context and graceful shutdown
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel, logger)

	// 4. Dead-letter storage
	deadLetters, closeDeadLetters, err := newDeadLetterRepository(rootCtx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up dead-letter storage: %v", err)
	}
	defer closeDeadLetters()

	// 5. Launchers, one per validator kind with a configured endpoint
	sender := http_infra.NewRetryableSender(logger,
		http_infra.WithMaxRetries(cfg.DeliveryMaxRetries),
		http_infra.WithTimeout(cfg.DeliveryTimeout),
	)

	validatorURLs := map[string]string{
		validation.VolumeType.Name:   cfg.VolumeTypeValidatorURL,
		validation.InstanceType.Name: cfg.InstanceTypeValidatorURL,
	}
	aiServices := map[string]string{
		validation.VolumeType.Name:   cfg.VolumeTypeAIService,
		validation.InstanceType.Name: cfg.InstanceTypeAIService,
	}

	registry := worker.NewRegistry()
	for _, kind := range validation.Kinds() {
		kind = kind.WithAIService(aiServices[kind.Name])
		url := validatorURLs[kind.Name]
		if url == "" {
			logger.Warn("no validator endpoint configured, kind disabled", "kind", kind.Name)
			continue
		}
		opts := []worker.LauncherOption{
			worker.WithMaxConcurrent(cfg.MaxConcurrentJobs),
			worker.WithFailureHandler(worker.CountValidatorFailures),
		}
		if deadLetters != nil {
			opts = append(opts, worker.WithDeadLetters(deadLetters))
		}
		invoker := validation.NewInvoker(kind, validation.NewRemoteValidator(url, cfg.ValidatorTimeout))
		registry.Register(worker.NewLauncher(invoker, sender, logger, opts...))
	}
	if len(registry.Kinds()) == 0 {
		logger.Warn("no validator kinds enabled, every launch will be rejected")
	}

	// 6. gRPC intake
	lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen for gRPC: %v", err)
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	worker.NewServer(registry, logger).Register(grpcServer)

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GrpcListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("gRPC server failed: %v", err)
		}
	}()

	// 7. HTTP intake and metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	http_api.NewJobHandler(registry, logger).RegisterRoutes(mux)
	if deadLetters != nil {
		http_api.NewDeadLetterHandler(deadLetters, logger).RegisterRoutes(mux)
	}

	server := &http.Server{
		Addr:    cfg.HttpListenAddr,
		Handler: mux,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HttpListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 8. Block until shutdown, stop intake, then drain running jobs
	<-rootCtx.Done()
	logger.Info("shutting down validation worker gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()

	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Error("jobs still running at shutdown", "error", err)
	}

	logger.Info("validation worker shut down")
}

// newDeadLetterRepository builds the configured dead-letter backend. It
// returns a nil repository for the none backend.
func newDeadLetterRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.DeadLetterRepository, func(), error) {
	switch cfg.DeadLetterBackend {
	case config.DeadLetterRedis:
		client, err := redis_infra.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}
		return redis_infra.NewRedisDeadLetterRepository(client, cfg.RedisDeadLetterKey, logger), closeFn, nil

	case config.DeadLetterEtcd:
		client, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to etcd", "endpoints", cfg.EtcdEndpoints)
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close etcd client", "error", err)
			}
		}
		return etcd.NewEtcdDeadLetterRepository(client, logger), closeFn, nil

	default:
		return nil, func() {}, nil
	}
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()
}
