package main

import (
	"context"
	"direct-chat/auth"
	"direct-chat/infrastructure/api"
	grpcserver "direct-chat/infrastructure/grpc/server"
	"direct-chat/infrastructure/ws"
	"direct-chat/internal"
	"direct-chat/moderation"
	"direct-chat/observability"
	"direct-chat/repositories"
	"direct-chat/runtime"
	"direct-chat/runtime/workers"
	"direct-chat/services"
	"direct-chat/storage"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

const (
	exitOK     = 0
	exitConfig = 2
	exitFatal  = 1
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred closes run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitFatal, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitFatal, fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge index...")
		_ = writer.Close()
	}()

	disk, err := storage.NewDiskStore(config.UploadsDir, "/uploads", log)
	if err != nil {
		return exitFatal, err
	}

	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	userRepository := repositories.NewUserRepository(db)
	searchIndex := repositories.NewSearchIndex(writer, log)

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(registry)

	// 4. Runtime
	var moderator *moderation.Moderator
	if config.EnableModeration {
		if moderator, err = runtime.LoadModerator(log, charReplacement); err != nil {
			return exitFatal, fmt.Errorf("moderation loading failed: %w", err)
		}
	}

	tokens := auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	verifier := auth.NewVerifier(tokens)
	connections := runtime.NewRegistry()
	presence := runtime.NewPresence(connections, log, metrics)
	router := runtime.NewRouter(log, runtime.RouterConfig{
		Registry:    connections,
		Store:       messageRepository,
		Attachments: disk,
		Indexer:     searchIndex,
		Moderator:   moderator,
		Metrics:     metrics,
	})
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, connections, presence, router, supervisor, runtime.OrchestratorConfig{
		Verifier: verifier,
		Heartbeat: runtime.HeartbeatConfig{
			PingInterval: config.PingInterval,
			PongGrace:    config.PongGrace,
		},
		Metrics: metrics,
	})
	orchestrator.Add(workers.NewStatsWorker(log, connections, metrics, config.StatsInterval))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go orchestrator.Start(ctx)

	// 6. HTTP: accounts, history, uploads, metrics and the WebSocket hub
	handler := api.NewHandler(log, api.Config{
		Auth:        services.NewAuthService(userRepository, tokens),
		Chat:        services.NewChatService(messageRepository, userRepository, searchIndex, connections),
		Verifier:    verifier,
		Attachments: disk,
		WebSocket: ws.NewServer(log, orchestrator, ws.Config{
			BufferSize:      config.ConnectionBufferSize,
			DeliveryTimeout: config.DeliveryTimeout,
			MaxFrameBytes:   config.MaxFrameBytes,
			AllowedOrigin:   config.AllowedOrigin,
		}),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		TokenDuration: config.AuthTokenDuration,
		SecureCookie:  config.SecureCookie,
	})
	httpAddress := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              httpAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. gRPC health
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitFatal, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer := grpc.NewServer()
	health := grpcserver.NewHealthServer(log)
	health.Register(grpcServer)

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC health server", "address", grpcAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting HTTP server", "address", httpAddress, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	health.SetServing(true)

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		code = exitFatal
	}

	// 9. Final Cleanup
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	orchestrator.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcServer.GracefulStop()
	log.Info("Program stopped cleanly")

	return code, runErr
}
