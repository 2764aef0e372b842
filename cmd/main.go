package main

import (
	"chat-router/contract"
	"chat-router/correction"
	"chat-router/domain"
	"chat-router/infrastructure/ws"
	"chat-router/internal"
	"chat-router/moderation"
	"chat-router/observability"
	"chat-router/repositories"
	"chat-router/runtime"
	"chat-router/runtime/workers"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanups always execute.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = blugeWriter.Close()
	}()

	// 3. Core components
	metrics := observability.NewMetrics()
	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry(log, metrics, config.ConnectionBufferSize)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	searchRepository := repositories.NewSearchRepository(blugeWriter, log, config.SearchLimit)

	flagger, err := moderation.NewFlagger(splitWords(config.FlaggedWords))
	if err != nil {
		return fmt.Errorf("building flagger: %w", err)
	}

	pipeline := correction.NewPipeline(log, metrics, config.CorrectionURL,
		config.CorrectionInterval, config.CorrectionTimeout,
		config.DeliveryTimeout, config.CorrectionQueueSize)

	router := runtime.NewRouter(log, sup, metrics, config.BufferSize,
		func(room *domain.Room, mailbox chan domain.Command) contract.Worker {
			return workers.NewRoomWorker(room, mailbox, registry, pipeline,
				messageRepository, searchRepository, &flagger, metrics, log)
		})

	sup.Add(pipeline)
	sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval))

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router.Start(ctx)
	go sup.Run(ctx)

	// 5. Debug surface (inspect + metrics)
	internal.StartDebugServer(db, metrics.Registry(), config.DebugPort)

	// 6. WebSocket server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: ws.NewServer(log, router, registry).Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

func splitWords(raw string) []string {
	if raw == "" {
		return nil
	}
	var words []string
	for _, w := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(w); trimmed != "" {
			words = append(words, trimmed)
		}
	}
	return words
}
