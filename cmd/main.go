package main

import (
	"chatline/identity"
	"chatline/internal"
	"chatline/observability"
	"chatline/repositories"
	"chatline/runtime"
	"chatline/runtime/workers"
	"chatline/services"
	"chatline/transport"
	"chatline/upload"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle and
// centralizes error reporting, so deferred cleanups (database close)
// always execute before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Relay assembly
	store := repositories.NewBadgerDocumentStore(db, log)
	resolver := identity.NewBadgerDirectory(db)
	directory := runtime.NewDirectory(resolver, log)
	monitor := observability.NewMonitor(directory.Count)
	contacts := services.NewContactGraph(resolver, store, log)
	relay := services.NewMessageRelay(resolver, store, directory, monitor, log)
	presence := services.NewPresenceBroadcaster(resolver, directory, monitor, log)
	gateway := transport.NewGateway(directory, contacts, relay, presence, monitor,
		config.ConnectionBufferSize, log)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewStatsReporter(log, monitor, config.MetricInterval))
	go sup.Run(ctx)

	if config.DebugPort != 0 {
		internal.StartDebugServer(db, config.DebugPort, monitor.Snapshot, log)
	}

	// 6. HTTP & WebSocket surface
	app := fiber.New()
	app.Static("/", "./public")
	app.Get("/login", func(c *fiber.Ctx) error {
		return c.SendFile("public/index.html")
	})
	app.Get("/ws", websocket.New(gateway.Handle))
	app.Post("/upload_img", upload.NewHandler(config.ImageUploadURL, config.ImageUploadKey, log).Post)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay", "address", address)
		if err := app.Listen(address); err != nil {
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
	_ = app.Shutdown()
	sup.Stop()
	log.Info("Program stopped cleanly")
	return nil
}
