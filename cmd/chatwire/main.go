package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/chatwire/chatwire/internal/server"
)

func main() {
	port := pflag.String("port", "", "listen address, e.g. :8080 (overrides SERVER_PORT)")
	origins := pflag.StringSlice("allowed-origins", nil, "allowed WebSocket origins (overrides ALLOWED_ORIGINS)")
	shutdownTimeout := pflag.Duration("shutdown-timeout", 10*time.Second, "how long to wait for graceful shutdown")
	pflag.Parse()

	fmt.Println("Starting chatwire server...")

	// Environment first, flags on top.
	config := server.NewConfigFromEnv()
	if *port != "" {
		config.Port = *port
	}
	if len(*origins) > 0 {
		config.AllowedOrigins = *origins
	}
	server.SetConfig(config)

	server.StartRegistry()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}

	if err := server.ShutdownServer(httpServer, *shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown finished with error: %v", err)
	}
	if err := server.ShutdownRegistry(*shutdownTimeout); err != nil {
		log.Printf("Registry shutdown finished with error: %v", err)
	}
}
