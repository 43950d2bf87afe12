// Package server constructs and starts the chatwire HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartRegistry starts the global room registry in a separate goroutine.
// This should be called before starting the HTTP server.
func StartRegistry() {
	go registry.Run()
	log.Println("Registry started and ready to route room requests")
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	fmt.Printf("Server listening on port %s\n", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server shutdown completed")
	return nil
}

// ShutdownRegistry stops the registry, closes every live WebSocket
// connection, and waits for pump and room goroutines to finish. The HTTP
// server's Shutdown does not touch upgraded connections, so the sockets are
// closed here.
func ShutdownRegistry(timeout time.Duration) error {
	conns.closeAll()

	err := registry.Shutdown(timeout)

	if !conns.wait(timeout) {
		log.Println("Connection shutdown timeout reached, some pumps may still be running")
		if err == nil {
			err = context.DeadlineExceeded
		}
	}
	return err
}

// GetRegistry returns the global registry instance for shutdown coordination.
func GetRegistry() *Registry {
	return registry
}
