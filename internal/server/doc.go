// Package server implements the core HTTP and WebSocket functionality for
// the chatwire chat backend.
//
// The implementation is organized into specialized files for configuration,
// the room registry, per-room broadcast units, clients, routing, and HTTP
// handlers to keep the codebase maintainable and testable as the project
// grows.
package server
