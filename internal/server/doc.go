// Package server implements the core HTTP and WebSocket functionality of the
// chat backend.
//
// The implementation is organized into specialized files for configuration,
// hub management, frame routing, the connection registry, clients, and the
// REST handlers to keep the codebase maintainable and testable as the
// project grows.
package server
