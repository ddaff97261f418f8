// Package server constructs and starts the chat HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddle-chat/huddle-server/internal/store"
)

// Server aggregates the configuration, store, hub, and HTTP server into one
// owned unit constructed at process start.
type Server struct {
	cfg      Config
	store    *store.Store
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a Server from the given configuration and store. Passing a nil
// config uses the defaults.
func New(cfg *Config, st *store.Store) *Server {
	var c Config
	if cfg != nil {
		c = *cfg
	} else {
		c = defaultConfig()
	}
	c = sanitizeConfig(c)

	s := &Server{
		cfg:     c,
		store:   st,
		hub:     NewHub(st),
		origins: newOriginPolicy(c.AllowedOrigins),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	s.httpSrv = &http.Server{
		Addr:         c.Port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Hub returns the server's hub for shutdown coordination and tests.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Store returns the backing store.
func (s *Server) Store() *store.Store {
	return s.store
}

// StartHub starts the hub's event loop in a separate goroutine. This should
// be called before serving traffic.
func (s *Server) StartHub() {
	go s.hub.Run()
	log.Println("Hub started and ready to manage connections")
}

// ListenAndServe starts the HTTP server and begins listening for
// connections. It returns an error if the server fails to start.
func (s *Server) ListenAndServe() error {
	log.Printf("Server listening on %s", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server first so no new connections
// arrive, then drains the hub's client goroutines. Each phase gets at most
// the given timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	httpErr := s.httpSrv.Shutdown(ctx)
	if httpErr != nil {
		log.Printf("HTTP server shutdown error: %v", httpErr)
	}

	if err := s.hub.Shutdown(timeout); err != nil {
		return err
	}
	return httpErr
}
