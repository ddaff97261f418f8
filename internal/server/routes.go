// Package server wires the HTTP handlers into a router for the chat
// application.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes configures and returns the application router: health check,
// WebSocket endpoint, and the REST API consumed by the rendering layer.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users", s.handleGetUsers).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	api.HandleFunc("/channels", s.handleGetChannels).Methods(http.MethodGet)
	api.HandleFunc("/channels", s.handleCreateChannel).Methods(http.MethodPost)
	api.HandleFunc("/channels/{channelId}/messages", s.handleGetChannelMessages).Methods(http.MethodGet)

	return r
}
