// Package server coordinates client registration, frame routing, and
// broadcast fan-out for the chat system via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/huddle-chat/huddle-server/internal/store"
)

// inboundFrame pairs a raw frame with the connection it arrived on.
type inboundFrame struct {
	client *Client
	data   []byte
}

// broadcastRequest asks the hub to fan a frame out to every bound connection,
// optionally excluding one user id.
type broadcastRequest struct {
	frame         Frame
	excludeUserID int
}

// Hub owns every live connection, the identity bindings, and the store
// mutations triggered by inbound frames. All of that state is driven from a
// single event loop, so one frame is fully validated, persisted, and fanned
// out before the next begins processing regardless of which connection it
// came from.
type Hub struct {
	store      *store.Store
	clients    map[*Client]bool
	registry   *registry
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	broadcast  chan broadcastRequest
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub backed by the given store. The returned Hub is ready
// to manage connections once Run is started in its own goroutine.
func NewHub(st *store.Store) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		store:      st,
		clients:    make(map[*Client]bool),
		registry:   newRegistry(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		broadcast:  make(chan broadcastRequest, 16),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Broadcast queues a frame for delivery to every bound connection except the
// excluded user id (zero excludes nobody). It is the entry point for
// REST-triggered announcements and never blocks the caller: if the hub is
// not draining its queue the frame is dropped.
func (h *Hub) Broadcast(frame Frame, excludeUserID int) {
	select {
	case h.broadcast <- broadcastRequest{frame: frame, excludeUserID: excludeUserID}:
	case <-h.ctx.Done():
	default:
		log.Printf("Dropping %s broadcast: hub queue full", frame.Type)
	}
}

// Run starts the hub's main event loop, handling registration, frame routing,
// and broadcast fan-out. This method should be called in a separate goroutine
// as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s connected from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.disconnect(client)

		case frame := <-h.inbound:
			h.route(frame.client, frame.data)

		case req := <-h.broadcast:
			h.broadcastAll(req.frame, req.excludeUserID)
		}
	}
}

// disconnect removes a client from the hub and, when the connection had
// claimed an identity, runs the close path: unbind, mark the user offline,
// and announce the departure to the remaining bound connections. A client
// that was displaced by a fresh bind for the same user id no longer matches
// a binding, so its departure is not announced.
func (h *Hub) disconnect(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.closed = true
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}
	close(client.send)
	log.Printf("Client %s disconnected from %s. Total clients: %d", client.id, client.addr, clientCount)

	b, bound := h.registry.unbind(client)
	if !bound {
		return
	}

	if _, err := h.store.SetOnlineStatus(b.userID, false); err != nil {
		log.Printf("Error marking user %d offline: %v", b.userID, err)
	}
	h.broadcastAll(Frame{
		Type: TypeUserLeft,
		Payload: Payload{
			UserID:   b.userID,
			Username: b.username,
			Message:  b.username + " left the chat",
		},
	}, 0)
}

// sendTo serializes a frame and writes it to one connection if and only if
// that connection is still writable; otherwise the frame is silently dropped.
func (h *Hub) sendTo(client *Client, frame Frame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Error marshalling %s frame: %v", frame.Type, err)
		return false
	}
	return h.safeSend(client, data)
}

// broadcastAll fans a frame out to every bound connection whose user id does
// not equal excludeUserID (zero excludes nobody). Best effort: clients whose
// send buffer is gone are removed from the hub.
func (h *Hub) broadcastAll(frame Frame, excludeUserID int) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Error marshalling %s frame: %v", frame.Type, err)
		return
	}

	var clientsToRemove []*Client
	for _, b := range h.registry.all() {
		if excludeUserID != 0 && b.userID == excludeUserID {
			continue
		}
		if !h.safeSend(b.client, data) {
			clientsToRemove = append(clientsToRemove, b.client)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// The send channel may close concurrently, hence the recover above.
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients drops clients that failed to receive messages and
// closes their send channels.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client %s removed due to full send buffer", client.id)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all client
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	// Wait for Run() to complete
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
