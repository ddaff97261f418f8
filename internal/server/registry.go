// Package server tracks which live connection has claimed which user
// identity. The registry is the sole source of truth for who receives
// broadcasts; the store's online-status flag exists for REST reads and is
// never consulted for delivery.
package server

// binding associates a claimed user id with its live connection and the
// username snapshot taken at bind time.
type binding struct {
	userID   int
	client   *Client
	username string
}

// registry maps user ids to at most one live connection each. It is owned by
// the hub's event loop and must only be touched from there.
type registry struct {
	bindings map[int]*binding
}

func newRegistry() *registry {
	return &registry{bindings: make(map[int]*binding)}
}

// bind records the connection for a user id, returning the client it
// displaced when that id was already bound to a different connection.
func (r *registry) bind(userID int, client *Client, username string) *Client {
	var displaced *Client
	if prev, ok := r.bindings[userID]; ok && prev.client != client {
		displaced = prev.client
	}
	r.bindings[userID] = &binding{userID: userID, client: client, username: username}
	return displaced
}

// unbind removes the binding whose connection matches, returning it so the
// close path can announce the departure. It is a no-op for unbound clients.
func (r *registry) unbind(client *Client) (*binding, bool) {
	for id, b := range r.bindings {
		if b.client == client {
			delete(r.bindings, id)
			return b, true
		}
	}
	return nil, false
}

// all returns a snapshot of the current bindings.
func (r *registry) all() []*binding {
	bindings := make([]*binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		bindings = append(bindings, b)
	}
	return bindings
}
