package runtime

import (
	"direct-chat/contract"
	"direct-chat/domain"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

type entry struct {
	conn     contract.Connection
	identity *domain.Identity // nil while anonymous
}

// Registry is the single source of truth for "who is online".
// The primary index maps a connection ID to its entry, the reverse index maps
// a user ID to the set of connection IDs bound to it. Both are only mutated
// together under mu.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]entry                          // conn ID -> entry
	byUser      map[string]map[string]contract.Connection // user ID -> conn ID -> conn
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]entry),
		byUser:      make(map[string]map[string]contract.Connection),
	}
}

// Register records a live connection. A nil identity keeps the connection
// anonymous: it still receives presence pushes but never appears in the
// OnlineSet and is never a delivery target.
// Registering the same connection again rebinds it to the new identity.
func (r *Registry) Register(conn contract.Connection, identity *domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(conn.ID())

	e := entry{conn: conn}
	if identity != nil {
		id := *identity
		e.identity = &id
		if _, ok := r.byUser[id.UserID]; !ok {
			r.byUser[id.UserID] = make(map[string]contract.Connection)
		}
		r.byUser[id.UserID][conn.ID()] = conn
	}
	r.connections[conn.ID()] = e
}

// Unregister removes the connection from both indexes.
// It returns false when the connection was already gone, which makes a
// duplicate call a no-op.
func (r *Registry) Unregister(conn contract.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remove(conn.ID())
}

// remove must be called with mu held.
func (r *Registry) remove(connID string) bool {
	e, ok := r.connections[connID]
	if !ok {
		return false
	}
	delete(r.connections, connID)

	if e.identity != nil {
		if conns, ok := r.byUser[e.identity.UserID]; ok {
			delete(conns, connID)
			// No empty sets left behind
			if len(conns) == 0 {
				delete(r.byUser, e.identity.UserID)
			}
		}
	}
	return true
}

// Lookup returns every live connection bound to userID, possibly none.
func (r *Registry) Lookup(userID string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	return lo.Values(conns)
}

// Snapshot is a point-in-time OnlineSet of all resolved connections.
func (r *Registry) Snapshot() domain.OnlineSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

func (r *Registry) snapshot() domain.OnlineSet {
	identities := make([]domain.Identity, 0, len(r.byUser))
	for _, e := range r.connections {
		if e.identity != nil {
			identities = append(identities, *e.identity)
		}
	}
	return domain.NewOnlineSet(identities)
}

// Connections returns a copy of every live connection, anonymous ones included.
func (r *Registry) Connections() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.connections, func(_ string, e entry) contract.Connection {
		return e.conn
	})
}

// PresenceView returns the OnlineSet and the push targets read under the same lock.
func (r *Registry) PresenceView() (domain.OnlineSet, []contract.Connection) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := lo.MapToSlice(r.connections, func(_ string, e entry) contract.Connection {
		return e.conn
	})
	return r.snapshot(), targets
}

// Identity returns the identity bound to conn, if any.
func (r *Registry) Identity(conn contract.Connection) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.connections[conn.ID()]
	if !ok || e.identity == nil {
		return domain.Identity{}, false
	}
	return *e.identity, true
}

// Count returns the number of live connections and of distinct online users.
func (r *Registry) Count() (connections, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections), len(r.byUser)
}
