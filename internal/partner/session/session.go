// Package session holds authenticated partner clients behind opaque
// handles so later file downloads can reuse the same partner session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/dealdesk/internal/partner"
)

// DefaultTTL is how long a handle stays valid after insertion.
const DefaultTTL = time.Hour

// Registry maps opaque handles to live partner clients. Entries expire a
// fixed interval after insertion; expired entries are purged lazily on the
// next lookup, there is no background sweep. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	client    *partner.Client
	expiresAt time.Time
}

// NewRegistry builds a registry with the given TTL; ttl <= 0 uses DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Insert registers an authenticated client and returns its new handle.
func (r *Registry) Insert(client *partner.Client) string {
	handle := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[handle] = entry{client: client, expiresAt: r.now().Add(r.ttl)}
	return handle
}

// Lookup purges expired entries, then resolves the handle. A handle that is
// absent or past its expiry is invalid.
func (r *Registry) Lookup(handle string) (*partner.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
	e, ok := r.sessions[handle]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// Purge removes every expired entry.
func (r *Registry) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()
}

func (r *Registry) purgeLocked() {
	now := r.now()
	for handle, e := range r.sessions {
		if e.expiresAt.Before(now) {
			delete(r.sessions, handle)
		}
	}
}

// Len reports the number of live entries without purging.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
