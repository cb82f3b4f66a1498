// Package registry provides the per-tenant model cache. A plugin builds
// one registry around its connection factory and model loader; the
// registry lazily dials one data connection per tenant, binds the
// plugin's models to it, and caches the pair for the process lifetime.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrConnection indicates the tenant data connection could not be
// established. The registry does not retry; the error surfaces to the
// caller.
var ErrConnection = errors.New("registry: tenant connection failed")

// entry is one cached tenant binding.
type entry[C, M any] struct {
	conn   C
	models M
}

// Registry caches the model set for every tenant a plugin has seen.
// C is the tenant data connection type, M the plugin's model set.
//
// Concurrent lookups for the same uncached tenant share a single
// connection attempt; once cached, lookups return the identical models
// value until Reset. There is no TTL eviction: tenant count is bounded
// and connections are expensive to re-establish.
type Registry[C, M any] struct {
	connect func(ctx context.Context, subdomain string) (C, error)
	load    func(conn C, subdomain string) M

	mu      sync.RWMutex
	entries map[string]*entry[C, M]
	group   singleflight.Group
}

// New creates a registry from a connection factory and a model loader.
func New[C, M any](
	connect func(ctx context.Context, subdomain string) (C, error),
	load func(conn C, subdomain string) M,
) *Registry[C, M] {
	return &Registry[C, M]{
		connect: connect,
		load:    load,
		entries: make(map[string]*entry[C, M]),
	}
}

// Get returns the models bound to the tenant, dialing and caching on
// first access.
func (r *Registry[C, M]) Get(ctx context.Context, subdomain string) (M, error) {
	var zero M
	if subdomain == "" {
		return zero, fmt.Errorf("%w: empty subdomain", ErrConnection)
	}

	r.mu.RLock()
	e, ok := r.entries[subdomain]
	r.mu.RUnlock()
	if ok {
		return e.models, nil
	}

	v, err, _ := r.group.Do(subdomain, func() (interface{}, error) {
		// Another flight may have populated the cache while this call
		// waited on the group.
		r.mu.RLock()
		e, ok := r.entries[subdomain]
		r.mu.RUnlock()
		if ok {
			return e, nil
		}

		conn, err := r.connect(ctx, subdomain)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConnection, subdomain, err)
		}

		e = &entry[C, M]{conn: conn, models: r.load(conn, subdomain)}

		r.mu.Lock()
		r.entries[subdomain] = e
		r.mu.Unlock()

		log.Printf("[Registry] Bound models for tenant: %s", subdomain)
		return e, nil
	})
	if err != nil {
		return zero, err
	}

	return v.(*entry[C, M]).models, nil
}

// Reset drops the cache entry for a tenant, closing its data connection
// when the connection type supports it. The next Get reconstructs the
// binding.
func (r *Registry[C, M]) Reset(subdomain string) {
	r.mu.Lock()
	e, ok := r.entries[subdomain]
	if ok {
		delete(r.entries, subdomain)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if closer, ok := any(e.conn).(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("[Registry] Error closing connection for %s: %v", subdomain, err)
		}
	}
	log.Printf("[Registry] Reset tenant: %s", subdomain)
}

// Tenants returns the cached tenant identifiers, sorted.
func (r *Registry[C, M]) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenants := make([]string, 0, len(r.entries))
	for subdomain := range r.entries {
		tenants = append(tenants, subdomain)
	}
	sort.Strings(tenants)
	return tenants
}
