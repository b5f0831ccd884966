// Package portregistry remembers which port an application instance was last bound to,
// so restarting the same instance can reuse a server that is still alive.
package portregistry

import "sync"

// Registry maps application identities to ports. Entries are never removed; a stale
// entry is harmless because callers confirm the port still answers with the expected
// identity before reusing it.
type Registry struct {
	mu    sync.RWMutex
	ports map[string]int
}

func New() *Registry {
	return &Registry{
		ports: make(map[string]int),
	}
}

// defaultRegistry lives for the lifetime of the process.
var defaultRegistry = New()

// Default returns the process wide registry shared by all servers that are not given
// their own.
func Default() *Registry {
	return defaultRegistry
}

// Lookup returns the port last recorded for identity.
func (r *Registry) Lookup(identity string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	port, ok := r.ports[identity]
	return port, ok
}

// Record stores port for identity, overwriting any previous entry.
func (r *Registry) Record(identity string, port int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ports[identity] = port
}
