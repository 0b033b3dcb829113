package proxy

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/portcullismc/portcullis/internal/protocol"
)

// sampleSize caps the number of names surfaced in status responses.
const sampleSize = 10

// Registry tracks the players currently relayed through the proxy. It is the
// only piece of connection state shared across connection tasks, so all
// access goes through its mutex.
type Registry struct {
	mu     sync.Mutex
	online map[string]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{online: make(map[string]uuid.UUID)}
}

// Add registers a player, reporting false if the username is already online.
func (r *Registry) Add(username string, id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.online[username]; ok {
		return false
	}
	r.online[username] = id
	return true
}

// Remove unregisters a player. Removing an absent username is a no-op.
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.online, username)
}

// Count returns the number of players online.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.online)
}

// Sample returns up to sampleSize online players for the status document,
// sorted for stable output.
func (r *Registry) Sample() []protocol.StatusPlayer {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.online))
	for name := range r.online {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > sampleSize {
		names = names[:sampleSize]
	}

	sample := make([]protocol.StatusPlayer, 0, len(names))
	for _, name := range names {
		sample = append(sample, protocol.StatusPlayer{
			Name: name,
			ID:   r.online[name].String(),
		})
	}
	return sample
}
