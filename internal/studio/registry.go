package studio

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxSessions = 256
	defaultSessionTTL  = 2 * time.Hour
)

// Registry keeps the live sessions of a server. Sessions idle for longer than
// the TTL, or pushed out by newer ones, are forgotten.
type Registry struct {
	gen    Generator
	policy OverlapPolicy
	cache  *expirable.LRU[string, *Controller]
}

// NewRegistry creates a registry holding at most size sessions.
func NewRegistry(gen Generator, size int, ttl time.Duration, policy OverlapPolicy) *Registry {
	if size <= 0 {
		size = defaultMaxSessions
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	onEvict := func(id string, _ *Controller) {
		log.Printf("studio: session %s evicted", id)
	}
	return &Registry{
		gen:    gen,
		policy: policy,
		cache:  expirable.NewLRU[string, *Controller](size, onEvict, ttl),
	}
}

// Create starts a new session.
func (r *Registry) Create() *Controller {
	c := NewController(uuid.New().String(), r.gen, r.policy)
	r.cache.Add(c.ID(), c)
	return c
}

// Get returns the session with the given id and extends its lifetime.
func (r *Registry) Get(id string) (*Controller, bool) {
	c, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	r.cache.Add(id, c)
	return c, true
}

// Remove forgets a session.
func (r *Registry) Remove(id string) {
	r.cache.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}
