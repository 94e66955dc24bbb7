// Package profiletest provides an in-memory profile.Gateway.
package profiletest

import (
	"context"
	"sync"

	"github.com/m3rciful/vitalsbot/internal/profile"
)

// Gateway serves profiles from a map.
type Gateway struct {
	mu       sync.Mutex
	profiles map[string]profile.Profile
	// Err, when set, is returned by every Lookup.
	Err     error
	lookups []string
}

// New returns a gateway holding ps.
func New(ps ...profile.Profile) *Gateway {
	g := &Gateway{profiles: make(map[string]profile.Profile)}
	for _, p := range ps {
		g.profiles[p.ID] = p
	}
	return g
}

// Put adds or replaces p.
func (g *Gateway) Put(p profile.Profile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profiles[p.ID] = p
}

// Remove drops the profile with id.
func (g *Gateway) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.profiles, id)
}

// Lookup implements profile.Gateway.
func (g *Gateway) Lookup(_ context.Context, id string) (profile.Profile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups = append(g.lookups, id)
	if g.Err != nil {
		return profile.Profile{}, g.Err
	}
	p, ok := g.profiles[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p.Normalize(), nil
}

// Lookups returns every id looked up so far.
func (g *Gateway) Lookups() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.lookups...)
}
