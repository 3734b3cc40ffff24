package lavalink

import (
	"maps"
	"sync"
)

// guildMap is a mutex guarded map keyed by guild id.
type guildMap[V comparable] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newGuildMap[V comparable]() *guildMap[V] {
	return &guildMap[V]{m: make(map[string]V)}
}

func (g *guildMap[V]) load(guildID string) (V, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.m[guildID]
	return v, ok
}

func (g *guildMap[V]) store(guildID string, v V) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.m[guildID] = v
}

// compareAndDelete removes guildID only while it still maps to v.
func (g *guildMap[V]) compareAndDelete(guildID string, v V) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.m[guildID]; ok && cur == v {
		delete(g.m, guildID)
		return true
	}
	return false
}

// drain empties the map and returns what it held.
func (g *guildMap[V]) drain() map[string]V {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.m
	g.m = make(map[string]V)
	return old
}

func (g *guildMap[V]) snapshot() map[string]V {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return maps.Clone(g.m)
}

func (g *guildMap[V]) len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.m)
}
