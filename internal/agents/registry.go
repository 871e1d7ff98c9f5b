// Package agents provides the process-lifetime agent registry and the
// concurrent dispatcher that fans requests out to registered handlers.
package agents

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/contracts"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Definition describes one pluggable agent. Run is required; Health and
// Status are optional metadata.
type Definition struct {
	Key    string
	Run    contracts.AgentRunFunc
	Health contracts.AgentHealthFunc
	Status string
}

// Registry is a key → agent map. Registration overwrites by key (last write
// wins); there is no unregister — the registry lives for the process.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds or replaces the agent under its key.
func (r *Registry) Register(def Definition) {
	if def.Key == "" || def.Run == nil {
		log.Warn().Str("key", def.Key).Msg("Ignoring agent definition without key or run func")
		return
	}
	r.mu.Lock()
	_, replaced := r.defs[def.Key]
	r.defs[def.Key] = def
	r.mu.Unlock()

	log.Info().Str("agent", def.Key).Bool("replaced", replaced).Msg("Agent registered")
}

// Get returns the definition for a key.
func (r *Registry) Get(key string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[key]
	return def, ok
}

// List returns all registered keys, sorted for stable output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HealthReport probes every agent that exposes a health func. Agents
// without one report as "unknown".
func (r *Registry) HealthReport(ctx context.Context) map[string]models.AgentHealth {
	r.mu.RLock()
	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	r.mu.RUnlock()

	report := make(map[string]models.AgentHealth, len(defs))
	for _, def := range defs {
		if def.Health == nil {
			report[def.Key] = models.AgentHealth{Status: "unknown"}
			continue
		}
		report[def.Key] = def.Health(ctx)
	}
	return report
}
