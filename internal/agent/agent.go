// Package agent is the facade tying the faculties together: a named agent
// owns a mind, an archive, and an embedding engine, and exposes the
// orchestrator operations to callers.
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"muse/internal/archive"
	"muse/internal/cognition"
	"muse/internal/embedding"
	"muse/internal/logging"
	"muse/internal/types"
)

// Agent wraps the cognitive faculties under a stable identity.
type Agent struct {
	ID   uuid.UUID
	Name string

	mind     *cognition.Mind
	archive  *archive.Archive
	embedder embedding.Engine
}

// New creates an agent. The archive and embedder may be nil when the caller
// only needs the cognitive operations.
func New(name string, mind *cognition.Mind, arch *archive.Archive, embedder embedding.Engine) *Agent {
	a := &Agent{
		ID:       uuid.New(),
		Name:     name,
		mind:     mind,
		archive:  arch,
		embedder: embedder,
	}
	logging.Boot("agent %q created id=%s", name, a.ID)
	return a
}

// Mind exposes the orchestrator for goal and shape mutation.
func (a *Agent) Mind() *cognition.Mind {
	return a.mind
}

// Grow runs iterations of narrative growth and persists the result.
func (a *Agent) Grow(ctx context.Context, n *types.Narrative, iterations int) error {
	if err := a.mind.GrowNarrative(ctx, n, iterations); err != nil {
		return err
	}
	if a.archive != nil {
		if _, err := a.archive.Save(archive.KindNarrative, n.Title, n); err != nil {
			return err
		}
	}
	return nil
}

// Hypothesize derives a hypothesis from a narrative and persists it.
func (a *Agent) Hypothesize(ctx context.Context, n *types.Narrative) (*types.Hypothesis, error) {
	h, err := a.mind.FormulateHypothesis(ctx, n)
	if err != nil {
		return nil, err
	}
	if a.archive != nil {
		if _, err := a.archive.Save(archive.KindHypothesis, h.Topic.Title, h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Embed turns text into a vector through the embedding faculty.
func (a *Agent) Embed(ctx context.Context, text string) ([]float32, error) {
	if a.embedder == nil {
		return nil, fmt.Errorf("agent %q has no embedding engine", a.Name)
	}
	return a.embedder.Embed(ctx, text)
}

// Registry tracks agents by ID. It is an explicit value injected where
// needed; there is no package-level instance.
type Registry struct {
	agents map[uuid.UUID]*Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[uuid.UUID]*Agent)}
}

// Add registers an agent.
func (r *Registry) Add(a *Agent) {
	r.agents[a.ID] = a
}

// Get returns the agent with the given ID, or nil.
func (r *Registry) Get(id uuid.UUID) *Agent {
	return r.agents[id]
}

// Remove deletes an agent from the registry.
func (r *Registry) Remove(id uuid.UUID) {
	delete(r.agents, id)
}

// List returns all registered agents in no particular order.
func (r *Registry) List() []*Agent {
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.agents)
}
