package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/christophercallejongarcia/Test-Deeplearning/pkg/llm"
)

// ErrUnknownTool is returned by Dispatch for names with no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// Source is one provenance entry shown to the user next to an answer.
type Source struct {
	Display string `json:"display"`
	Link    string `json:"link"`
}

// Tool is a retrieval capability the model may invoke by name. Execute
// returns the text handed back to the model; an error means the call could
// not be carried out at all (bad arguments), not that nothing was found.
type Tool interface {
	Definition() llm.Tool
	Execute(ctx context.Context, args json.RawMessage, prov *Provenance) (string, error)
}

// Registry is a name-keyed tool table that preserves registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool, replacing any tool with the same name in place.
func (r *Registry) Register(tool Tool) {
	name := tool.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Schemas returns tool definitions in registration order.
func (r *Registry) Schemas() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Definition())
	}
	return schemas
}

// Dispatch runs the named tool and returns its raw output.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage, prov *Provenance) (string, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return tool.Execute(ctx, args, prov)
}

// NewProvenance returns an empty collector whose slots follow the current
// registration order.
func (r *Registry) NewProvenance() *Provenance {
	return newProvenance(r.Names())
}

func (r *Registry) CollectProvenance(p *Provenance) []Source {
	return p.Collect()
}

func (r *Registry) ClearProvenance(p *Provenance) {
	p.Clear()
}

// Provenance collects the sources each tool reported during one query.
// Every tool owns one slot; recording again overwrites it.
type Provenance struct {
	mu    sync.Mutex
	order []string
	slots map[string][]Source
}

func newProvenance(order []string) *Provenance {
	return &Provenance{order: order, slots: make(map[string][]Source)}
}

func (p *Provenance) Record(tool string, sources []Source) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots == nil {
		p.slots = make(map[string][]Source)
	}
	if _, known := p.slots[tool]; !known && !slices.Contains(p.order, tool) {
		p.order = append(p.order, tool)
	}
	p.slots[tool] = append([]Source(nil), sources...)
}

// Collect concatenates all slots in tool registration order.
func (p *Provenance) Collect() []Source {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Source
	for _, name := range p.order {
		out = append(out, p.slots[name]...)
	}
	return out
}

func (p *Provenance) Clear() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.slots)
}

func toolParams(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
