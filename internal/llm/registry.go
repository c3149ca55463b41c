package llm

import (
	"fmt"
	"sort"
)

// Model binds a selectable model name to the provider that serves it and
// the backend model identifier sent with each request.
type Model struct {
	Name     string
	Provider Provider
	ModelID  string
}

// Registry resolves model names to providers. It replaces any ambient
// model lookup: callers build one from configuration and pass it down.
type Registry struct {
	models      map[string]Model
	defaultName string
}

// NewRegistry creates an empty registry whose default model is defaultName.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		models:      make(map[string]Model),
		defaultName: defaultName,
	}
}

// Register adds or replaces a model.
func (r *Registry) Register(name string, p Provider, modelID string) {
	r.models[name] = Model{Name: name, Provider: p, ModelID: modelID}
}

// Get returns the named model, or the default model when name is empty.
func (r *Registry) Get(name string) (Model, error) {
	if name == "" {
		name = r.defaultName
	}
	m, ok := r.models[name]
	if !ok {
		return Model{}, fmt.Errorf("unknown model %q (available: %v)", name, r.Names())
	}
	return m, nil
}

// Default returns the name of the default model.
func (r *Registry) Default() string {
	return r.defaultName
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
