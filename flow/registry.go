// Copyright 2025 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package flow

import (
	"fmt"
	"slices"
	"sync"

	"github.com/quarrylabs/quarry/core"
)

// Component is anything registrable in the flow registry: a step or a
// flow. Components declare their option schemas and the names of the
// components they depend on.
type Component interface {
	// Name is the registry key. Must be unique.
	Name() string

	// Description is a short human-readable summary of what the
	// component does.
	Description() string

	// Options declares the options this component itself exposes,
	// excluding those of its dependencies.
	Options() []OptionItem

	// DependsOn names the components this one invokes. Dependencies must
	// be registered before the declaring component.
	DependsOn() []string
}

// Registry holds the registered flow components.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
	order      []string
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{components: make(map[string]Component)}
}

// Register adds a component. Registration fails fast when the name is
// taken, when the component depends on itself, or when a dependency is
// not registered yet.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.components[name]; exists {
		return fmt.Errorf("%w: component %q already registered", core.ErrConfigValue, name)
	}

	for _, dep := range c.DependsOn() {
		if dep == name {
			return fmt.Errorf("%w: component %q depends on itself", core.ErrConfigValue, name)
		}
		if _, ok := r.components[dep]; !ok {
			return fmt.Errorf("%w: component %q requires %q", core.ErrMissingDependency, name, dep)
		}
	}

	r.components[name] = c
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers a component and panics on error. Intended for
// wiring fixed flow sets at startup, where a registration error is a
// programming mistake.
func (r *Registry) MustRegister(c Component) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Get returns the component registered under name.
func (r *Registry) Get(name string) (Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: component %q not registered", core.ErrMissingDependency, name)
	}
	return c, nil
}

// GetFlow returns the flow registered under name.
func (r *Registry) GetFlow(name string) (Flow, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	f, ok := c.(Flow)
	if !ok {
		return nil, fmt.Errorf("%w: component %q is not a flow", core.ErrConfigValue, name)
	}
	return f, nil
}

// Flows returns the registered flows in registration order.
func (r *Registry) Flows() []Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var flows []Flow
	for _, name := range r.order {
		if f, ok := r.components[name].(Flow); ok {
			flows = append(flows, f)
		}
	}
	return flows
}

// OptionsFor aggregates the option schemas of a component and its direct
// and transitive dependencies, in dependency-first declaration order.
// Duplicate option names keep the first declaration seen.
func (r *Registry) OptionsFor(name string) ([]OptionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []OptionItem
	seen := make(map[string]bool)
	var visited []string

	var walk func(name string) error
	walk = func(name string) error {
		if slices.Contains(visited, name) {
			return nil
		}
		visited = append(visited, name)

		c, ok := r.components[name]
		if !ok {
			return fmt.Errorf("%w: component %q not registered", core.ErrMissingDependency, name)
		}
		for _, dep := range c.DependsOn() {
			if err := walk(dep); err != nil {
				return err
			}
		}
		for _, item := range c.Options() {
			if !seen[item.Name] {
				seen[item.Name] = true
				items = append(items, item)
			}
		}
		return nil
	}

	if err := walk(name); err != nil {
		return nil, err
	}
	return items, nil
}
