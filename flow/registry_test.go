package flow

import (
	"testing"

	"github.com/quarrylabs/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponent is a minimal Component for registry tests.
type fakeComponent struct {
	name    string
	deps    []string
	options []OptionItem
}

func (f *fakeComponent) Name() string         { return f.name }
func (f *fakeComponent) Description() string  { return "test component" }
func (f *fakeComponent) Options() []OptionItem { return f.options }
func (f *fakeComponent) DependsOn() []string  { return f.deps }

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&fakeComponent{name: "step-a"}))

	got, err := registry.Get("step-a")
	require.NoError(t, err)
	assert.Equal(t, "step-a", got.Name())

	_, err = registry.Get("missing")
	assert.ErrorIs(t, err, core.ErrMissingDependency)
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&fakeComponent{name: "step-a"}))

	err := registry.Register(&fakeComponent{name: "step-a"})
	assert.ErrorIs(t, err, core.ErrConfigValue)
}

func TestRegistry_MissingDependencyFailsFast(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(&fakeComponent{name: "flow-x", deps: []string{"step-a"}})
	assert.ErrorIs(t, err, core.ErrMissingDependency)
}

func TestRegistry_SelfDependencyRejected(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(&fakeComponent{name: "step-a", deps: []string{"step-a"}})
	assert.ErrorIs(t, err, core.ErrConfigValue)
}

func TestRegistry_OptionsForAggregatesTransitively(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&fakeComponent{
		name:    "step-a",
		options: []OptionItem{{Name: "retriever", Type: OptionString, Default: "google"}},
	}))
	require.NoError(t, registry.Register(&fakeComponent{
		name: "step-b",
		deps: []string{"step-a"},
		options: []OptionItem{
			{Name: "top_k", Type: OptionInt, Default: "5"},
			// Conflicting redeclaration: the dependency's version wins.
			{Name: "retriever", Type: OptionString, Default: "bing"},
		},
	}))
	require.NoError(t, registry.Register(&fakeComponent{
		name:    "flow-x",
		deps:    []string{"step-b"},
		options: []OptionItem{{Name: "style", Type: OptionString, Default: "report"}},
	}))

	items, err := registry.OptionsFor("flow-x")
	require.NoError(t, err)

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	assert.Equal(t, []string{"retriever", "top_k", "style"}, names)
	assert.Equal(t, "google", items[0].Default)
}
