// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools defines the functions the model may call and the registry
// the agent dispatches them through.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// Tool is a function the model can call by name with JSON arguments.
type Tool interface {
	// Name is the identifier the model uses in a tool call.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters is the JSON schema of the arguments object.
	Parameters() json.RawMessage

	// Invoke runs the tool with the model-supplied arguments.
	Invoke(ctx context.Context, args json.RawMessage) ([]types.Document, error)
}

// Registry maps tool names to tools and keeps registration order.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry returns a registry holding tools in the given order.
// Duplicate names are an error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t to the registry.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	if r == nil {
		return nil
	}
	out := make([]Tool, len(r.order))
	for i, name := range r.order {
		out[i] = r.tools[name]
	}
	return out
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Default returns the registry the assistant ships with: the PubMed Central
// search tool backed by fetcher.
func Default(fetcher RecordFetcher, defaultMax, maxLimit int) *Registry {
	r, _ := NewRegistry(NewSearchPubMedCentral(fetcher, defaultMax, maxLimit))
	return r
}
