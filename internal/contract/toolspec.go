package contract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// ParamSpec declares a single named input parameter of a tool.
type ParamSpec struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"` // string, integer, number, boolean, array, object
	Required bool   `json:"required" yaml:"required"`
	Default  any    `json:"default,omitempty" yaml:"default,omitempty"`
	Enum     []any  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ToolSpec is the declared contract for an invocable capability.
// Immutable once registered in a ToolRegistry.
type ToolSpec struct {
	// Name uniquely identifies the tool
	Name string `json:"name" yaml:"name"`

	// Version is the tool's semantic version
	Version string `json:"version" yaml:"version"`

	// Description is human-readable tool documentation
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Params declares the tool's input parameters
	Params []ParamSpec `json:"params,omitempty" yaml:"params,omitempty"`

	// Output declares the tool's output payload schema
	Output *openapi3.Schema `json:"output,omitempty" yaml:"output,omitempty"`
}

var validParamTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

// Validate checks the tool specification against domain rules.
func (s *ToolSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if strings.TrimSpace(s.Version) == "" {
		return fmt.Errorf("tool %s: version cannot be empty", s.Name)
	}

	seen := make(map[string]bool)
	for i, p := range s.Params {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("tool %s: param at index %d has empty name", s.Name, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s: duplicate param %q", s.Name, p.Name)
		}
		seen[p.Name] = true

		if !validParamTypes[p.Type] {
			return fmt.Errorf("tool %s: param %q has invalid type %q", s.Name, p.Name, p.Type)
		}
		if p.Required && p.Default != nil {
			return fmt.Errorf("tool %s: param %q cannot be required and carry a default", s.Name, p.Name)
		}
	}

	return nil
}

// Param returns the named parameter spec, if declared.
func (s *ToolSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// OutputProperties returns the property names of the declared output schema.
// Used by the planner to infer data dependencies between steps.
func (s *ToolSpec) OutputProperties() []string {
	if s.Output == nil {
		return nil
	}
	props := make([]string, 0, len(s.Output.Properties))
	for name := range s.Output.Properties {
		props = append(props, name)
	}
	return props
}

// ToolRegistry holds registered tool specifications.
// Registration is write-once per name; lookups are safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*ToolSpec
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*ToolSpec)}
}

// Register adds a tool specification. Re-registering a name is an error;
// specs are immutable once registered.
func (r *ToolRegistry) Register(spec *ToolSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid tool spec: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("tool %q is already registered", spec.Name)
	}
	r.tools[spec.Name] = spec
	return nil
}

// Get returns the spec for a tool name.
func (r *ToolRegistry) Get(name string) (*ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tools[name]
	return spec, ok
}

// List returns all registered specs.
func (r *ToolRegistry) List() []*ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]*ToolSpec, 0, len(r.tools))
	for _, spec := range r.tools {
		specs = append(specs, spec)
	}
	return specs
}
