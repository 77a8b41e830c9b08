package contract

import (
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoSpec() *ToolSpec {
	return &ToolSpec{
		Name:    "echo",
		Version: "1.0.0",
		Params: []ParamSpec{
			{Name: "message", Type: "string", Required: true},
			{Name: "repeat", Type: "integer", Default: 1},
		},
		Output: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"summary": openapi3.NewStringSchema().NewRef(),
			},
			Required: []string{"summary"},
		},
	}
}

func TestToolSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ToolSpec)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(s *ToolSpec) {},
		},
		{
			name:    "empty name",
			mutate:  func(s *ToolSpec) { s.Name = " " },
			wantErr: "name cannot be empty",
		},
		{
			name:    "empty version",
			mutate:  func(s *ToolSpec) { s.Version = "" },
			wantErr: "version cannot be empty",
		},
		{
			name:    "duplicate param",
			mutate:  func(s *ToolSpec) { s.Params = append(s.Params, ParamSpec{Name: "message", Type: "string"}) },
			wantErr: "duplicate param",
		},
		{
			name:    "invalid param type",
			mutate:  func(s *ToolSpec) { s.Params[0].Type = "struct" },
			wantErr: "invalid type",
		},
		{
			name:    "required with default",
			mutate:  func(s *ToolSpec) { s.Params[0].Default = "hello" },
			wantErr: "cannot be required and carry a default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := echoSpec()
			tt.mutate(spec)
			err := spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr),
				"error %q should contain %q", err.Error(), tt.wantErr)
		})
	}
}

func TestToolRegistry_RegisterOnce(t *testing.T) {
	reg := NewToolRegistry()

	require.NoError(t, reg.Register(echoSpec()))

	// A second registration under the same name must be rejected; specs
	// are immutable once registered.
	err := reg.Register(echoSpec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	got, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", got.Version)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestToolRegistry_RejectsInvalidSpec(t *testing.T) {
	reg := NewToolRegistry()
	err := reg.Register(&ToolSpec{Name: ""})
	require.Error(t, err)
	assert.Empty(t, reg.List())
}

func TestToolSpec_OutputProperties(t *testing.T) {
	spec := echoSpec()
	props := spec.OutputProperties()
	require.Len(t, props, 1)
	assert.Equal(t, "summary", props[0])

	var noOutput ToolSpec
	assert.Nil(t, noOutput.OutputProperties())
}

func TestToolSpec_Param(t *testing.T) {
	spec := echoSpec()

	p, ok := spec.Param("repeat")
	require.True(t, ok)
	assert.Equal(t, 1, p.Default)

	_, ok = spec.Param("missing")
	assert.False(t, ok)
}
