package domain

import (
	"errors"
	"fmt"
	"slices"
)

// Tool definition errors.
var (
	// ErrInvalidToolDefinition indicates a tool definition that violates a
	// structural constraint.
	ErrInvalidToolDefinition = errors.New("invalid tool definition")

	// ErrInvalidToolBinding indicates a binding whose fields are inconsistent
	// with its kind.
	ErrInvalidToolBinding = errors.New("invalid tool binding")
)

// BindingKind discriminates how invocations of a tool are dispatched.
type BindingKind string

const (
	// BindingLocal dispatches to an in-process function from the builtin catalog.
	BindingLocal BindingKind = "function"

	// BindingHTTP dispatches to a remote HTTP endpoint.
	BindingHTTP BindingKind = "api"
)

// ToolBinding is a tagged union describing how a tool executes. Only the
// fields matching Kind are meaningful.
type ToolBinding struct {
	Kind BindingKind `json:"kind"`

	// FunctionName names the builtin catalog entry for BindingLocal tools.
	FunctionName string `json:"function_name,omitempty"`

	// Endpoint and Method describe the remote call for BindingHTTP tools.
	// Method defaults to GET when empty.
	Endpoint string `json:"endpoint,omitempty"`
	Method   string `json:"method,omitempty"`
}

// Validate checks that the binding's fields are consistent with its kind.
func (b ToolBinding) Validate() error {
	switch b.Kind {
	case BindingLocal:
		if b.FunctionName == "" {
			return fmt.Errorf("%w: function binding requires function_name", ErrInvalidToolBinding)
		}
	case BindingHTTP:
		if b.Endpoint == "" {
			return fmt.Errorf("%w: api binding requires endpoint", ErrInvalidToolBinding)
		}
	default:
		return fmt.Errorf("%w: unknown binding kind %q", ErrInvalidToolBinding, b.Kind)
	}
	return nil
}

// ParameterSpec describes one named parameter a tool accepts.
type ParameterSpec struct {
	// Type is the JSON-Schema primitive type of the parameter.
	Type string `json:"type"`

	// Description documents the parameter for the model.
	Description string `json:"description,omitempty"`

	// Required marks parameters the model must supply.
	Required bool `json:"required,omitempty"`
}

// ToolDefinition declares a tool the model may invoke during an experiment:
// its name, model-facing description, parameter schema, and execution
// binding. Definitions are provider-agnostic; each adapter translates them
// into its own wire format.
type ToolDefinition struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty"`
	Binding     ToolBinding              `json:"binding"`
}

// Validate checks the definition's structural constraints: a non-empty name,
// typed parameters, and a consistent binding.
func (d ToolDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidToolDefinition)
	}
	for name, param := range d.Parameters {
		if name == "" {
			return fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidToolDefinition, d.Name)
		}
		if param.Type == "" {
			return fmt.Errorf("%w: %q parameter %q missing type", ErrInvalidToolDefinition, d.Name, name)
		}
	}
	if err := d.Binding.Validate(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidToolDefinition, d.Name, err)
	}
	return nil
}

// JSONSchema renders the parameter specs as a JSON-Schema object document,
// suitable both for provider tool declarations and for argument validation.
// The required list is sorted so repeated renders are byte-identical after
// encoding.
func (d ToolDefinition) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for name, param := range d.Parameters {
		prop := map[string]any{"type": param.Type}
		if param.Description != "" {
			prop["description"] = param.Description
		}
		properties[name] = prop
		if param.Required {
			required = append(required, name)
		}
	}
	slices.Sort(required)

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
