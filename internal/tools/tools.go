// Package tools provides the executable tool surface a model may call during
// an experiment. A Registry is built once from the tool configuration
// document and never mutated afterwards: it resolves tool names to execution
// bindings, validates model-supplied arguments against each tool's declared
// schema, and renders results as text the orchestration loop can feed back
// into the conversation.
//
// Two binding kinds exist. Function bindings dispatch to an in-process
// callable from the builtin catalog after jsonschema validation of the
// arguments. API bindings serialize arguments into an HTTP request (query
// parameters for GET, a JSON body otherwise) and relay the response body.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ahrav/go-benchy/internal/domain"
)

// defaultHTTPTimeout bounds a single remote tool call when the caller's
// context carries no deadline of its own.
const defaultHTTPTimeout = 10 * time.Second

// executor runs one tool invocation with raw JSON arguments and returns the
// text to place in the tool-result turn.
type executor interface {
	execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry resolves tool names to their execution bindings and holds the
// model-facing definitions in registration order. A registry is immutable
// after construction; concurrent experiment runs each build their own
// instance from the shared configuration.
type Registry struct {
	defs      []domain.ToolDefinition
	executors map[string]executor
}

// NewRegistry builds a registry from validated tool definitions. Function
// bindings are resolved against the builtin catalog and their parameter
// schemas compiled eagerly, so unknown function names and uncompilable
// schemas fail here rather than mid-run. A nil httpClient selects a default
// client with a ten second timeout for API bindings.
func NewRegistry(defs []domain.ToolDefinition, httpClient *http.Client) (*Registry, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	registry := &Registry{
		defs:      make([]domain.ToolDefinition, 0, len(defs)),
		executors: make(map[string]executor, len(defs)),
	}

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := registry.executors[def.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, def.Name)
		}

		var (
			exec executor
			err  error
		)
		switch def.Binding.Kind {
		case domain.BindingLocal:
			exec, err = newLocalTool(def)
		case domain.BindingHTTP:
			exec = newHTTPTool(def, httpClient)
		default:
			err = fmt.Errorf("%w: unsupported binding kind %q", domain.ErrInvalidToolBinding, def.Binding.Kind)
		}
		if err != nil {
			return nil, err
		}

		registry.defs = append(registry.defs, def)
		registry.executors[def.Name] = exec
	}

	return registry, nil
}

// NewRegistryFromConfig converts a parsed tool configuration document into a
// registry. Configuration-level problems (duplicate names, unknown types,
// unknown function names, uncompilable schemas) surface here, before any
// experiment starts.
func NewRegistryFromConfig(cfg Config, httpClient *http.Client) (*Registry, error) {
	defs, err := cfg.Definitions()
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs, httpClient)
}

// Describe returns the tool definitions in registration order, for inclusion
// in the model-facing request. The returned slice is a copy; callers may not
// mutate registry state through it.
func (r *Registry) Describe() []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, len(r.defs))
	copy(defs, r.defs)
	return defs
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.defs) }

// Invoke executes the named tool with the model-supplied JSON arguments and
// returns the tool output as text. Unknown names yield ErrToolNotFound,
// schema rejections yield *ToolArgumentError, and dispatch failures yield
// *ToolExecutionError; callers decide whether to contain or escalate.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	exec, ok := r.executors[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return exec.execute(ctx, args)
}
