package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ahrav/go-benchy/internal/domain"
)

// localTool dispatches to a builtin callable after validating the raw
// arguments against the tool's compiled parameter schema. The callable never
// sees arguments that failed validation.
type localTool struct {
	name   string
	fn     builtinFunc
	schema *jsonschema.Schema
}

// newLocalTool resolves the definition's function binding against the builtin
// catalog and compiles its parameter schema.
func newLocalTool(def domain.ToolDefinition) (*localTool, error) {
	fn, ok := builtinCatalog[def.Binding.FunctionName]
	if !ok {
		return nil, fmt.Errorf("%w: %q (tool %q)", ErrUnknownFunction, def.Binding.FunctionName, def.Name)
	}

	schema, err := compileParameterSchema(def)
	if err != nil {
		return nil, err
	}

	return &localTool{name: def.Name, fn: fn, schema: schema}, nil
}

// compileParameterSchema renders the definition's parameter specs to JSON
// Schema and compiles them for argument validation.
func compileParameterSchema(def domain.ToolDefinition) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(def.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("encode schema for tool %q: %w", def.Name, err)
	}

	schema, err := jsonschema.CompileString(def.Name+".schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema for tool %q: %w", def.Name, err)
	}
	return schema, nil
}

func (t *localTool) execute(ctx context.Context, args json.RawMessage) (string, error) {
	decoded, err := decodeArguments(args)
	if err != nil {
		return "", &ToolArgumentError{Tool: t.name, Err: err}
	}
	if err := t.schema.Validate(decoded); err != nil {
		return "", &ToolArgumentError{Tool: t.name, Err: err}
	}

	// The schema declares type object, so a passing value is always a map.
	params, _ := decoded.(map[string]any)

	result, err := t.fn(ctx, params)
	if err != nil {
		return "", &ToolExecutionError{Tool: t.name, Err: err}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", &ToolExecutionError{Tool: t.name, Err: fmt.Errorf("encode result: %w", err)}
	}
	return string(out), nil
}

// decodeArguments parses the raw argument JSON. Absent or empty arguments are
// treated as an empty object, matching how providers encode calls that take
// no parameters.
func decodeArguments(args json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if decoded == nil {
		return map[string]any{}, nil
	}
	return decoded, nil
}
