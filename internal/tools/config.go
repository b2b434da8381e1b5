package tools

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-benchy/internal/domain"
)

// Config is the root of the tool configuration document.
type Config struct {
	Tools []ToolSpec `yaml:"tools"`
}

// ToolSpec is one entry in the configuration document. Type selects the
// binding: "function" entries name a builtin callable, "api" entries name a
// remote endpoint.
type ToolSpec struct {
	Type        string     `yaml:"type"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Schema      SchemaSpec `yaml:"schema"`

	// FunctionName resolves against the builtin catalog for function tools.
	FunctionName string `yaml:"function_name"`

	// APIURL and APIMethod describe the remote call for api tools. Method
	// defaults to GET.
	APIURL    string `yaml:"api_url"`
	APIMethod string `yaml:"api_method"`
}

// SchemaSpec declares the tool's parameters in JSON-Schema form: an object
// with properties and a required list.
type SchemaSpec struct {
	Properties map[string]PropertySpec `yaml:"properties"`
	Required   []string                `yaml:"required"`
}

// PropertySpec describes one parameter.
type PropertySpec struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// LoadConfig reads and parses a tool configuration document from disk.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read tool config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse tool config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses a tool configuration document. Decoding is strict:
// unknown keys are rejected so a misspelled field fails loudly instead of
// silently dropping a tool.
func ParseConfig(data []byte) (Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		if err == io.EOF {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// Definitions converts the document into validated tool definitions,
// preserving document order. Duplicate names, unknown types, and
// structurally invalid entries are configuration errors.
func (c Config) Definitions() ([]domain.ToolDefinition, error) {
	defs := make([]domain.ToolDefinition, 0, len(c.Tools))
	seen := make(map[string]bool, len(c.Tools))

	for i, spec := range c.Tools {
		def, err := spec.definition()
		if err != nil {
			return nil, fmt.Errorf("tool %d (%s): %w", i, spec.Name, err)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, def.Name)
		}
		seen[def.Name] = true
		defs = append(defs, def)
	}

	return defs, nil
}

// definition converts one spec into a domain definition.
func (s ToolSpec) definition() (domain.ToolDefinition, error) {
	var binding domain.ToolBinding
	switch s.Type {
	case string(domain.BindingLocal):
		binding = domain.ToolBinding{
			Kind:         domain.BindingLocal,
			FunctionName: s.FunctionName,
		}
	case string(domain.BindingHTTP):
		binding = domain.ToolBinding{
			Kind:     domain.BindingHTTP,
			Endpoint: s.APIURL,
			Method:   s.APIMethod,
		}
	default:
		return domain.ToolDefinition{}, fmt.Errorf("unknown tool type %q", s.Type)
	}

	for _, name := range s.Schema.Required {
		if _, declared := s.Schema.Properties[name]; !declared {
			return domain.ToolDefinition{}, fmt.Errorf("required parameter %q not declared in properties", name)
		}
	}

	params := make(map[string]domain.ParameterSpec, len(s.Schema.Properties))
	for name, prop := range s.Schema.Properties {
		params[name] = domain.ParameterSpec{
			Type:        prop.Type,
			Description: prop.Description,
			Required:    slices.Contains(s.Schema.Required, name),
		}
	}

	def := domain.ToolDefinition{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  params,
		Binding:     binding,
	}
	if err := def.Validate(); err != nil {
		return domain.ToolDefinition{}, err
	}
	return def, nil
}
