// Package tasks loads benchmark task documents. A task document is a small
// YAML file declaring what to ask the model and what answer to expect:
//
//	name: disease_normalization
//	description: Normalize free-text disease names to ontology labels.
//	prompt: |
//	  Normalize the disease name "arthritis" and answer with JSON.
//	system: Answer with a single JSON object and nothing else.
//	expected:
//	  label: rheumatoid arthritis
//	temperature: 0.2
//	thinking: false
//	max_rounds: 6
//
// Documents carry per-task defaults (system instructions, temperature,
// thinking, round limit); explicit request settings override them.
package tasks

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-benchy/internal/domain"
)

// ErrInvalidTask indicates a task document that fails validation.
var ErrInvalidTask = errors.New("invalid task document")

// Document is one parsed task file.
type Document struct {
	// Name identifies the task in results and filenames. Load falls back to
	// the file's base name when the document omits it.
	Name string `yaml:"name"`

	// Description is operator-facing context, never sent to the model.
	Description string `yaml:"description"`

	// Prompt is the user prompt submitted on the first turn.
	Prompt string `yaml:"prompt"`

	// System optionally seeds the transcript's system turn.
	System string `yaml:"system"`

	// Expected holds the reference answer fields the scorer compares against.
	Expected map[string]any `yaml:"expected"`

	// Temperature is the task's default sampling temperature; nil leaves the
	// request's setting untouched.
	Temperature *float64 `yaml:"temperature"`

	// Thinking requests extended reasoning by default.
	Thinking bool `yaml:"thinking"`

	// MaxRounds is the task's default round limit; zero defers to the engine.
	MaxRounds int `yaml:"max_rounds"`
}

// Load reads, parses, and validates a task document from disk. A document
// without a name takes the file's base name, extension stripped.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read task document: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("parse task document %s: %w", path, err)
	}
	if doc.Name == "" {
		base := filepath.Base(path)
		doc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := doc.Validate(); err != nil {
		return Document{}, fmt.Errorf("task document %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a task document. Decoding is strict: unknown keys are
// rejected so a misspelled field fails loudly instead of silently losing a
// setting. Parse does not validate; Load does.
func Parse(data []byte) (Document, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return Document{}, nil
		}
		return Document{}, err
	}
	return doc, nil
}

// Validate checks the document's structural constraints.
func (d Document) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if strings.TrimSpace(d.Prompt) == "" {
		return fmt.Errorf("%w: %q has no prompt", ErrInvalidTask, d.Name)
	}
	if d.Temperature != nil && (*d.Temperature < 0 || *d.Temperature > 2) {
		return fmt.Errorf("%w: %q temperature %g outside [0, 2]", ErrInvalidTask, d.Name, *d.Temperature)
	}
	if d.MaxRounds < 0 {
		return fmt.Errorf("%w: %q max_rounds must not be negative", ErrInvalidTask, d.Name)
	}
	return nil
}

// Payload converts the document into the task payload experiments carry.
func (d Document) Payload() domain.TaskPayload {
	return domain.TaskPayload{
		Name:        d.Name,
		Description: d.Description,
		Prompt:      d.Prompt,
		Expected:    d.Expected,
	}
}

// Request builds a base experiment request for this task against one model.
// Callers layer their own overrides (prompt, temperature, tools, limits) on
// top of the returned request before running it.
func (d Document) Request(model string) domain.ExperimentRequest {
	req := domain.ExperimentRequest{
		Model:              model,
		SystemInstructions: d.System,
		ThinkingMode:       d.Thinking,
		Task:               d.Payload(),
		MaxRounds:          d.MaxRounds,
	}
	if d.Temperature != nil {
		req.Temperature = *d.Temperature
	}
	return req
}
