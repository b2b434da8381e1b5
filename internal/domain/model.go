package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnrecognizedModel indicates a model identifier whose shape matches no
// known provider naming convention.
var ErrUnrecognizedModel = errors.New("unrecognized model identifier")

// ModelFamily identifies the provider backend responsible for a model,
// derived from the shape of the model identifier alone.
type ModelFamily uint8

const (
	// FamilyUnknown marks identifiers that match no known naming convention.
	FamilyUnknown ModelFamily = iota

	// FamilyOpenRouter covers provider/model-name identifiers served through
	// the OpenRouter chat-completions API.
	FamilyOpenRouter

	// FamilyBedrock covers vendor.model[:version] identifiers served through
	// AWS Bedrock.
	FamilyBedrock
)

// String returns the canonical lowercase name of the family.
func (f ModelFamily) String() string {
	switch f {
	case FamilyOpenRouter:
		return "openrouter"
	case FamilyBedrock:
		return "bedrock"
	default:
		return "unknown"
	}
}

// ClassifyModel maps a model identifier onto its provider family using only
// the identifier's shape:
//
//   - OpenRouter: exactly one "/" separating two non-empty segments, and no ":".
//   - Bedrock: "."-separated segments (at least two, all non-empty), no "/",
//     optionally followed by a single non-empty ":version" suffix.
//
// Classification is pure and deterministic, so the same identifier always
// resolves to the same family. Identifiers matching neither shape return
// ErrUnrecognizedModel; no network call or model catalog is consulted.
func ClassifyModel(model string) (ModelFamily, error) {
	if model == "" {
		return FamilyUnknown, fmt.Errorf("%w: empty identifier", ErrUnrecognizedModel)
	}

	if strings.Contains(model, "/") {
		vendor, name, _ := strings.Cut(model, "/")
		if vendor != "" && name != "" &&
			!strings.Contains(name, "/") && !strings.Contains(model, ":") {
			return FamilyOpenRouter, nil
		}
		return FamilyUnknown, fmt.Errorf("%w: %q", ErrUnrecognizedModel, model)
	}

	base, version, hasVersion := strings.Cut(model, ":")
	if hasVersion && (version == "" || strings.Contains(version, ":")) {
		return FamilyUnknown, fmt.Errorf("%w: %q", ErrUnrecognizedModel, model)
	}
	if strings.Contains(base, ".") {
		for _, segment := range strings.Split(base, ".") {
			if segment == "" {
				return FamilyUnknown, fmt.Errorf("%w: %q", ErrUnrecognizedModel, model)
			}
		}
		return FamilyBedrock, nil
	}

	return FamilyUnknown, fmt.Errorf("%w: %q", ErrUnrecognizedModel, model)
}

// Capabilities describes the feature surface a provider family exposes for
// its models. Runners consult it before dispatch so that unsupported
// requests fail fast instead of burning a provider call.
type Capabilities struct {
	// SystemInstructions reports whether a dedicated system turn is honored.
	SystemInstructions bool `json:"system_instructions"`

	// Temperature reports whether sampling temperature is adjustable.
	Temperature bool `json:"temperature"`

	// Tools reports whether tool definitions can be attached to calls.
	Tools bool `json:"tools"`

	// ThinkingMode reports whether extended reasoning can be requested.
	ThinkingMode bool `json:"thinking_mode"`

	// CustomPrompts reports whether arbitrary prompt overrides are accepted.
	CustomPrompts bool `json:"custom_prompts"`

	// MultiTask reports whether the backend may appear in multi-task suites.
	MultiTask bool `json:"multi_task"`
}
