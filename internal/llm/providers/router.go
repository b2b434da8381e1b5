package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// Router selects the appropriate backend adapter for a model identifier.
// Selection is driven by the identifier's shape alone: slash-separated
// identifiers route to OpenRouter, dot-separated endpoint identifiers to
// Bedrock. Unrecognized shapes are rejected before any network activity.
type Router interface {
	// Pick classifies the model identifier and returns the adapter for its
	// provider family. Returns domain.ErrUnrecognizedModel for identifiers
	// that match no family and llmerrors.ErrUnknownProvider when the family
	// is recognized but not configured.
	Pick(model string) (Adapter, error)
}

// Adapter abstracts one provider family's request-response protocol.
// Each backend (Bedrock, OpenRouter) implements this interface to handle
// its SDK surface, authentication scheme, and response structure. Adapters
// perform exactly one network call per Invoke and never retry; resilience
// belongs to the middleware chain above them.
type Adapter interface {
	// Invoke sends one request-response cycle to the provider and returns
	// the normalized response. Failures are classified into the error
	// taxonomy before being returned.
	Invoke(ctx context.Context, req *transport.Request) (*transport.Response, error)

	// Capabilities reports the static feature flags for this backend,
	// checked by the runner before dispatch.
	Capabilities() domain.Capabilities

	// Name returns the canonical provider identifier for routing, logs,
	// and metrics. Valid values: "openrouter", "bedrock" matching
	// configuration keys.
	Name() string
}

// NewRouter creates a router with adapters for the configured providers.
// The Bedrock adapter resolves AWS configuration at construction time, so
// NewRouter fails fast on broken credential setups. A nil httpClient leaves
// each SDK's default transport in place.
func NewRouter(configs map[string]configuration.ProviderConfig, httpClient *http.Client) (Router, error) {
	adapters := make(map[domain.ModelFamily]Adapter)

	for name, cfg := range configs {
		switch name {
		case configuration.ProviderOpenRouter:
			adapters[domain.FamilyOpenRouter] = NewOpenRouterAdapter(cfg, httpClient)
		case configuration.ProviderBedrock:
			adapter, err := NewBedrockAdapter(cfg, httpClient)
			if err != nil {
				return nil, err
			}
			adapters[domain.FamilyBedrock] = adapter
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
	}

	return &router{adapters: adapters}, nil
}

// router implements Router with a family-keyed adapter registry.
type router struct {
	adapters map[domain.ModelFamily]Adapter
}

// Pick classifies the model identifier and returns the matching adapter.
func (r *router) Pick(model string) (Adapter, error) {
	family, err := domain.ClassifyModel(model)
	if err != nil {
		return nil, err
	}

	adapter, ok := r.adapters[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, family)
	}
	return adapter, nil
}
