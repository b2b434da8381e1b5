// Package llm provides a unified, resilient client for LLM providers.
// It routes model identifiers to their backend (OpenRouter or AWS Bedrock),
// normalizes requests and responses across both, and layers rate limiting,
// retry with backoff, and structured observability around every call.
//
// Architecture:
//   - Provider-agnostic interface with an adapter per backend
//   - Middleware chain for composable resilience and observability
//   - Request/response only (no streaming in this implementation)
//   - Capability gates enforced before any network call
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/providers"
	"github.com/ahrav/go-benchy/internal/llm/ratelimit"
	"github.com/ahrav/go-benchy/internal/llm/retry"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// Request validation errors.
var (
	errNilRequest        = errors.New("request must not be nil")
	errModelRequired     = errors.New("model is required")
	errEmptyConversation = errors.New("conversation must contain at least one turn")
	errTemperatureRange  = errors.New("temperature must be within [0, 2]")
)

// routerAdapter adapts providers.Router to transport.Router so the core
// handler can dispatch without importing the providers package.
type routerAdapter struct {
	router providers.Router
}

func newRouterAdapter(router providers.Router) transport.Router {
	return &routerAdapter{router: router}
}

func (r *routerAdapter) Pick(model string) (transport.Adapter, error) {
	adapter, err := r.router.Pick(model)
	if err != nil {
		return nil, err
	}

	return &adapterWrapper{adapter: adapter}, nil
}

// adapterWrapper wraps providers.Adapter to implement transport.Adapter.
type adapterWrapper struct {
	adapter providers.Adapter
}

func (w *adapterWrapper) Invoke(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return w.adapter.Invoke(ctx, req)
}

func (w *adapterWrapper) Capabilities() domain.Capabilities {
	return w.adapter.Capabilities()
}

func (w *adapterWrapper) Name() string {
	return w.adapter.Name()
}

// Client provides provider-agnostic model invocation with resilience and
// observability. One Client serves any mix of OpenRouter and Bedrock models.
type Client interface {
	// Invoke submits one conversation to the model's backend and returns
	// the normalized response. The request flows through the full
	// middleware pipeline: logging wraps retry, retry wraps rate limiting,
	// rate limiting wraps adapter dispatch.
	Invoke(ctx context.Context, req *transport.Request) (*transport.Response, error)

	// Capabilities reports what the backend serving the model supports,
	// without spending a provider call.
	Capabilities(model string) (domain.Capabilities, error)
}

// client implements the Client interface with the full middleware pipeline.
type client struct {
	config  *configuration.Config
	router  providers.Router
	handler transport.Handler
}

// NewClient creates a client with default observability: structured logs via
// slog.Default and no metrics collection.
func NewClient(cfg *configuration.Config) (Client, error) {
	return NewClientWithObservability(cfg, nil, nil)
}

// NewClientWithObservability creates a client with the caller's logger and
// metrics collector. Nil values fall back to slog.Default and a no-op
// collector. The middleware pipeline is assembled here: the rate limiter
// guards each attempt inside retry so retried attempts pay the local limit,
// while logging observes whole logical calls with their final outcome.
func NewClientWithObservability(cfg *configuration.Config, logger *slog.Logger, metrics Metrics) (Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpTransport := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          configuration.DefaultMaxIdleConns,
			IdleConnTimeout:       configuration.DefaultIdleTimeoutSeconds * time.Second,
			TLSHandshakeTimeout:   configuration.DefaultTLSTimeoutSeconds * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		httpClient = &http.Client{
			Transport: httpTransport,
			Timeout:   cfg.HTTPTimeout,
		}
	}

	router, err := providers.NewRouter(cfg.Providers, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	coreHandler := transport.NewInvokeHandler(newRouterAdapter(router), cfg.HTTPTimeout)

	// Attempt-level middleware runs inside retry, so every attempt pays the
	// local rate limit.
	var attemptMiddlewares []transport.Middleware
	if cfg.RateLimit.Enabled {
		rlMiddleware, err := ratelimit.NewRateLimitMiddleware(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		attemptMiddlewares = append(attemptMiddlewares, rlMiddleware)
	}
	attemptHandler := transport.Chain(coreHandler, attemptMiddlewares...)

	retryMiddleware, err := retry.NewRetryMiddlewareWithConfig(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}
	retryHandler := retryMiddleware(attemptHandler)

	// Call-level middleware observes the whole logical call, retries included.
	// MetricsEnabled gates collection even when a collector was supplied.
	if !cfg.Observability.MetricsEnabled {
		metrics = NewNoOpMetrics()
	}
	loggingMiddleware := NewLoggingMiddleware(cfg.Observability, logger, metrics)
	handler := transport.Chain(retryHandler, loggingMiddleware)

	return &client{
		config:  cfg,
		router:  router,
		handler: handler,
	}, nil
}

// Invoke implements Client.Invoke. It classifies the model's family, applies
// engine defaults, and enforces capability gates before the request enters
// the pipeline, so impossible requests never cost a network call.
func (c *client) Invoke(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	family, err := domain.ClassifyModel(req.Model)
	if err != nil {
		return nil, err
	}
	req.Family = family

	adapter, err := c.router.Pick(req.Model)
	if err != nil {
		return nil, err
	}
	if err := checkCapabilities(req, adapter.Capabilities(), family); err != nil {
		return nil, err
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	return c.handler.Handle(ctx, req)
}

// Capabilities implements Client.Capabilities.
func (c *client) Capabilities(model string) (domain.Capabilities, error) {
	adapter, err := c.router.Pick(model)
	if err != nil {
		return domain.Capabilities{}, err
	}
	return adapter.Capabilities(), nil
}

// validateRequest rejects requests the engine cannot meaningfully dispatch.
func validateRequest(req *transport.Request) error {
	if req == nil {
		return errNilRequest
	}
	if req.Model == "" {
		return errModelRequired
	}
	if len(req.Conversation) == 0 {
		return errEmptyConversation
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return fmt.Errorf("%w, got %g", errTemperatureRange, req.Temperature)
	}
	return nil
}

// checkCapabilities raises a typed CapabilityError for any request feature
// the target backend does not expose.
func checkCapabilities(req *transport.Request, caps domain.Capabilities, family domain.ModelFamily) error {
	capErr := func(feature string) error {
		return &llmerrors.CapabilityError{
			Model:   req.Model,
			Family:  family.String(),
			Feature: feature,
		}
	}

	if req.ThinkingMode && !caps.ThinkingMode {
		return capErr("thinking mode")
	}
	if len(req.Tools) > 0 && !caps.Tools {
		return capErr("tool calling")
	}
	if req.Temperature != 0 && !caps.Temperature {
		return capErr("temperature control")
	}
	if len(req.Conversation) > 0 && req.Conversation[0].Role == domain.RoleSystem && !caps.SystemInstructions {
		return capErr("system instructions")
	}
	return nil
}
