// Package transport defines the middleware pipeline that every provider
// call flows through. A core handler dispatches to provider adapters;
// middleware layers add rate limiting, retries, and observability without
// the adapters knowing about any of it.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-benchy/internal/domain"
)

// Router selects the provider adapter for a model identifier.
// This interface will be implemented by the providers package.
type Router interface {
	Pick(model string) (Adapter, error)
}

// Adapter abstracts provider-specific invocation. An adapter executes
// exactly one provider call per Invoke and never retries internally;
// retry policy lives in middleware.
// This interface will be implemented by the providers package.
type Adapter interface {
	Invoke(ctx context.Context, req *Request) (*Response, error)
	Capabilities() domain.Capabilities
	Name() string
}

// Handler processes invocation requests through a composable middleware
// pipeline. Core abstraction enabling request preprocessing, response
// postprocessing, and cross-cutting concerns like rate limiting, retry,
// and observability.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
// Enables middleware composition with function-based handlers.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms Handler into enhanced Handler for composable behavior.
// Applied in reverse order with last middleware closest to core handler,
// enabling layered request processing and response transformation.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler.
// Middleware executes in the order provided with first middleware outermost,
// enabling request preprocessing and response postprocessing in proper order.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewInvokeHandler creates the core handler that dispatches requests to
// provider adapters. defaultTimeout bounds calls whose request carries no
// timeout of its own.
func NewInvokeHandler(router Router, defaultTimeout time.Duration) Handler {
	return &invokeHandler{
		router:         router,
		defaultTimeout: defaultTimeout,
	}
}

// invokeHandler is the core handler at the bottom of every chain.
type invokeHandler struct {
	router         Router
	defaultTimeout time.Duration
}

// Handle implements Handler by dispatching to the adapter picked for the
// request's model. It applies the per-call timeout and stamps wall-clock
// latency onto the normalized usage.
func (h *invokeHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = h.defaultTimeout
	}
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := adapter.Invoke(reqCtx, req)
	if err != nil {
		return nil, err
	}

	resp.Usage.LatencyMs = time.Since(start).Milliseconds()
	if resp.Provider == "" {
		resp.Provider = adapter.Name()
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	if resp.Attempts == 0 {
		resp.Attempts = 1
	}
	return resp, nil
}
