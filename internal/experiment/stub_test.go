package experiment_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// step is one scripted provider exchange: a canned response or an error.
type step struct {
	resp *transport.Response
	err  error
}

// scriptedClient plays back provider exchanges in order and records every
// request it saw. Capabilities default to the full feature surface unless
// overridden.
type scriptedClient struct {
	mu       sync.Mutex
	steps    []step
	requests []*transport.Request
	caps     domain.Capabilities
	capsErr  error
}

func newScriptedClient(steps ...step) *scriptedClient {
	return &scriptedClient{steps: steps, caps: fullCaps()}
}

func (c *scriptedClient) Invoke(_ context.Context, req *transport.Request) (*transport.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := *req
	snapshot.Conversation = req.Conversation.Clone()
	c.requests = append(c.requests, &snapshot)

	if len(c.steps) == 0 {
		return nil, errors.New("scripted client exhausted")
	}
	next := c.steps[0]
	c.steps = c.steps[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.resp, nil
}

func (c *scriptedClient) Capabilities(string) (domain.Capabilities, error) {
	if c.capsErr != nil {
		return domain.Capabilities{}, c.capsErr
	}
	return c.caps, nil
}

func (c *scriptedClient) seen() []*transport.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*transport.Request(nil), c.requests...)
}

// stubExecutor dispatches tool invocations to a test-provided function and
// records the names invoked, in call order.
type stubExecutor struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, name string, args json.RawMessage) (string, error)
}

func (e *stubExecutor) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, name)
	e.mu.Unlock()
	if e.fn == nil {
		return `{"ok": true}`, nil
	}
	return e.fn(ctx, name, args)
}

func (e *stubExecutor) invoked() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func fullCaps() domain.Capabilities {
	return domain.Capabilities{
		SystemInstructions: true,
		Temperature:        true,
		Tools:              true,
		ThinkingMode:       true,
		CustomPrompts:      true,
		MultiTask:          true,
	}
}

// textStep is a final-answer exchange with a small fixed usage sample.
func textStep(content string) step {
	return step{resp: &transport.Response{
		Content:      content,
		FinishReason: domain.FinishStop,
		Usage:        transport.NormalizedUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		Attempts:     1,
		Provider:     "openrouter",
	}}
}

// toolStep is an exchange in which the model requests the given invocations.
func toolStep(calls ...domain.ToolCall) step {
	return step{resp: &transport.Response{
		ToolCalls:    calls,
		FinishReason: domain.FinishToolUse,
		Usage:        transport.NormalizedUsage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28},
		Attempts:     1,
		Provider:     "openrouter",
	}}
}

// searchRequest is a minimal valid request against an OpenRouter model.
func searchRequest() *domain.ExperimentRequest {
	return &domain.ExperimentRequest{
		Model: "openai/gpt-4o",
		Task: domain.TaskPayload{
			Name:   "disease_normalization",
			Prompt: "Normalize the disease name to its canonical ontology label.",
		},
		Tools: []domain.ToolDefinition{{
			Name:        "searchTool",
			Description: "Search the ontology for candidate terms.",
			Parameters: map[string]domain.ParameterSpec{
				"query": {Type: "string", Required: true},
			},
			Binding: domain.ToolBinding{Kind: domain.BindingLocal, FunctionName: "fuzzy_match"},
		}},
	}
}
