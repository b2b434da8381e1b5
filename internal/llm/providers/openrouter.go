package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// chatCompleter is the slice of the go-openai client the adapter depends on.
// Tests substitute a fake; production wires *openai.Client.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// openRouterCapabilities reflects the OpenRouter chat-completions surface.
// Thinking mode is a Bedrock-only feature; requests carrying it are rejected
// by the runner before they reach this adapter.
var openRouterCapabilities = domain.Capabilities{
	SystemInstructions: true,
	Temperature:        true,
	Tools:              true,
	ThinkingMode:       false,
	CustomPrompts:      true,
	MultiTask:          true,
}

// OpenRouterAdapter invokes models behind OpenRouter's OpenAI-compatible
// chat-completions API. It handles conversation and tool-schema translation,
// response normalization, and OpenRouter-specific error classification.
type OpenRouterAdapter struct {
	client chatCompleter
	config configuration.ProviderConfig
}

// NewOpenRouterAdapter creates an OpenRouter adapter with default endpoint.
// A nil httpClient keeps the SDK's default transport. Static headers from
// the provider config (OpenRouter app attribution uses HTTP-Referer and
// X-Title) are injected into every outbound request.
func NewOpenRouterAdapter(cfg configuration.ProviderConfig, httpClient *http.Client) *OpenRouterAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = configuration.DefaultOpenRouterEndpoint
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.Endpoint
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	if len(cfg.Headers) > 0 {
		// go-openai's ClientConfig.HTTPClient is an HTTPDoer; both paths
		// above store a *http.Client, so the assertion always holds and a
		// foreign Doer degrades to withStaticHeaders' nil fallback.
		base, _ := clientConfig.HTTPClient.(*http.Client)
		clientConfig.HTTPClient = withStaticHeaders(base, cfg.Headers)
	}

	return &OpenRouterAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Name returns the provider name.
func (a *OpenRouterAdapter) Name() string {
	return configuration.ProviderOpenRouter
}

// Capabilities returns the static feature flags for OpenRouter models.
func (a *OpenRouterAdapter) Capabilities() domain.Capabilities {
	return openRouterCapabilities
}

// Invoke sends one chat-completion cycle and normalizes the response.
// A missing API key fails before any network activity.
func (a *OpenRouterAdapter) Invoke(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if a.config.APIKey == "" {
		return nil, &llmerrors.ProviderError{
			Provider:   configuration.ProviderOpenRouter,
			StatusCode: http.StatusUnauthorized,
			Message:    "missing API key",
			Code:       "missing_api_key",
			Type:       llmerrors.ErrorTypeAuth,
		}
	}

	chatReq, err := a.buildRequest(req)
	if err != nil {
		return nil, err
	}

	chatResp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, wrapOpenRouterError(err)
	}

	return parseChatResponse(chatResp)
}

// buildRequest translates the normalized request into the chat-completions
// wire format.
func (a *OpenRouterAdapter) buildRequest(req *transport.Request) (openai.ChatCompletionRequest, error) {
	messages, err := toChatMessages(req.Conversation)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: wireTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toChatTools(req.Tools)
	}

	return chatReq, nil
}

// toChatMessages converts a transcript into chat-completion messages.
// System turns become system messages, model turns carry their tool calls,
// and tool-result turns map to role "tool" with the originating call ID.
func toChatMessages(transcript domain.Transcript) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))

	for _, turn := range transcript {
		switch turn.Role {
		case domain.RoleSystem:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: turn.Content,
			})
		case domain.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Content,
			})
		case domain.RoleModel:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Content,
			}
			for _, call := range turn.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				})
			}
			messages = append(messages, msg)
		case domain.RoleToolResult:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    turn.Content,
				ToolCallID: turn.ToolCallID,
			})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedRole, turn.Role)
		}
	}

	return messages, nil
}

// toChatTools converts tool definitions into function declarations.
func toChatTools(defs []domain.ToolDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.JSONSchema(),
			},
		})
	}
	return tools
}

// wireTemperature prepares a temperature for the chat-completions encoding.
// The client omits zero-valued temperatures from the payload, so an explicit
// 0.0 is nudged to the smallest positive float32, which providers sample
// identically to zero.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// parseChatResponse normalizes a completion into the transport response.
// Completions with no choices, or whose first choice carries neither text
// nor tool calls, are rejected as uninterpretable.
func parseChatResponse(resp openai.ChatCompletionResponse) (*transport.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion has no choices", llmerrors.ErrInvalidResponse)
	}
	choice := resp.Choices[0]

	var toolCalls []domain.ToolCall
	for _, call := range choice.Message.ToolCalls {
		if call.Type != openai.ToolTypeFunction {
			continue
		}
		toolCalls = append(toolCalls, domain.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	if choice.Message.Content == "" && len(toolCalls) == 0 {
		return nil, fmt.Errorf("%w: completion has neither content nor tool calls", llmerrors.ErrInvalidResponse)
	}

	return &transport.Response{
		Content:      choice.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: mapChatFinishReason(choice.FinishReason, len(toolCalls) > 0),
		Provider:     configuration.ProviderOpenRouter,
		Model:        resp.Model,
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
	}, nil
}

// mapChatFinishReason converts chat-completion finish reasons to domain
// FinishReason. Models occasionally report "stop" alongside tool calls, so
// the presence of calls wins over the reported reason.
func mapChatFinishReason(reason openai.FinishReason, hasToolCalls bool) domain.FinishReason {
	if hasToolCalls {
		return domain.FinishToolUse
	}
	switch reason {
	case openai.FinishReasonStop:
		return domain.FinishStop
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return domain.FinishToolUse
	case openai.FinishReasonLength:
		return domain.FinishLength
	case openai.FinishReasonContentFilter:
		return domain.FinishContentFilter
	default:
		return domain.FinishUnknown
	}
}

// wrapOpenRouterError converts go-openai failures into classified provider
// errors. Context cancellation and plain transport failures pass through
// untouched so the retry layer can apply its own network heuristics.
func wrapOpenRouterError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErrorCode(apiErr.Code)
		provErr := &llmerrors.ProviderError{
			Provider:   configuration.ProviderOpenRouter,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Type:       classifyErrorType(apiErr.HTTPStatusCode, code),
		}
		if provErr.Type == llmerrors.ErrorTypeRateLimit {
			provErr.RetryAfter = parseRetryHint(apiErr.Message)
		}
		return provErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llmerrors.ProviderError{
			Provider:   configuration.ProviderOpenRouter,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Type:       classifyErrorType(reqErr.HTTPStatusCode, ""),
		}
	}

	return err
}

// apiErrorCode renders the API error code field, which the wire format
// leaves untyped.
func apiErrorCode(code any) string {
	switch v := code.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// headerTransport injects static headers into every outbound request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}

// withStaticHeaders wraps an HTTP client so the given headers ride on every
// request it issues. The original client is not mutated.
func withStaticHeaders(client *http.Client, headers map[string]string) *http.Client {
	base := http.DefaultTransport
	wrapped := http.Client{}
	if client != nil {
		wrapped = *client
		if client.Transport != nil {
			base = client.Transport
		}
	}
	wrapped.Transport = &headerTransport{base: base, headers: headers}
	return &wrapped
}
