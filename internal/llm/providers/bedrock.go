package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// thinkingBudgetTokens is the reasoning budget sent with thinking-mode
// requests. Anthropic models on Bedrock require at least 1024.
const thinkingBudgetTokens = 2048

// converseAPI is the slice of the Bedrock runtime client the adapter
// depends on. Tests substitute a fake; production wires
// *bedrockruntime.Client.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// bedrockCapabilities reflects the Converse API surface. Bedrock is the
// only backend family with thinking-mode support.
var bedrockCapabilities = domain.Capabilities{
	SystemInstructions: true,
	Temperature:        true,
	Tools:              true,
	ThinkingMode:       true,
	CustomPrompts:      true,
	MultiTask:          true,
}

// BedrockAdapter invokes foundation models through the AWS Bedrock Converse
// API. It translates conversations and tool schemas into Converse unions,
// normalizes responses, and classifies smithy API failures.
type BedrockAdapter struct {
	client converseAPI
	region string
}

// NewBedrockAdapter creates an adapter backed by the Bedrock runtime client.
// Static credentials from the provider config take precedence; otherwise the
// SDK's default chain (env, shared config, IAM role) resolves them. An
// explicit region on the config overrides the environment.
func NewBedrockAdapter(cfg configuration.ProviderConfig, httpClient *http.Client) (*BedrockAdapter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	if httpClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(httpClient))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockAdapter{
		client: bedrockruntime.NewFromConfig(awsCfg),
		region: awsCfg.Region,
	}, nil
}

// Name returns the provider name.
func (a *BedrockAdapter) Name() string {
	return configuration.ProviderBedrock
}

// Capabilities returns the static feature flags for Bedrock models.
func (a *BedrockAdapter) Capabilities() domain.Capabilities {
	return bedrockCapabilities
}

// Invoke sends one Converse cycle and normalizes the response.
func (a *BedrockAdapter) Invoke(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	input, err := buildConverseInput(req)
	if err != nil {
		return nil, err
	}

	out, err := a.client.Converse(ctx, input)
	if err != nil {
		return nil, wrapBedrockError(err)
	}

	return parseConverseOutput(out)
}

// buildConverseInput translates the normalized request into Converse unions.
// System turns collect into the top-level system blocks; model turns carry
// tool-use blocks and tool results ride in user-role messages, matching the
// Converse conversation contract.
func buildConverseInput(req *transport.Request) (*bedrockruntime.ConverseInput, error) {
	var system []types.SystemContentBlock
	messages := make([]types.Message, 0, len(req.Conversation))

	for _, turn := range req.Conversation {
		switch turn.Role {
		case domain.RoleSystem:
			system = append(system, &types.SystemContentBlockMemberText{Value: turn.Content})
		case domain.RoleUser:
			messages = append(messages, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: turn.Content}},
			})
		case domain.RoleModel:
			blocks := make([]types.ContentBlock, 0, 1+len(turn.ToolCalls))
			if turn.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: turn.Content})
			}
			for _, call := range turn.ToolCalls {
				var input any = map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						return nil, fmt.Errorf("failed to decode arguments for tool call %s: %w", call.ID, err)
					}
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(call.ID),
						Name:      aws.String(call.Name),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
			messages = append(messages, types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: blocks,
			})
		case domain.RoleToolResult:
			messages = append(messages, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberToolResult{
						Value: types.ToolResultBlock{
							ToolUseId: aws.String(turn.ToolCallID),
							Content: []types.ToolResultContentBlock{
								&types.ToolResultContentBlockMemberText{Value: turn.Content},
							},
						},
					},
				},
			})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedRole, turn.Role)
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.Model),
		Messages: messages,
		System:   system,
	}

	inference := &types.InferenceConfiguration{}
	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		inference.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.ThinkingMode {
		// Extended thinking rejects explicit sampling temperatures; only
		// the reasoning budget travels in the additional fields.
		input.AdditionalModelRequestFields = document.NewLazyDocument(map[string]any{
			"thinking": map[string]any{
				"type":          "enabled",
				"budget_tokens": thinkingBudgetTokens,
			},
		})
	} else {
		inference.Temperature = aws.Float32(clampTemperature(req.Temperature))
	}
	input.InferenceConfig = inference

	if len(req.Tools) > 0 {
		input.ToolConfig = toConverseTools(req.Tools)
	}

	return input, nil
}

// toConverseTools converts tool definitions into the Converse tool
// configuration.
func toConverseTools(defs []domain.ToolDefinition) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(defs))
	for _, def := range defs {
		spec := types.ToolSpecification{
			Name:        aws.String(def.Name),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(def.JSONSchema())},
		}
		if def.Description != "" {
			spec.Description = aws.String(def.Description)
		}
		tools = append(tools, &types.ToolMemberToolSpec{Value: spec})
	}
	return &types.ToolConfiguration{Tools: tools}
}

// clampTemperature bounds a temperature to the [0, 1] range Bedrock accepts.
func clampTemperature(t float64) float32 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return float32(t)
	}
}

// parseConverseOutput normalizes a Converse response into the transport
// response. Reasoning and other non-text blocks are skipped; responses with
// neither text nor tool-use blocks are rejected as uninterpretable.
func parseConverseOutput(out *bedrockruntime.ConverseOutput) (*transport.Response, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected output union %T", llmerrors.ErrInvalidResponse, out.Output)
	}

	var content strings.Builder
	var toolCalls []domain.ToolCall
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			content.WriteString(b.Value)
		case *types.ContentBlockMemberToolUse:
			args, err := marshalDocument(b.Value.Input)
			if err != nil {
				return nil, fmt.Errorf("%w: tool input for %s: %w",
					llmerrors.ErrInvalidResponse, aws.ToString(b.Value.Name), err)
			}
			toolCalls = append(toolCalls, domain.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}

	if content.Len() == 0 && len(toolCalls) == 0 {
		return nil, fmt.Errorf("%w: message has neither content nor tool calls", llmerrors.ErrInvalidResponse)
	}

	resp := &transport.Response{
		Content:      content.String(),
		ToolCalls:    toolCalls,
		FinishReason: mapConverseStopReason(out.StopReason, len(toolCalls) > 0),
		Provider:     configuration.ProviderBedrock,
	}
	if out.Usage != nil {
		resp.Usage = transport.NormalizedUsage{
			PromptTokens:     int64(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int64(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int64(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp, nil
}

// marshalDocument renders a smithy document as raw JSON.
func marshalDocument(doc document.Interface) (json.RawMessage, error) {
	if doc == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// mapConverseStopReason converts Converse stop reasons to domain
// FinishReason.
func mapConverseStopReason(reason types.StopReason, hasToolCalls bool) domain.FinishReason {
	switch reason {
	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		return domain.FinishStop
	case types.StopReasonToolUse:
		return domain.FinishToolUse
	case types.StopReasonMaxTokens:
		return domain.FinishLength
	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		return domain.FinishContentFilter
	default:
		if hasToolCalls {
			return domain.FinishToolUse
		}
		return domain.FinishUnknown
	}
}

// wrapBedrockError converts smithy API failures into classified provider
// errors. AWS exception names carry the classification; the HTTP status is
// a fallback for codes the switch does not recognize. Errors without a
// smithy shape (dial failures, context cancellation) pass through untouched.
func wrapBedrockError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	status := 0
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	code := apiErr.ErrorCode()
	provErr := &llmerrors.ProviderError{
		Provider:   configuration.ProviderBedrock,
		StatusCode: status,
		Message:    apiErr.ErrorMessage(),
		Code:       code,
		Type:       classifyBedrockCode(code, status),
	}
	if provErr.Type == llmerrors.ErrorTypeRateLimit {
		provErr.RetryAfter = parseRetryHint(provErr.Message)
	}
	return provErr
}

// classifyBedrockCode maps Bedrock exception names onto the error taxonomy.
func classifyBedrockCode(code string, status int) llmerrors.ErrorType {
	switch code {
	case "ThrottlingException", "TooManyRequestsException":
		return llmerrors.ErrorTypeRateLimit
	case "AccessDeniedException", "UnrecognizedClientException",
		"ExpiredTokenException", "InvalidSignatureException":
		return llmerrors.ErrorTypeAuth
	case "ResourceNotFoundException":
		return llmerrors.ErrorTypeModelNotFound
	case "ServiceQuotaExceededException":
		return llmerrors.ErrorTypeQuota
	case "ModelTimeoutException":
		return llmerrors.ErrorTypeTimeout
	case "ModelNotReadyException", "ServiceUnavailableException", "InternalServerException":
		return llmerrors.ErrorTypeNetwork
	case "ValidationException":
		return llmerrors.ErrorTypeValidation
	default:
		return classifyErrorType(status, code)
	}
}
