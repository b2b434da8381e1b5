package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-benchy/internal/domain"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// fakeConverseAPI records the last input and replays a canned output.
type fakeConverseAPI struct {
	out    *bedrockruntime.ConverseOutput
	err    error
	lastIn *bedrockruntime.ConverseInput
	calls  int
}

func (f *fakeConverseAPI) Converse(
	_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options),
) (*bedrockruntime.ConverseOutput, error) {
	f.calls++
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func bedrockAdapterWithFake(fake *fakeConverseAPI) *BedrockAdapter {
	return &BedrockAdapter{client: fake, region: "us-east-1"}
}

func textConverseOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role:    types.ConversationRoleAssistant,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			},
		},
		StopReason: types.StopReasonEndTurn,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(30),
			OutputTokens: aws.Int32(9),
			TotalTokens:  aws.Int32(39),
		},
	}
}

func TestBedrockAdapter_BuildsConverseInput(t *testing.T) {
	fake := &fakeConverseAPI{out: textConverseOutput("done")}
	adapter := bedrockAdapterWithFake(fake)

	conversation := domain.NewTranscript("be precise", "analyze the data")
	conversation = conversation.Append(
		domain.Turn{
			Role:    domain.RoleModel,
			Content: "inspecting",
			ToolCalls: []domain.ToolCall{
				{ID: "toolu_1", Name: "data_pattern_analyzer", Arguments: json.RawMessage(`{"data":[1,2,3]}`)},
			},
		},
		domain.Turn{Role: domain.RoleToolResult, Content: `{"trend":"increasing"}`, ToolCallID: "toolu_1"},
	)

	req := &transport.Request{
		Model:        "us.anthropic.claude-sonnet-4-20250514-v1:0",
		Conversation: conversation,
		Tools: []domain.ToolDefinition{
			{
				Name:        "data_pattern_analyzer",
				Description: "Detect trends in a numeric series",
				Parameters: map[string]domain.ParameterSpec{
					"data": {Type: "array", Required: true},
				},
				Binding: domain.ToolBinding{Kind: domain.BindingLocal, FunctionName: "data_pattern_analyzer"},
			},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	}

	_, err := adapter.Invoke(context.Background(), req)
	require.NoError(t, err)

	in := fake.lastIn
	require.NotNil(t, in)
	assert.Equal(t, "us.anthropic.claude-sonnet-4-20250514-v1:0", aws.ToString(in.ModelId))

	require.Len(t, in.System, 1)
	systemBlock, ok := in.System[0].(*types.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "be precise", systemBlock.Value)

	require.Len(t, in.Messages, 3)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)

	assert.Equal(t, types.ConversationRoleAssistant, in.Messages[1].Role)
	require.Len(t, in.Messages[1].Content, 2)
	toolUse, ok := in.Messages[1].Content[1].(*types.ContentBlockMemberToolUse)
	require.True(t, ok)
	assert.Equal(t, "toolu_1", aws.ToString(toolUse.Value.ToolUseId))
	assert.Equal(t, "data_pattern_analyzer", aws.ToString(toolUse.Value.Name))
	rawArgs, err := toolUse.Value.Input.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[1,2,3]}`, string(rawArgs))

	// Tool results travel back as user-role messages.
	assert.Equal(t, types.ConversationRoleUser, in.Messages[2].Role)
	toolResult, ok := in.Messages[2].Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "toolu_1", aws.ToString(toolResult.Value.ToolUseId))

	require.NotNil(t, in.InferenceConfig)
	assert.Equal(t, int32(1024), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.InDelta(t, 0.3, float64(aws.ToFloat32(in.InferenceConfig.Temperature)), 1e-6)
	assert.Nil(t, in.AdditionalModelRequestFields)

	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 1)
	spec, ok := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, "data_pattern_analyzer", aws.ToString(spec.Value.Name))
	schemaJSON, ok := spec.Value.InputSchema.(*types.ToolInputSchemaMemberJson)
	require.True(t, ok)
	rawSchema, err := schemaJSON.Value.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"data":{"type":"array"}},"required":["data"]}`, string(rawSchema))
}

func TestBedrockAdapter_ThinkingMode(t *testing.T) {
	fake := &fakeConverseAPI{out: textConverseOutput("pondered")}
	adapter := bedrockAdapterWithFake(fake)

	_, err := adapter.Invoke(context.Background(), &transport.Request{
		Model:        "us.anthropic.claude-sonnet-4-20250514-v1:0",
		Conversation: domain.NewTranscript("", "think about it"),
		Temperature:  0.9,
		ThinkingMode: true,
		MaxTokens:    4096,
	})
	require.NoError(t, err)

	in := fake.lastIn
	require.NotNil(t, in.AdditionalModelRequestFields)
	raw, err := in.AdditionalModelRequestFields.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"thinking":{"type":"enabled","budget_tokens":2048}}`, string(raw))

	// Thinking mode forbids an explicit sampling temperature.
	require.NotNil(t, in.InferenceConfig)
	assert.Nil(t, in.InferenceConfig.Temperature)
}

func TestBedrockAdapter_TemperatureClamped(t *testing.T) {
	fake := &fakeConverseAPI{out: textConverseOutput("ok")}
	adapter := bedrockAdapterWithFake(fake)

	_, err := adapter.Invoke(context.Background(), &transport.Request{
		Model:        "amazon.nova-pro-v1:0",
		Conversation: domain.NewTranscript("", "hi"),
		Temperature:  1.7,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, float64(aws.ToFloat32(fake.lastIn.InferenceConfig.Temperature)), 1e-6)
}

func TestBedrockAdapter_ParsesTextResponse(t *testing.T) {
	adapter := bedrockAdapterWithFake(&fakeConverseAPI{out: textConverseOutput("all clear")})

	resp, err := adapter.Invoke(context.Background(), &transport.Request{
		Model:        "amazon.nova-pro-v1:0",
		Conversation: domain.NewTranscript("", "status?"),
	})
	require.NoError(t, err)

	assert.Equal(t, "all clear", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, domain.FinishStop, resp.FinishReason)
	assert.Equal(t, "bedrock", resp.Provider)
	assert.Equal(t, int64(30), resp.Usage.PromptTokens)
	assert.Equal(t, int64(9), resp.Usage.CompletionTokens)
	assert.Equal(t, int64(39), resp.Usage.TotalTokens)
}

func TestBedrockAdapter_ParsesToolUse(t *testing.T) {
	out := &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{
			Value: types.Message{
				Role: types.ConversationRoleAssistant,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: "let me check"},
					&types.ContentBlockMemberToolUse{
						Value: types.ToolUseBlock{
							ToolUseId: aws.String("toolu_7"),
							Name:      aws.String("schema_validator"),
							Input:     document.NewLazyDocument(map[string]any{"payload": "{}"}),
						},
					},
				},
			},
		},
		StopReason: types.StopReasonToolUse,
	}
	adapter := bedrockAdapterWithFake(&fakeConverseAPI{out: out})

	resp, err := adapter.Invoke(context.Background(), &transport.Request{
		Model:        "us.anthropic.claude-sonnet-4-20250514-v1:0",
		Conversation: domain.NewTranscript("", "validate this"),
	})
	require.NoError(t, err)

	assert.Equal(t, "let me check", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_7", resp.ToolCalls[0].ID)
	assert.Equal(t, "schema_validator", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"payload":"{}"}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, domain.FinishToolUse, resp.FinishReason)
}

func TestBedrockAdapter_StopReasonMapping(t *testing.T) {
	tests := []struct {
		name   string
		reason types.StopReason
		want   domain.FinishReason
	}{
		{name: "end_turn", reason: types.StopReasonEndTurn, want: domain.FinishStop},
		{name: "stop_sequence", reason: types.StopReasonStopSequence, want: domain.FinishStop},
		{name: "tool_use", reason: types.StopReasonToolUse, want: domain.FinishToolUse},
		{name: "max_tokens", reason: types.StopReasonMaxTokens, want: domain.FinishLength},
		{name: "content_filtered", reason: types.StopReasonContentFiltered, want: domain.FinishContentFilter},
		{name: "guardrail", reason: types.StopReasonGuardrailIntervened, want: domain.FinishContentFilter},
		{name: "unrecognized", reason: types.StopReason("experimental"), want: domain.FinishUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := textConverseOutput("body")
			out.StopReason = tt.reason
			resp, err := parseConverseOutput(out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.FinishReason)
		})
	}
}

func TestBedrockAdapter_UninterpretableResponses(t *testing.T) {
	tests := []struct {
		name string
		out  *bedrockruntime.ConverseOutput
	}{
		{
			name: "missing_output_union",
			out:  &bedrockruntime.ConverseOutput{},
		},
		{
			name: "empty_message",
			out: &bedrockruntime.ConverseOutput{
				Output: &types.ConverseOutputMemberMessage{
					Value: types.Message{Role: types.ConversationRoleAssistant},
				},
				StopReason: types.StopReasonEndTurn,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := bedrockAdapterWithFake(&fakeConverseAPI{out: tt.out})

			_, err := adapter.Invoke(context.Background(), &transport.Request{
				Model:        "amazon.nova-pro-v1:0",
				Conversation: domain.NewTranscript("", "hi"),
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, llmerrors.ErrInvalidResponse)
		})
	}
}

func TestBedrockAdapter_ClassifiesAPIErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantType  llmerrors.ErrorType
		retryable bool
	}{
		{name: "throttled", code: "ThrottlingException", wantType: llmerrors.ErrorTypeRateLimit, retryable: true},
		{name: "too_many_requests", code: "TooManyRequestsException", wantType: llmerrors.ErrorTypeRateLimit, retryable: true},
		{name: "access_denied", code: "AccessDeniedException", wantType: llmerrors.ErrorTypeAuth, retryable: false},
		{name: "expired_token", code: "ExpiredTokenException", wantType: llmerrors.ErrorTypeAuth, retryable: false},
		{name: "model_not_found", code: "ResourceNotFoundException", wantType: llmerrors.ErrorTypeModelNotFound, retryable: false},
		{name: "quota_exceeded", code: "ServiceQuotaExceededException", wantType: llmerrors.ErrorTypeQuota, retryable: false},
		{name: "model_timeout", code: "ModelTimeoutException", wantType: llmerrors.ErrorTypeTimeout, retryable: true},
		{name: "model_not_ready", code: "ModelNotReadyException", wantType: llmerrors.ErrorTypeNetwork, retryable: true},
		{name: "service_unavailable", code: "ServiceUnavailableException", wantType: llmerrors.ErrorTypeNetwork, retryable: true},
		{name: "validation", code: "ValidationException", wantType: llmerrors.ErrorTypeValidation, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeConverseAPI{
				err: &smithy.GenericAPIError{Code: tt.code, Message: "from bedrock"},
			}
			adapter := bedrockAdapterWithFake(fake)

			_, err := adapter.Invoke(context.Background(), &transport.Request{
				Model:        "amazon.nova-pro-v1:0",
				Conversation: domain.NewTranscript("", "hi"),
			})

			require.Error(t, err)
			var provErr *llmerrors.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, "bedrock", provErr.Provider)
			assert.Equal(t, tt.code, provErr.Code)
			assert.Equal(t, tt.wantType, provErr.Type)
			assert.Equal(t, tt.retryable, provErr.IsRetryable())
		})
	}
}

func TestBedrockAdapter_PlainErrorsPassThrough(t *testing.T) {
	dialErr := errors.New("dial tcp: no route to host")
	adapter := bedrockAdapterWithFake(&fakeConverseAPI{err: dialErr})

	_, err := adapter.Invoke(context.Background(), &transport.Request{
		Model:        "amazon.nova-pro-v1:0",
		Conversation: domain.NewTranscript("", "hi"),
	})

	assert.ErrorIs(t, err, dialErr)
}

func TestBedrockAdapter_RejectsUnknownRole(t *testing.T) {
	adapter := bedrockAdapterWithFake(&fakeConverseAPI{out: textConverseOutput("ok")})

	_, err := adapter.Invoke(context.Background(), &transport.Request{
		Model:        "amazon.nova-pro-v1:0",
		Conversation: domain.Transcript{{Role: "narrator", Content: "meanwhile"}},
	})

	assert.ErrorIs(t, err, ErrUnsupportedRole)
}

func TestMarshalDocument_NilYieldsEmptyObject(t *testing.T) {
	raw, err := marshalDocument(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}
