package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-benchy/internal/domain"
)

func validRequest() domain.ExperimentRequest {
	return domain.ExperimentRequest{
		ID:          "exp-1",
		Model:       "qwen/qwen3-30b-a3b",
		Temperature: 0.2,
		Task: domain.TaskPayload{
			Name:   "entity-extraction",
			Prompt: "Extract the entities.",
		},
	}
}

func TestExperimentRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.ExperimentRequest)
		wantErr error
	}{
		{
			name:   "valid_minimal",
			mutate: func(*domain.ExperimentRequest) {},
		},
		{
			name: "valid_with_tools",
			mutate: func(r *domain.ExperimentRequest) {
				r.Tools = []domain.ToolDefinition{
					{
						Name:       "fuzzy_match",
						Parameters: map[string]domain.ParameterSpec{"a": {Type: "string", Required: true}},
						Binding:    domain.ToolBinding{Kind: domain.BindingLocal, FunctionName: "fuzzy_match"},
					},
				}
			},
		},
		{
			name:    "missing_id",
			mutate:  func(r *domain.ExperimentRequest) { r.ID = "" },
			wantErr: domain.ErrInvalidExperiment,
		},
		{
			name:    "missing_model",
			mutate:  func(r *domain.ExperimentRequest) { r.Model = "" },
			wantErr: domain.ErrInvalidExperiment,
		},
		{
			name:    "temperature_too_high",
			mutate:  func(r *domain.ExperimentRequest) { r.Temperature = 2.5 },
			wantErr: domain.ErrInvalidExperiment,
		},
		{
			name:    "temperature_negative",
			mutate:  func(r *domain.ExperimentRequest) { r.Temperature = -0.1 },
			wantErr: domain.ErrInvalidExperiment,
		},
		{
			name: "no_prompt_anywhere",
			mutate: func(r *domain.ExperimentRequest) {
				r.Task.Prompt = ""
				r.PromptOverride = ""
			},
			wantErr: domain.ErrMissingPrompt,
		},
		{
			name: "duplicate_tool_names",
			mutate: func(r *domain.ExperimentRequest) {
				tool := domain.ToolDefinition{
					Name:    "fuzzy_match",
					Binding: domain.ToolBinding{Kind: domain.BindingLocal, FunctionName: "fuzzy_match"},
				}
				r.Tools = []domain.ToolDefinition{tool, tool}
			},
			wantErr: domain.ErrDuplicateTool,
		},
		{
			name: "invalid_tool_definition",
			mutate: func(r *domain.ExperimentRequest) {
				r.Tools = []domain.ToolDefinition{{Name: ""}}
			},
			wantErr: domain.ErrInvalidExperiment,
		},
		{
			name:    "negative_max_rounds",
			mutate:  func(r *domain.ExperimentRequest) { r.MaxRounds = -1 },
			wantErr: domain.ErrInvalidExperiment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExperimentRequest_EffectivePrompt(t *testing.T) {
	req := validRequest()
	assert.Equal(t, "Extract the entities.", req.EffectivePrompt())

	req.PromptOverride = "Do something else."
	assert.Equal(t, "Do something else.", req.EffectivePrompt())
}

func TestExperimentRequest_SeedTranscript(t *testing.T) {
	req := validRequest()
	req.SystemInstructions = "You are a careful annotator."

	seed := req.SeedTranscript()
	require.Len(t, seed, 2)
	assert.Equal(t, domain.RoleSystem, seed[0].Role)
	assert.Equal(t, domain.RoleUser, seed[1].Role)
	assert.Equal(t, "Extract the entities.", seed[1].Content)
}

func TestTaskPayload_CloneExpected(t *testing.T) {
	task := domain.TaskPayload{
		Name:     "t",
		Expected: map[string]any{"answer": "42"},
	}

	clone := task.CloneExpected()
	clone["answer"] = "mutated"

	assert.Equal(t, "42", task.Expected["answer"])
	assert.Nil(t, domain.TaskPayload{}.CloneExpected())
}
