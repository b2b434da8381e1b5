package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-benchy/internal/domain"
)

func TestExperimentResult_Seal(t *testing.T) {
	working := &domain.ExperimentResult{
		ExperimentID: "exp-1",
		Task:         "entity-extraction",
		Model:        "qwen/qwen3-30b-a3b",
		Provider:     "openrouter",
		Status:       domain.StatusSuccess,
		FinalOutput:  `{"answer":"42"}`,
		Transcript: domain.Transcript{
			{Role: domain.RoleUser, Content: "prompt"},
			{Role: domain.RoleModel, Content: `{"answer":"42"}`},
		},
		ToolCalls: []domain.ToolCallRecord{
			{Sequence: 1, Round: 1, Tool: "fuzzy_match", Arguments: json.RawMessage(`{"a":"x"}`), Result: "0.9"},
		},
		Usage:       domain.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Rounds:      2,
		StartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 3, 0, time.UTC),
	}

	sealed := working.Seal()
	require.True(t, sealed.Sealed())
	assert.False(t, working.Sealed())

	// Mutations of the working copy must not reach the sealed snapshot.
	working.Transcript[1].Content = "mutated"
	working.ToolCalls[0].Result = "mutated"
	working.ToolCalls[0].Arguments[2] = 'X'
	working.FinalOutput = "mutated"

	assert.Equal(t, `{"answer":"42"}`, sealed.Transcript[1].Content)
	assert.Equal(t, "0.9", sealed.ToolCalls[0].Result)
	assert.Equal(t, `{"a":"x"}`, string(sealed.ToolCalls[0].Arguments))
	assert.Equal(t, `{"answer":"42"}`, sealed.FinalOutput)

	assert.Equal(t, 3*time.Second, sealed.Duration())
}

func TestExperimentResult_SealEmptySlices(t *testing.T) {
	sealed := (&domain.ExperimentResult{ExperimentID: "exp-2", Status: domain.StatusFailed}).Seal()

	assert.True(t, sealed.Sealed())
	assert.Nil(t, sealed.Transcript)
	assert.Nil(t, sealed.ToolCalls)
}

func TestTokenUsage_Add(t *testing.T) {
	var total domain.TokenUsage
	total.Add(domain.TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30})
	total.Add(domain.TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3})

	assert.Equal(t, int64(11), total.InputTokens)
	assert.Equal(t, int64(22), total.OutputTokens)
	assert.Equal(t, int64(33), total.TotalTokens)
}

func TestExperimentResult_JSONShape(t *testing.T) {
	sealed := (&domain.ExperimentResult{
		ExperimentID: "exp-3",
		Task:         "t",
		Model:        "amazon.titan-text-express-v1",
		Provider:     "bedrock",
		Status:       domain.StatusRetried,
		Usage:        domain.TokenUsage{TotalTokens: 5},
		Rounds:       1,
		Retried:      true,
	}).Seal()

	raw, err := json.Marshal(sealed)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "retried_then_succeeded", decoded["status"])
	assert.Equal(t, "bedrock", decoded["provider"])
	assert.NotContains(t, decoded, "sealed")
	assert.NotContains(t, decoded, "final_output")
}
