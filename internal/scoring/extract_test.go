package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-benchy/internal/scoring"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   map[string]any
	}{
		{
			name:   "bare_object",
			output: `{"a": 1}`,
			want:   map[string]any{"a": float64(1)},
		},
		{
			name:   "leading_and_trailing_prose",
			output: `Sure! The result is {"a": 1}. Anything else?`,
			want:   map[string]any{"a": float64(1)},
		},
		{
			name:   "json_code_fence",
			output: "```json\n{\"a\": 1}\n```",
			want:   map[string]any{"a": float64(1)},
		},
		{
			name:   "plain_code_fence",
			output: "```\n{\"a\": 1}\n```",
			want:   map[string]any{"a": float64(1)},
		},
		{
			name:   "nested_object",
			output: `{"outer": {"inner": [1, 2]}}`,
			want:   map[string]any{"outer": map[string]any{"inner": []any{float64(1), float64(2)}}},
		},
		{
			name:   "non_json_braces_before_real_object",
			output: `Replace {placeholder} with {"a": 1}.`,
			want:   map[string]any{"a": float64(1)},
		},
		{
			name:   "first_of_multiple_objects_wins",
			output: `{"first": true} {"second": true}`,
			want:   map[string]any{"first": true},
		},
		{
			name:   "whitespace_padding",
			output: "\n\n  {\"a\": \"b\"}  \n",
			want:   map[string]any{"a": "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diagnostic := scoring.ExtractObject(tt.output)
			require.NotNil(t, got, "diagnostic: %s", diagnostic)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, diagnostic)
		})
	}
}

func TestExtractObject_NoObject(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{name: "empty", output: ""},
		{name: "whitespace_only", output: "   \n\t"},
		{name: "prose_only", output: "The answer is forty-two."},
		{name: "json_array_not_object", output: `[1, 2, 3]`},
		{name: "unterminated_object", output: `{"a": `},
		{name: "braces_without_json", output: "use {curly} braces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diagnostic := scoring.ExtractObject(tt.output)
			assert.Nil(t, got)
			assert.NotEmpty(t, diagnostic)
		})
	}
}
