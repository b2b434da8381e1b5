package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinNames(t *testing.T) {
	names := BuiltinNames()

	assert.Equal(t, []string{
		"data_pattern_analyzer",
		"fuzzy_match",
		"regex_tester",
		"schema_validator",
	}, names)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "identical", a: "kitten", b: "kitten", want: 0},
		{name: "classic_kitten_sitting", a: "kitten", b: "sitting", want: 3},
		{name: "empty_to_word", a: "", b: "abc", want: 3},
		{name: "word_to_empty", a: "abc", b: "", want: 3},
		{name: "single_substitution", a: "cat", b: "bat", want: 1},
		{name: "insertion", a: "cat", b: "cart", want: 1},
		{name: "unicode_runes", a: "café", b: "cafe", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein(tt.a, tt.b))
		})
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "diabetes", b: "diabetes", want: 1.0},
		{name: "case_insensitive", a: "Diabetes", b: "diabetes", want: 1.0},
		{name: "both_empty", a: "", b: "", want: 1.0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0.0},
		{name: "one_edit_of_four", a: "gene", b: "genes", want: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarityRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestFuzzyMatch_RanksAndCaps(t *testing.T) {
	result, err := fuzzyMatch(context.Background(), map[string]any{
		"value":       "diabetes",
		"candidates":  []any{"diabetes mellitus", "diabetes", "arthritis", "DIABETES"},
		"threshold":   0.5,
		"max_results": float64(2),
	})
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)

	assert.Equal(t, true, out["found"])
	assert.Equal(t, 4, out["total_candidates"])

	matches, ok := out["matches"].([]fuzzyMatchEntry)
	require.True(t, ok)
	require.Len(t, matches, 2, "max_results must cap the list")

	// Exact matches score 1.0 and sort first; ties keep candidate order.
	assert.Equal(t, "diabetes", matches[0].Candidate)
	assert.True(t, matches[0].ExactMatch)
	assert.Equal(t, 1.0, matches[0].Similarity)
	assert.Equal(t, "DIABETES", matches[1].Candidate)
	assert.True(t, matches[1].ExactMatch)
}

func TestFuzzyMatch_ThresholdFilters(t *testing.T) {
	result, err := fuzzyMatch(context.Background(), map[string]any{
		"value":      "diabetes",
		"candidates": []any{"arthritis"},
		"threshold":  0.9,
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, false, out["found"])
	assert.Nil(t, out["best_match"])
}

func TestFuzzyMatch_EmptyInputs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "empty_value", args: map[string]any{"value": "", "candidates": []any{"a"}}},
		{name: "empty_candidates", args: map[string]any{"value": "x", "candidates": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := fuzzyMatch(context.Background(), tt.args)
			require.NoError(t, err)

			out := result.(map[string]any)
			assert.Equal(t, false, out["found"])
			assert.Equal(t, "value or candidates list is empty", out["message"])
		})
	}
}

func TestRegexTester_ReportsMatches(t *testing.T) {
	result, err := regexTester(context.Background(), map[string]any{
		"regex_pattern": `\d+`,
		"test_strings":  []any{"order 42 of 7", "no digits here"},
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, true, out["all_passed"])
	assert.Equal(t, 2, out["total_tests"])
	assert.Equal(t, 1, out["matched_count"])
	assert.Equal(t, 0.5, out["match_rate"])

	entries := out["test_results"].([]map[string]any)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"42", "7"}, entries[0]["matches"])
	assert.Equal(t, 2, entries[0]["match_count"])
	assert.Equal(t, []string{}, entries[1]["matches"])
	assert.Equal(t, false, entries[1]["matched"])
}

func TestRegexTester_CapturingGroupExtraction(t *testing.T) {
	result, err := regexTester(context.Background(), map[string]any{
		"regex_pattern": `id=(\w+)`,
		"test_strings":  []any{"id=abc id=def"},
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	entries := out["test_results"].([]map[string]any)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"abc", "def"}, entries[0]["matches"])
}

func TestRegexTester_ExpectedMatchesScoring(t *testing.T) {
	result, err := regexTester(context.Background(), map[string]any{
		"regex_pattern":    `[A-Z]+`,
		"test_strings":     []any{"ABC lower", "xyz DEF"},
		"expected_matches": []any{"ABC", "WRONG"},
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, false, out["all_passed"])
	assert.Equal(t, 1, out["correct_count"])
	assert.Equal(t, 0.5, out["accuracy"])

	entries := out["test_results"].([]map[string]any)
	assert.Equal(t, true, entries[0]["correct"])
	assert.Equal(t, false, entries[1]["correct"])
	assert.Equal(t, "WRONG", entries[1]["expected"])
}

func TestRegexTester_InvalidPattern(t *testing.T) {
	result, err := regexTester(context.Background(), map[string]any{
		"regex_pattern": `[unclosed`,
		"test_strings":  []any{"sample"},
	})
	require.NoError(t, err, "compile failure is reported in the result, not as an error")

	out := result.(map[string]any)
	assert.Equal(t, false, out["all_passed"])
	assert.Contains(t, out["error"], "invalid regex pattern")
}

func TestDataPatternAnalyzer_TypeInference(t *testing.T) {
	tests := []struct {
		name         string
		values       []any
		wantType     string
		wantFormats  []string
		analyzeEmpty bool
	}{
		{
			name:     "integers",
			values:   []any{"12", "-4", "900"},
			wantType: "integer",
		},
		{
			name:     "decimals",
			values:   []any{"1.5", "2.25", "-0.75"},
			wantType: "number",
		},
		{
			name:     "boolean_flags",
			values:   []any{"yes", "no", "1", "0"},
			wantType: "boolean",
		},
		{
			name:        "iso_dates",
			values:      []any{"2024-01-15", "2024-02-20"},
			wantType:    "date",
			wantFormats: []string{"2006-01-02"},
		},
		{
			name:        "datetimes",
			values:      []any{"2024-01-15 10:30:00", "2024-02-20 11:45:10"},
			wantType:    "datetime",
			wantFormats: []string{"2006-01-02 15:04:05"},
		},
		{
			name:     "emails",
			values:   []any{"a@example.org", "b@example.org"},
			wantType: "email",
		},
		{
			name:     "urls",
			values:   []any{"https://example.org/x", "http://example.org"},
			wantType: "url",
		},
		{
			name:     "mixed_majority_wins",
			values:   []any{"12", "15", "hello"},
			wantType: "integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := dataPatternAnalyzer(context.Background(), map[string]any{"values": tt.values})
			require.NoError(t, err)

			out := result.(map[string]any)
			assert.Equal(t, tt.wantType, out["inferred_type"])
			assert.Equal(t, len(tt.values), out["values_analyzed"])

			if tt.wantFormats != nil {
				assert.Equal(t, tt.wantFormats, out["detected_formats"])
			}
		})
	}
}

func TestDataPatternAnalyzer_UniquenessAndSamples(t *testing.T) {
	values := []any{"a", "b", "a", "c", "a", "d", "e"}
	result, err := dataPatternAnalyzer(context.Background(), map[string]any{"values": values})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, 5, out["unique_count"])
	assert.InDelta(t, 5.0/7.0, out["unique_ratio"].(float64), 1e-4)
	assert.Equal(t, []string{"a", "b", "a", "c", "a"}, out["sample_values"])
}

func TestDataPatternAnalyzer_FormatAnalysisDisabled(t *testing.T) {
	result, err := dataPatternAnalyzer(context.Background(), map[string]any{
		"values":         []any{"2024-01-15", "2024-02-20"},
		"analyze_format": false,
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, "string", out["inferred_type"])
	assert.Nil(t, out["detected_formats"])
}

func TestDataPatternAnalyzer_EmptyValues(t *testing.T) {
	result, err := dataPatternAnalyzer(context.Background(), map[string]any{"values": []any{}})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, "unknown", out["inferred_type"])
	assert.Equal(t, "empty values list", out["error"])
}

func TestClassifyValue(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		wantKind   string
		wantLayout string
	}{
		{name: "trimmed_integer", value: "  42  ", wantKind: "integer"},
		{name: "negative_decimal", value: "-3.14", wantKind: "number"},
		{name: "boolean_word", value: "Yes", wantKind: "boolean"},
		{name: "zero_is_boolean", value: "0", wantKind: "boolean"},
		{name: "slash_date", value: "2024/01/15", wantKind: "date", wantLayout: "2006/01/02"},
		{name: "day_first_date", value: "25/12/2024", wantKind: "date", wantLayout: "02/01/2006"},
		{name: "rfc3339", value: "2024-01-15T10:30:00Z", wantKind: "datetime", wantLayout: "2006-01-02T15:04:05Z07:00"},
		{name: "email", value: "curator@ebi.ac.uk", wantKind: "email"},
		{name: "url", value: "https://www.ebi.ac.uk/ols4", wantKind: "url"},
		{name: "plain_text", value: "homo sapiens", wantKind: "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, layout := classifyValue(tt.value, true)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantLayout, layout)
		})
	}
}

func TestSchemaValidator_ValidDocument(t *testing.T) {
	result, err := schemaValidator(context.Background(), map[string]any{
		"data": map[string]any{"name": "sample", "count": float64(3)},
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":  map[string]any{"type": "string"},
				"count": map[string]any{"type": "integer"},
			},
			"required": []any{"name"},
		},
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, true, out["valid"])
	assert.Empty(t, out["errors"])
}

func TestSchemaValidator_ReportsViolations(t *testing.T) {
	result, err := schemaValidator(context.Background(), map[string]any{
		"data": map[string]any{"count": "not a number"},
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":  map[string]any{"type": "string"},
				"count": map[string]any{"type": "integer"},
			},
			"required": []any{"name"},
		},
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, false, out["valid"])
	assert.NotEmpty(t, out["error_message"])

	violations := out["errors"].([]map[string]any)
	require.NotEmpty(t, violations)
	for _, violation := range violations {
		assert.NotEmpty(t, violation["message"])
	}
}

func TestSchemaValidator_InvalidSchema(t *testing.T) {
	result, err := schemaValidator(context.Background(), map[string]any{
		"data":   map[string]any{"x": float64(1)},
		"schema": map[string]any{"type": "banana"},
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out["error"], "invalid schema")
}
