package tools

import (
	"context"
	"math"
	"slices"
)

// builtinFunc is an in-process tool implementation. Arguments arrive already
// schema-validated; the returned value is JSON-encoded into the tool-result
// turn.
type builtinFunc func(ctx context.Context, args map[string]any) (any, error)

// builtinCatalog maps function_name values from the tool configuration
// document to their implementations. The catalog targets metadata-curation
// tasks: vocabulary matching, pattern testing, and schema conformance.
var builtinCatalog = map[string]builtinFunc{
	"fuzzy_match":           fuzzyMatch,
	"regex_tester":          regexTester,
	"data_pattern_analyzer": dataPatternAnalyzer,
	"schema_validator":      schemaValidator,
}

// BuiltinNames lists the callable names the catalog resolves, sorted for
// stable display.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinCatalog))
	for name := range builtinCatalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Argument accessors. Schema validation guarantees declared types, but
// optional parameters may be absent, so every accessor carries a default.

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatArg(args map[string]any, key string, fallback float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func boolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

// round4 keeps reported ratios readable without losing ranking resolution.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
