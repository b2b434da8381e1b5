package tools

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// typePriority orders type candidates for tie-breaking when several score
// equally across the sampled values.
var typePriority = []string{"string", "integer", "number", "boolean", "date", "datetime", "email", "url"}

var (
	integerPattern = regexp.MustCompile(`^-?\d+$`)
	decimalPattern = regexp.MustCompile(`^-?\d+\.\d+$`)
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlPattern     = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
)

// booleanLiterals are the spellings treated as boolean flags. Bare 0 and 1
// deliberately classify as boolean rather than integer; flag columns are far
// more common than single-digit measurements in curated metadata.
var booleanLiterals = map[string]bool{
	"true": true, "yes": true, "y": true, "1": true,
	"false": true, "no": true, "n": true, "0": true,
}

// dateLayouts lists the accepted temporal formats, most specific first
// within each family.
var dateLayouts = []struct {
	layout string
	kind   string
}{
	{"2006-01-02 15:04:05", "datetime"},
	{time.RFC3339, "datetime"},
	{"2006-01-02T15:04:05", "datetime"},
	{"2006-01-02", "date"},
	{"2006/01/02", "date"},
	{"01/02/2006", "date"},
	{"02/01/2006", "date"},
}

// dataPatternAnalyzer infers the dominant value type across a sample of
// strings and reports per-type scores, detected temporal formats, and
// uniqueness. Classification is per value; the inferred type is the highest
// scorer with ties broken by typePriority order.
func dataPatternAnalyzer(_ context.Context, args map[string]any) (any, error) {
	values := stringSliceArg(args, "values")
	analyzeFormat := boolArg(args, "analyze_format", true)

	if len(values) == 0 {
		return map[string]any{
			"error":         "empty values list",
			"inferred_type": "unknown",
		}, nil
	}

	scores := make(map[string]int)
	var formats []string
	seenFormats := make(map[string]bool)
	unique := make(map[string]bool, len(values))

	for _, value := range values {
		unique[value] = true

		kind, layout := classifyValue(value, analyzeFormat)
		scores[kind]++
		if layout != "" && !seenFormats[layout] {
			seenFormats[layout] = true
			formats = append(formats, layout)
		}
	}

	inferred := "string"
	best := 0
	for _, kind := range typePriority {
		if scores[kind] > best {
			best = scores[kind]
			inferred = kind
		}
	}

	sampleCount := min(5, len(values))

	result := map[string]any{
		"values_analyzed": len(values),
		"inferred_type":   inferred,
		"confidence":      round4(float64(best) / float64(len(values))),
		"type_scores":     scores,
		"unique_count":    len(unique),
		"unique_ratio":    round4(float64(len(unique)) / float64(len(values))),
		"sample_values":   values[:sampleCount],
	}
	if len(formats) > 0 {
		result["detected_formats"] = formats
	} else {
		result["detected_formats"] = nil
	}
	return result, nil
}

// classifyValue assigns a single type to one value and, for temporal values,
// the layout that parsed it. Boolean spellings are checked before numeric
// patterns so flag literals do not count as integers.
func classifyValue(value string, analyzeFormat bool) (kind, layout string) {
	v := strings.TrimSpace(value)

	switch {
	case booleanLiterals[strings.ToLower(v)]:
		return "boolean", ""
	case integerPattern.MatchString(v):
		return "integer", ""
	case decimalPattern.MatchString(v):
		return "number", ""
	}

	if analyzeFormat {
		for _, candidate := range dateLayouts {
			if _, err := time.Parse(candidate.layout, v); err == nil {
				return candidate.kind, candidate.layout
			}
		}
		if emailPattern.MatchString(v) {
			return "email", ""
		}
		if urlPattern.MatchString(v) {
			return "url", ""
		}
	}

	return "string", ""
}
