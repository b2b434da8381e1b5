// Package scoring evaluates sealed experiment results against a task's
// expected answer. Scoring is strict: the model's final output must contain
// a JSON object, and every field is compared by exact value after JSON
// normalization. Format adherence is part of what a benchmark measures, so
// output with no parseable JSON object scores zero rather than erroring.
package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrNoExpectation indicates a scoring attempt against a task that declares
// no expected fields. Callers decide whether a task is scorable before
// calling Score.
var ErrNoExpectation = errors.New("task declares no expected answer")

// FieldVerdict is the comparison outcome for one field of the answer.
type FieldVerdict struct {
	// Field is the key under comparison, drawn from the union of expected
	// and produced keys.
	Field string `json:"field"`

	// Expected and Actual are the normalized values on each side; a nil
	// value means the side lacks the field entirely.
	Expected any `json:"expected,omitempty"`
	Actual   any `json:"actual,omitempty"`

	// Match reports strict equality of the two sides.
	Match bool `json:"match"`
}

// Evaluation is the scored comparison of one final output against one
// expected answer.
type Evaluation struct {
	// Parsed reports whether a JSON object was found in the output.
	Parsed bool `json:"parsed"`

	// Accuracy is Matched/Total in [0, 1]. Unparseable output scores zero.
	Accuracy float64 `json:"accuracy"`

	// Matched and Total count exact field matches over the union of keys
	// from both sides. Extra fields the model invented count against it.
	Matched int `json:"matched"`
	Total   int `json:"total"`

	// Fields lists per-field verdicts sorted by field name.
	Fields []FieldVerdict `json:"fields,omitempty"`

	// Diagnostic explains a zero score when no comparison happened.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Score compares a model's final output against the expected answer.
//
// The first JSON object embedded in the output is extracted (code fences and
// surrounding prose are tolerated), both sides are normalized through JSON
// encoding so numeric and nested-structure representations agree, and every
// field in the union of keys is compared strictly. Output containing no JSON
// object yields a zero-accuracy evaluation with a diagnostic, not an error;
// errors are reserved for unscorable inputs.
func Score(finalOutput string, expected map[string]any) (*Evaluation, error) {
	if len(expected) == 0 {
		return nil, ErrNoExpectation
	}

	want, err := normalizeMap(expected)
	if err != nil {
		return nil, fmt.Errorf("normalize expected answer: %w", err)
	}

	got, diagnostic := ExtractObject(finalOutput)
	if got == nil {
		eval := &Evaluation{
			Total:      len(want),
			Diagnostic: diagnostic,
		}
		for _, key := range sortedKeys(want) {
			eval.Fields = append(eval.Fields, FieldVerdict{Field: key, Expected: want[key]})
		}
		return eval, nil
	}

	return compare(got, want), nil
}

// compare scores two normalized objects over the union of their keys.
func compare(got, want map[string]any) *Evaluation {
	union := make(map[string]struct{}, len(got)+len(want))
	for key := range got {
		union[key] = struct{}{}
	}
	for key := range want {
		union[key] = struct{}{}
	}

	keys := make([]string, 0, len(union))
	for key := range union {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	eval := &Evaluation{
		Parsed: true,
		Total:  len(keys),
		Fields: make([]FieldVerdict, 0, len(keys)),
	}
	for _, key := range keys {
		verdict := FieldVerdict{
			Field:    key,
			Expected: want[key],
			Actual:   got[key],
			Match:    reflect.DeepEqual(got[key], want[key]),
		}
		if verdict.Match {
			eval.Matched++
		}
		eval.Fields = append(eval.Fields, verdict)
	}
	if eval.Total > 0 {
		eval.Accuracy = float64(eval.Matched) / float64(eval.Total)
	}
	return eval
}

// normalizeMap round-trips a map through JSON so YAML-typed expected values
// (int, nested map[string]any) compare equal to unmarshaled model output
// (float64, map[string]any all the way down).
func normalizeMap(value map[string]any) (map[string]any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
