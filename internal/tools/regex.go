package tools

import (
	"context"
	"fmt"
	"regexp"
	"slices"
)

// regexTester compiles a pattern and reports its matches against each test
// string. When expected_matches is supplied, each test string's matches are
// compared against the expectation at the same index and an accuracy figure
// is included.
func regexTester(_ context.Context, args map[string]any) (any, error) {
	pattern := stringArg(args, "regex_pattern")
	testStrings := stringSliceArg(args, "test_strings")
	expected := stringSliceArg(args, "expected_matches")

	result := map[string]any{
		"regex_pattern": pattern,
		"test_results":  []any{},
		"all_passed":    true,
		"total_tests":   len(testStrings),
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		result["error"] = fmt.Sprintf("invalid regex pattern: %v", err)
		result["all_passed"] = false
		return result, nil
	}

	testResults := make([]map[string]any, 0, len(testStrings))
	matchedCount := 0
	correctCount := 0

	for i, testString := range testStrings {
		matches := patternMatches(re, testString)
		if len(matches) > 0 {
			matchedCount++
		}

		entry := map[string]any{
			"test_string": testString,
			"matches":     matches,
			"matched":     len(matches) > 0,
			"match_count": len(matches),
		}

		if i < len(expected) {
			correct := slices.Equal(matches, []string{expected[i]})
			entry["expected"] = expected[i]
			entry["correct"] = correct
			if correct {
				correctCount++
			} else {
				result["all_passed"] = false
			}
		}

		testResults = append(testResults, entry)
	}

	result["test_results"] = testResults
	result["matched_count"] = matchedCount
	if len(testStrings) > 0 {
		result["match_rate"] = round4(float64(matchedCount) / float64(len(testStrings)))
	} else {
		result["match_rate"] = 0.0
	}
	if len(expected) > 0 && len(testStrings) > 0 {
		result["correct_count"] = correctCount
		result["accuracy"] = round4(float64(correctCount) / float64(len(testStrings)))
	}

	return result, nil
}

// patternMatches collects every match of the pattern in the sample. Patterns
// with capturing groups report the first group of each match, so extraction
// patterns return the extracted text rather than the full match.
func patternMatches(re *regexp.Regexp, sample string) []string {
	if re.NumSubexp() == 0 {
		matches := re.FindAllString(sample, -1)
		if matches == nil {
			return []string{}
		}
		return matches
	}

	groups := re.FindAllStringSubmatch(sample, -1)
	matches := make([]string, 0, len(groups))
	for _, group := range groups {
		matches = append(matches, group[1])
	}
	return matches
}
