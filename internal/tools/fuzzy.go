package tools

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"
)

// fuzzyMatchDefaults for the optional ranking arguments.
const (
	defaultFuzzyThreshold  = 0.6
	defaultFuzzyMaxResults = 5
)

// fuzzyMatchEntry is one ranked candidate in a fuzzy_match result.
type fuzzyMatchEntry struct {
	Candidate  string  `json:"candidate"`
	Similarity float64 `json:"similarity"`
	ExactMatch bool    `json:"exact_match"`
}

// fuzzyMatch ranks candidate strings by similarity to a value. Matching is
// case-insensitive; candidates at or above the threshold are returned in
// descending similarity order, capped at max_results.
func fuzzyMatch(_ context.Context, args map[string]any) (any, error) {
	value := stringArg(args, "value")
	candidates := stringSliceArg(args, "candidates")
	threshold := floatArg(args, "threshold", defaultFuzzyThreshold)
	maxResults := intArg(args, "max_results", defaultFuzzyMaxResults)

	if value == "" || len(candidates) == 0 {
		return map[string]any{
			"value":   value,
			"matches": []any{},
			"found":   false,
			"message": "value or candidates list is empty",
		}, nil
	}

	matches := make([]fuzzyMatchEntry, 0, len(candidates))
	for _, candidate := range candidates {
		similarity := similarityRatio(value, candidate)
		if similarity >= threshold {
			matches = append(matches, fuzzyMatchEntry{
				Candidate:  candidate,
				Similarity: round4(similarity),
				ExactMatch: similarity == 1.0,
			})
		}
	}

	// Stable sort keeps candidate order deterministic among equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if maxResults >= 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	result := map[string]any{
		"value":            value,
		"threshold":        threshold,
		"matches":          matches,
		"found":            len(matches) > 0,
		"total_candidates": len(candidates),
	}
	if len(matches) > 0 {
		result["best_match"] = matches[0]
	} else {
		result["best_match"] = nil
	}
	return result, nil
}

// similarityRatio computes a normalized Levenshtein ratio between two strings
// after lowercasing: 1 minus the edit distance over the longer length. Two
// empty strings are identical.
func similarityRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the edit distance between two strings over runes
// using the two-row dynamic programming form.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
