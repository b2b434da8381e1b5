package scoring

import (
	"encoding/json"
	"strings"
)

// ExtractObject finds the first decodable JSON object embedded in model
// output. Markdown code fences and surrounding prose are tolerated: the
// scanner tries each "{" in turn and a streaming decode stops at the end of
// the first complete object, so trailing text never interferes. It returns
// nil and a diagnostic when the output holds no decodable object.
func ExtractObject(output string) (map[string]any, string) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil, "output is empty"
	}

	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(trimmed[i:]))
		var obj map[string]any
		if err := decoder.Decode(&obj); err == nil {
			return obj, ""
		}
	}

	if strings.Contains(trimmed, "{") {
		return nil, "output contains no decodable JSON object"
	}
	return nil, "output contains no JSON object"
}
