package translator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeFenceOpenRe  = regexp.MustCompile("(?s)```(?:json)?\\s*")
	codeFenceCloseRe = regexp.MustCompile("(?s)```\\s*$")
)

// extractJSONArray strips markdown code fences if present, locates the
// outermost '[...]', and parses it as JSON, per spec.md §4.6 "Response
// parsing." It generalizes the teacher's ExtractJSON (which locates the
// outermost '{...}' for single-object responses) to array responses.
func extractJSONArray(response string) (string, error) {
	response = strings.TrimSpace(response)
	response = codeFenceOpenRe.ReplaceAllString(response, "")
	response = codeFenceCloseRe.ReplaceAllString(response, "")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("translator: no JSON array found in response")
	}

	arr := response[start : end+1]

	var js json.RawMessage
	if err := json.Unmarshal([]byte(arr), &js); err != nil {
		return "", fmt.Errorf("translator: extracted text is not valid JSON: %w", err)
	}

	return arr, nil
}
