package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON implements the JSON extraction policy from spec §4.5:
// try parsing the entire response; on failure, slice from the first
// '{' to the last '}' and try again; on failure, return ok=false so
// the caller can fall back to a raw-text wrapper.
func ExtractJSON(response string, out any) bool {
	trimmed := strings.TrimSpace(response)
	if json.Unmarshal([]byte(trimmed), out) == nil {
		return true
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start == -1 || end == -1 || end <= start {
		return false
	}

	return json.Unmarshal([]byte(trimmed[start:end+1]), out) == nil
}
