package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeResponse unmarshals a chat completion into out, tolerating markdown
// fences and prose around the JSON object. Models in JSON mode usually return
// clean output, but retried calls occasionally wrap it.
func decodeResponse(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}
	cleaned := cleanJSON(content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return eris.Wrap(err, "pipeline: decode model response")
	}
	return nil
}

// cleanJSON strips markdown fences and trims to the outermost JSON object.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
