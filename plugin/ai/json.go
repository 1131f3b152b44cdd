package ai

import (
	"encoding/json"
	"strings"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
)

// DecodeJSON extracts the first JSON object from a model reply and decodes it into v.
// Models often wrap JSON in markdown fences or prose; both are tolerated.
// A bare "null" reply leaves v untouched and reports found=false.
func DecodeJSON(text string, v any) (found bool, err error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "null" {
		return false, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return false, funnelerrors.LLMMalformedResponse("no JSON object in reply", nil)
	}

	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return false, funnelerrors.LLMMalformedResponse("invalid JSON in reply", err)
	}
	return true, nil
}
