package dialogue

import (
	"encoding/json"

	"github.com/gosuda/callbridge/internal/agent"
)

// Extractor pulls reply text out of a backend response.
type Extractor func(*agent.Response) (string, bool)

// DefaultExtractors is the order in which reply text is looked for.
func DefaultExtractors() []Extractor {
	return []Extractor{
		OutputText,
		TopLevelField("text"),
		TopLevelField("response"),
	}
}

// OutputText returns the first non-empty output_text part of the first
// message item that has one.
func OutputText(resp *agent.Response) (string, bool) {
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" && part.Text != "" {
				return part.Text, true
			}
		}
	}
	return "", false
}

// TopLevelField matches when the named top-level field is a non-empty JSON
// string. Objects and other types are skipped.
func TopLevelField(name string) Extractor {
	return func(resp *agent.Response) (string, bool) {
		var raw json.RawMessage
		switch name {
		case "text":
			raw = resp.Text
		case "response":
			raw = resp.Response
		default:
			return "", false
		}
		if len(raw) == 0 {
			return "", false
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	}
}

// Extract runs extractors in order and returns the first match.
func Extract(resp *agent.Response, extractors []Extractor) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, fn := range extractors {
		if text, ok := fn(resp); ok {
			return text, true
		}
	}
	return "", false
}
