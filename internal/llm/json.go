package llm

import (
	"encoding/json"
	"strings"

	"github.com/finagent-ai/finagent"
)

// ExtractJSON pulls the first balanced {...} span out of model output.
// Models frequently wrap JSON in prose or markdown fences; the object is
// recovered instead of failing the whole stage.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", finagent.NewLLMParseError("json_extract", nil)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", finagent.NewLLMParseError("json_extract", nil)
}

// UnmarshalObject extracts the first balanced JSON object from text and
// decodes it into v.
func UnmarshalObject(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return finagent.NewLLMParseError("json_decode", err)
	}
	return nil
}
