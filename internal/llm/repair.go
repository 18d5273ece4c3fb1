package llm

import (
	"encoding/json"
	"strings"
)

// RepairParse extracts a JSON object from model output that may not honor the
// output contract. It tries, in order: a strict parse of the trimmed text, the
// contents of a fenced code block, and the substring spanning the first '{'
// through the last '}'. It returns nil when no strategy yields an object;
// callers decide whether that is an error or a narrative-only answer.
func RepairParse(raw string) map[string]any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if obj := tryParseObject(trimmed); obj != nil {
		return obj
	}

	if fenced := extractFencedBlock(trimmed); fenced != "" {
		if obj := tryParseObject(fenced); obj != nil {
			return obj
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if obj := tryParseObject(trimmed[start : end+1]); obj != nil {
			return obj
		}
	}

	return nil
}

func tryParseObject(text string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil
	}
	return obj
}

func extractFencedBlock(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return ""
	}
	rest := text[open+3:]
	// Skip a language tag such as ```json.
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		first := strings.TrimSpace(rest[:nl])
		if first != "" && !strings.HasPrefix(first, "{") {
			rest = rest[nl+1:]
		} else if first == "" {
			rest = rest[nl+1:]
		}
	}
	close := strings.Index(rest, "```")
	if close < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:close])
}
