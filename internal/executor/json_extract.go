package executor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches markdown code fences with optional language tag.
// Captures: (1) optional language, (2) content.
var fencePattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// extractJSON pulls a JSON document out of a model reply that may be
// wrapped in markdown. Fenced ```json blocks are preferred; a bare
// object or array in the text is the fallback.
func extractJSON(reply string) (string, error) {
	if doc, found := jsonFromFence(reply); found {
		return doc, nil
	}
	if doc, found := jsonFromText(reply); found {
		return doc, nil
	}
	return "", fmt.Errorf("no valid JSON document found in reply")
}

func jsonFromFence(reply string) (string, bool) {
	for _, match := range fencePattern.FindAllStringSubmatch(reply, -1) {
		if len(match) < 3 {
			continue
		}
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if looksLikeJSON(content) && json.Valid([]byte(content)) {
			return content, true
		}
	}
	return "", false
}

// jsonFromText scans for the outermost balanced {...} or [...] in the
// reply, respecting string literals and escapes.
func jsonFromText(reply string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(reply); i++ {
		if reply[i] == '{' || reply[i] == '[' {
			start = i
			open = reply[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(reply); i++ {
		c := reply[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				candidate := reply[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
