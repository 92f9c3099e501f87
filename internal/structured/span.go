package structured

import "strings"

// ExtractSpan returns the outermost JSON object or array in raw, dropping code fences
// and any prose before or after it. ok is false when no candidate span exists.
func ExtractSpan(raw string) (string, bool) {
	text := stripFences(raw)

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", false
	}
	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	if end, ok := balancedEnd(text, start); ok {
		return text[start : end+1], true
	}

	// Unbalanced under string-aware scanning, which is what a stray quote does.
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// stripFences keeps the body of the first fenced block when one is present.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	open := strings.Index(text, "```")
	if open == -1 {
		return text
	}
	body := text[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		// Drop the info string, e.g. ```json.
		if info := strings.TrimSpace(body[:nl]); !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	if strings.ContainsAny(body, "{[") {
		return strings.TrimSpace(body)
	}
	return text
}

// balancedEnd scans from start honoring string literals and returns the index
// of the bracket that closes the value opened at start.
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}
