package structured

import "strings"

type position int

const (
	atKey position = iota
	atValue
	afterValue
)

// frame is one open object or array.
type frame struct {
	array bool
	pos   position
}

// stringRole tells what may legally follow the closing quote of a string.
type stringRole int

const (
	roleTop stringRole = iota
	roleKey
	roleObjectValue
	roleArrayValue
)

// EscapeInnerQuotes escapes double quotes that sit inside strings without
// terminating them. Open objects and arrays are tracked so a quote only closes
// a string when the next significant characters can follow that kind of string:
// a key needs ':', an object value needs '}' or ',' plus the next key's quote,
// an array element needs ']' or ',' plus any value.
// The returned text differs from the input only by inserted backslashes.
func EscapeInnerQuotes(span string) (string, bool) {
	var b strings.Builder
	b.Grow(len(span) + 8)

	var (
		stack   []frame
		role    stringRole
		inStr   bool
		escaped bool
		changed bool
	)
	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return &stack[len(stack)-1]
	}
	valueDone := func() {
		if f := top(); f != nil && !f.array && f.pos == atValue {
			f.pos = afterValue
		}
	}

	for i := 0; i < len(span); i++ {
		c := span[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				if closesString(span, i+1, role) {
					inStr = false
					if role == roleObjectValue {
						valueDone()
					}
				} else {
					b.WriteByte('\\')
					changed = true
				}
			}
			b.WriteByte(c)
			continue
		}

		switch c {
		case '"':
			inStr = true
			switch f := top(); {
			case f == nil:
				role = roleTop
			case f.array:
				role = roleArrayValue
			case f.pos == atValue:
				role = roleObjectValue
			default:
				role = roleKey
			}
		case '{', '[':
			valueDone()
			stack = append(stack, frame{array: c == '['})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ':':
			if f := top(); f != nil && !f.array {
				f.pos = atValue
			}
		case ',':
			if f := top(); f != nil && !f.array {
				f.pos = atKey
			}
		case ' ', '\t', '\n', '\r':
		default:
			valueDone()
		}
		b.WriteByte(c)
	}
	return b.String(), changed
}

// closesString decides whether a quote followed by span[from:] ends a string with the given role.
func closesString(span string, from int, role stringRole) bool {
	j := skipSpace(span, from)
	if j >= len(span) {
		return true
	}
	switch role {
	case roleKey:
		return span[j] == ':'
	case roleObjectValue:
		switch span[j] {
		case '}':
			return true
		case ',':
			k := skipSpace(span, j+1)
			return k < len(span) && span[k] == '"'
		}
		return false
	case roleArrayValue:
		switch span[j] {
		case ']':
			return true
		case ',':
			return startsValue(span, skipSpace(span, j+1))
		}
		return false
	default:
		return false
	}
}

// startsValue reports whether a JSON value or a closing bracket begins at i.
func startsValue(span string, i int) bool {
	if i >= len(span) {
		return false
	}
	switch c := span[i]; {
	case c == '"', c == '{', c == '[', c == '}', c == ']', c == '-':
		return true
	case c >= '0' && c <= '9':
		return true
	}
	for _, lit := range []string{"true", "false", "null"} {
		if strings.HasPrefix(span[i:], lit) {
			end := skipSpace(span, i+len(lit))
			if end >= len(span) || strings.IndexByte(",}]", span[end]) != -1 {
				return true
			}
		}
	}
	return false
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// onlyEscapesAdded verifies that repaired equals original plus backslashes before quotes.
func onlyEscapesAdded(original, repaired string) bool {
	i, j := 0, 0
	for i < len(original) && j < len(repaired) {
		if original[i] == repaired[j] {
			i++
			j++
			continue
		}
		if repaired[j] == '\\' && j+1 < len(repaired) && repaired[j+1] == '"' && original[i] == '"' {
			j++
			continue
		}
		return false
	}
	return i == len(original) && j == len(repaired)
}
