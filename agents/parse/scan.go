package parse

import "strings"

// call is a syntactic `identifier(arguments)` occurrence in model text.
type call struct {
	Name  string
	Args  string
	Start int
	End   int // index just past the closing paren
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// matchClose returns the index of the paren closing the one at open, honouring
// quotes, or -1 when the text ends first. Parentheses inside quoted spans do
// not count towards depth.
func matchClose(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		c := text[i]
		switch c {
		case '"', '\'':
			end := skipQuoted(text, i)
			if end < 0 {
				return -1
			}
			i = end
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipQuoted returns the index of the last byte of the quoted span starting
// at i, or -1 if it never closes. Triple quotes are recognised first; inside
// single quotes a backslash escapes the opener.
func skipQuoted(text string, i int) int {
	q := text[i]
	triple := strings.Repeat(string(q), 3)
	if strings.HasPrefix(text[i:], triple) {
		end := strings.Index(text[i+3:], triple)
		if end < 0 {
			return -1
		}
		return i + 3 + end + 2
	}
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			if j+1 < len(text) && text[j+1] == q {
				j++
			}
		case q:
			return j
		}
	}
	return -1
}

// scanCalls finds every balanced call in text, ordered by start offset.
// Quotes only matter inside argument lists: prose apostrophes outside a call
// must not hide the call that follows them. Calls nested inside another
// call's arguments are reported too.
func scanCalls(text string) []call {
	var calls []call
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !isIdentByte(c) || (i > 0 && isIdentByte(text[i-1])) {
			continue
		}
		j := i
		for j < len(text) && isIdentByte(text[j]) {
			j++
		}
		if j >= len(text) || text[j] != '(' || isDigit(text[i]) {
			i = j - 1
			continue
		}
		closing := matchClose(text, j)
		if closing < 0 {
			i = j
			continue
		}
		calls = append(calls, call{
			Name:  text[i:j],
			Args:  text[j+1 : closing],
			Start: i,
			End:   closing + 1,
		})
		i = j
	}
	return calls
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// wholeCall reports whether the trimmed text is a single call from start to
// end. When quotes are unbalanced it falls back to the greedy reading: the
// name, then everything up to the final ')'.
func wholeCall(text string) (call, bool) {
	j := 0
	for j < len(text) && isIdentByte(text[j]) {
		j++
	}
	if j == 0 || j >= len(text) || text[j] != '(' || isDigit(text[0]) {
		return call{}, false
	}
	if !strings.HasSuffix(text, ")") {
		return call{}, false
	}
	closing := matchClose(text, j)
	switch {
	case closing == len(text)-1:
	case closing < 0:
		closing = len(text) - 1
	default:
		return call{}, false
	}
	return call{Name: text[:j], Args: text[j+1 : closing], Start: 0, End: len(text)}, true
}
