package parse

import (
	"math"
	"strconv"
	"strings"

	"github.com/lexcodex/codebuddy/framework"
)

// synonyms maps spellings models commonly use to canonical parameter names.
var synonyms = map[string]string{
	"folder_path":    "folderpath",
	"directory_path": "folderpath",
	"dir_path":       "folderpath",
	"folder_name":    "folderpath",
	"directory_name": "folderpath",
	"directory":      "folderpath",
	"dir":            "folderpath",
	"folder":         "folderpath",
	"path":           "folderpath",
	"file_path":      "filepath",
	"filename":       "filepath",
	"file_name":      "filepath",
	"file":           "filepath",
	"cmd":            "command",
	"shell_command":  "command",
	"file_content":   "content",
	"code":           "content",
	"text":           "content",
}

// Canonical returns the canonical spelling of a parameter name.
func Canonical(key string) string {
	if c, ok := synonyms[key]; ok {
		return c
	}
	return key
}

type rawParam struct {
	key    string
	value  string
	quoted bool
}

// Decode extracts parameters from a loosely formatted argument list. It never
// fails: unrecognisable fragments are skipped.
//
// Recognised forms, in priority order at each key: triple-quoted values,
// single- or double-quoted values, bracketed lists, and bare tokens running
// to the next top-level comma. Quoted values stay strings; bare values are
// coerced to bool, list, int or float when they look like one. If no
// key=value pair is present the text is read positionally.
func Decode(args string) framework.Params {
	pairs, positional := tokenize(args)
	if len(pairs) == 0 {
		return positionalParams(positional)
	}
	explicit := make(framework.Params, len(pairs))
	for _, p := range pairs {
		explicit[p.key] = p.toValue()
	}
	out := make(framework.Params, len(explicit))
	for k, v := range explicit {
		if _, isSynonym := synonyms[k]; !isSynonym {
			out[k] = v
		}
	}
	// Synonyms apply in text order and never shadow a canonical key that was
	// written explicitly.
	for _, p := range pairs {
		canon, ok := synonyms[p.key]
		if !ok {
			continue
		}
		if _, written := explicit[canon]; written {
			continue
		}
		out[canon] = explicit[p.key]
	}
	return out
}

func (p rawParam) toValue() framework.Value {
	if p.quoted {
		return framework.StringValue(p.value)
	}
	return Coerce(p.value)
}

// Coerce converts a bare token into the most specific Value it represents.
func Coerce(raw string) framework.Value {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "true":
		return framework.BoolValue(true)
	case "false":
		return framework.BoolValue(false)
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return framework.ListValue(splitList(s[1 : len(s)-1]))
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return framework.IntValue(i)
	}
	if strings.ContainsAny(s, "0123456789") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return framework.FloatValue(f)
		}
	}
	return framework.StringValue(s)
}

func splitList(body string) []string {
	items := []string{}
	for _, part := range splitTopLevel(body) {
		part = stripQuotes(strings.TrimSpace(part))
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

func stripQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func positionalParams(tokens []string) framework.Params {
	out := framework.Params{}
	var values []string
	for _, tok := range tokens {
		tok = stripQuotes(strings.TrimSpace(tok))
		if tok != "" {
			values = append(values, tok)
		}
	}
	if len(values) == 0 {
		return out
	}
	first := values[0]
	if strings.ContainsAny(first, `./\`) {
		out["filepath"] = framework.StringValue(first)
	} else {
		out["folderpath"] = framework.StringValue(first)
	}
	if len(values) > 1 {
		out["content"] = framework.StringValue(values[1])
	}
	return out
}

// tokenize walks the argument text once, left to right. Spans consumed by a
// quoted value are never re-read as keys, so commas and parentheses inside
// quotes cannot split parameters.
func tokenize(args string) ([]rawParam, []string) {
	var pairs []rawParam
	var positional []string
	i := 0
	n := len(args)
	for i < n {
		for i < n && (isSpace(args[i]) || args[i] == ',') {
			i++
		}
		if i >= n {
			break
		}
		key, valueStart, ok := readKey(args, i)
		if !ok {
			end := nextComma(args, i)
			positional = append(positional, args[i:end])
			i = end
			continue
		}
		value, quoted, end := readValue(args, valueStart)
		pairs = append(pairs, rawParam{key: key, value: value, quoted: quoted})
		i = nextComma(args, end)
	}
	return pairs, positional
}

// readKey matches `identifier\s*=` at i and returns the key and the index of
// the first value byte.
func readKey(s string, i int) (string, int, bool) {
	j := i
	for j < len(s) && isIdentByte(s[j]) {
		j++
	}
	if j == i || isDigit(s[i]) {
		return "", 0, false
	}
	key := s[i:j]
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '=' || (j+1 < len(s) && s[j+1] == '=') {
		return "", 0, false
	}
	j++
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	return key, j, true
}

// readValue reads one value starting at i. It returns the value text, whether
// it was quoted, and the index just past it.
func readValue(s string, i int) (string, bool, int) {
	if i >= len(s) {
		return "", false, i
	}
	switch s[i] {
	case '"', '\'':
		q := s[i]
		triple := strings.Repeat(string(q), 3)
		if strings.HasPrefix(s[i:], triple) {
			body := s[i+3:]
			end := strings.Index(body, triple)
			if end < 0 {
				return strings.TrimSpace(body), true, len(s)
			}
			return strings.TrimSpace(body[:end]), true, i + 3 + end + 3
		}
		if end := skipQuoted(s, i); end > 0 {
			body := s[i+1 : end]
			body = strings.ReplaceAll(body, `\`+string(q), string(q))
			return body, true, end + 1
		}
	case '[':
		if end := matchBracket(s, i); end > 0 {
			return s[i : end+1], false, end + 1
		}
	}
	end := nextComma(s, i)
	return strings.TrimSpace(s[i:end]), false, end
}

func matchBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			end := skipQuoted(s, i)
			if end < 0 {
				return -1
			}
			i = end
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// nextComma returns the index of the next comma at nesting depth zero and
// outside quotes, or len(s).
func nextComma(s string, i int) int {
	depth := 0
	for ; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			if end := skipQuoted(s, i); end > 0 {
				i = end
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return len(s)
}

func splitTopLevel(s string) []string {
	var parts []string
	start := 0
	for start <= len(s) {
		end := nextComma(s, start)
		parts = append(parts, s[start:end])
		start = end + 1
	}
	return parts
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
