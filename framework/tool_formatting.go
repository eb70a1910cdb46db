package framework

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderToolsToPrompt converts tool definitions into the call-syntax
// inventory embedded in reasoning prompts.
func RenderToolsToPrompt(tools []Tool) string {
	if len(tools) == 0 {
		return "No tools available."
	}
	var b strings.Builder
	b.WriteString("To call a tool, reply with exactly one line of the form tool_name(param=\"value\", ...).\n")
	b.WriteString("Use triple quotes (\"\"\"...\"\"\") for multi-line content.\n\n")
	for _, tool := range tools {
		params := tool.Parameters()
		names := make([]string, 0, len(params))
		for _, p := range params {
			names = append(names, p.Name)
		}
		b.WriteString(fmt.Sprintf("- %s(%s): %s\n", tool.Name(), strings.Join(names, ", "), tool.Description()))
		for _, p := range params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			b.WriteString(fmt.Sprintf("    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description))
		}
	}
	return b.String()
}

// FormatToolCall renders a call in the canonical syntax the parser accepts,
// with parameters in sorted order.
func FormatToolCall(tool string, params Params) string {
	return tool + "(" + EncodeParams(params) + ")"
}

// EncodeParams serialises params so that decoding the output yields the
// same map. Strings are always quoted; other kinds are written bare.
func EncodeParams(params Params) string {
	parts := make([]string, 0, len(params))
	for _, key := range params.Keys() {
		parts = append(parts, key+"="+encodeValue(params[key]))
	}
	return strings.Join(parts, ", ")
}

func encodeValue(v Value) string {
	switch v.Kind() {
	case KindInt, KindBool:
		return v.Text()
	case KindFloat:
		f, _ := v.AsFloat()
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case KindList:
		items, _ := v.AsList()
		quoted := make([]string, 0, len(items))
		for _, item := range items {
			quoted = append(quoted, quoteString(item))
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return quoteString(v.Text())
	}
}

func quoteString(s string) string {
	switch {
	case !strings.Contains(s, `"`) && !strings.HasSuffix(s, `\`):
		return `"` + s + `"`
	case !strings.Contains(s, `'`) && !strings.HasSuffix(s, `\`):
		return `'` + s + `'`
	case !strings.Contains(s, `"""`) && strings.TrimSpace(s) == s && !strings.HasSuffix(s, `"`):
		return `"""` + s + `"""`
	default:
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
}
