// Package parse turns free-form model output into a framework.Plan.
//
// Strategies run in a fixed order and the first that yields a call to a
// known tool wins:
//
//  1. whole-match: the entire trimmed text is `tool(args)`
//  2. embedded scan: the leftmost balanced `tool(args)` naming a known tool
//  3. JSON block: a {"tool": ..., "arguments": {...}} object
//  4. intent inference over the user's original request
//  5. conversation: the raw text itself
package parse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/lexcodex/codebuddy/framework"
)

// Parse never fails: every input maps to exactly one Plan variant.
func Parse(raw string, known map[string]struct{}, userInput string) framework.Plan {
	return (&Parser{Known: known}).Parse(raw, userInput)
}

// Parser carries the tool name set and optional toggles. The zero value
// parses with no known tools and intent inference enabled.
type Parser struct {
	Known map[string]struct{}
	// DisableIntent skips natural-language inference.
	DisableIntent bool
	// Registry, when set, validates parameters against tool schemas.
	Registry *framework.ToolRegistry
}

// NewParser builds a parser bound to the registry's tool set.
func NewParser(registry *framework.ToolRegistry) *Parser {
	return &Parser{Known: registry.Names(), Registry: registry}
}

// Parse interprets raw model text. userInput is the request that prompted
// it and is only consulted by intent inference.
func (p *Parser) Parse(raw, userInput string) framework.Plan {
	plan := p.parse(raw, userInput)
	if plan.Kind != framework.PlanTool || p.Registry == nil {
		return plan
	}
	tool, ok := p.Registry.Get(plan.Tool)
	if !ok {
		return framework.ConversationPlan(raw)
	}
	conformed, err := framework.Conform(tool, adaptPathKeys(tool, plan.Params))
	if err != nil {
		return framework.ErrorPlan("%v", err)
	}
	plan.Params = conformed
	return plan
}

func (p *Parser) parse(raw, userInput string) framework.Plan {
	text := strings.TrimSpace(raw)

	if c, ok := wholeCall(text); ok && p.known(c.Name) {
		return framework.ToolPlan(c.Name, Decode(c.Args), framework.StrategyWholeMatch)
	}
	for _, c := range scanCalls(text) {
		if p.known(c.Name) {
			return framework.ToolPlan(c.Name, Decode(c.Args), framework.StrategyEmbedded)
		}
	}
	if plan, ok := p.jsonCall(text); ok {
		return plan
	}
	if !p.DisableIntent {
		if plan, ok := InferIntent(userInput, p.Known); ok {
			return plan
		}
	}
	if text == "" {
		return framework.ErrorPlan("model returned an empty response")
	}
	return framework.ConversationPlan(raw)
}

func (p *Parser) known(name string) bool {
	_, ok := p.Known[name]
	return ok
}

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// jsonCall accepts the JSON tool-call shape some models emit instead of
// call syntax, either fenced or as the whole response.
func (p *Parser) jsonCall(text string) (framework.Plan, bool) {
	candidates := []string{}
	for _, m := range jsonBlockRegex.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		candidates = append(candidates, text)
	}
	for _, candidate := range candidates {
		var rawCall struct {
			Tool      string                 `json:"tool"`
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
			Args      map[string]interface{} `json:"args"`
		}
		if err := json.Unmarshal([]byte(candidate), &rawCall); err != nil {
			continue
		}
		name := rawCall.Tool
		if name == "" {
			name = rawCall.Name
		}
		if !p.known(name) {
			continue
		}
		args := rawCall.Arguments
		if args == nil {
			args = rawCall.Args
		}
		params, err := framework.ParamsFromMap(args)
		if err != nil {
			continue
		}
		return framework.ToolPlan(name, normalize(params), framework.StrategyJSON), true
	}
	return framework.Plan{}, false
}

// normalize applies the synonym table to an already typed map.
func normalize(in framework.Params) framework.Params {
	out := make(framework.Params, len(in))
	for _, k := range in.Keys() {
		if _, ok := synonyms[k]; !ok {
			out[k] = in[k]
		}
	}
	for _, k := range in.Keys() {
		canon, ok := synonyms[k]
		if !ok {
			continue
		}
		if _, written := in[canon]; !written {
			out[canon] = in[k]
		}
	}
	return out
}

// adaptPathKeys swaps filepath and folderpath when the tool only declares
// the other one. The synonym table maps the generic `path` to folderpath,
// which file tools would otherwise reject.
func adaptPathKeys(tool framework.Tool, params framework.Params) framework.Params {
	declared := map[string]bool{}
	for _, p := range tool.Parameters() {
		declared[p.Name] = true
	}
	out := params.Clone()
	swap := func(from, to string) {
		if v, ok := out[from]; ok && !declared[from] && declared[to] && !out.Has(to) {
			out[to] = v
			delete(out, from)
		}
	}
	swap("folderpath", "filepath")
	swap("filepath", "folderpath")
	return out
}
