package framework

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrToolNotFound is returned when a lookup names an unregistered tool.
var ErrToolNotFound = errors.New("tool not found")

// Tool defines capabilities accessible to the agent. Each implementation can
// wrap anything from a filesystem helper to a git subprocess. The metadata
// doubles as a schema the LLM can reason about when deciding which tool to
// call, and that the parser validates decoded arguments against.
type Tool interface {
	Name() string
	Description() string
	Category() string
	Parameters() []ToolParameter
	Execute(ctx context.Context, params Params) (*ToolResult, error)
	IsAvailable(ctx context.Context) bool
}

// ToolParameter describes an argument the tool accepts.
type ToolParameter struct {
	Name        string
	Type        ValueKind
	Description string
	Required    bool
	Default     *Value
}

// ToolResult is returned by every tool execution. Success is the only
// authority on whether the call worked; Message is for humans.
type ToolResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(message string, data map[string]interface{}) *ToolResult {
	return &ToolResult{Success: true, Message: message, Data: data}
}

// Failed builds a failed result. The message is mirrored into Error.
func Failed(format string, args ...interface{}) *ToolResult {
	msg := fmt.Sprintf(format, args...)
	return &ToolResult{Success: false, Message: msg, Error: msg}
}

// ToolRegistry maintains tools and ensures metadata lookups are fast. The
// registry is built once at startup and handed to the agent explicitly.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry builds a registry instance.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// Get fetches a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns all registered tools sorted by name.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}

// Names returns the registered tool names as a set.
func (r *ToolRegistry) Names() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[string]struct{}, len(r.tools))
	for name := range r.tools {
		names[name] = struct{}{}
	}
	return names
}

// Conform checks params against the tool schema. Missing required arguments
// are reported as an error; present values are converted to the declared
// kind when the conversion is lossless, and defaults are filled in.
func Conform(tool Tool, params Params) (Params, error) {
	out := params.Clone()
	var missing []string
	for _, p := range tool.Parameters() {
		v, ok := out[p.Name]
		if !ok {
			if p.Default != nil {
				out[p.Name] = *p.Default
				continue
			}
			if p.Required {
				missing = append(missing, p.Name)
			}
			continue
		}
		converted, err := convertValue(v, p.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: parameter %s: %w", tool.Name(), p.Name, err)
		}
		out[p.Name] = converted
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing required parameter(s): %s", tool.Name(), strings.Join(missing, ", "))
	}
	return out, nil
}

func convertValue(v Value, kind ValueKind) (Value, error) {
	if v.Kind() == kind {
		return v, nil
	}
	switch kind {
	case KindString:
		return StringValue(v.Text()), nil
	case KindInt:
		if i, ok := v.AsInt(); ok {
			return IntValue(i), nil
		}
		if i, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 10, 64); err == nil {
			return IntValue(i), nil
		}
	case KindFloat:
		if f, ok := v.AsFloat(); ok {
			return FloatValue(f), nil
		}
	case KindBool:
		if b, err := strconv.ParseBool(strings.TrimSpace(v.Text())); err == nil {
			return BoolValue(b), nil
		}
	case KindList:
		if s, ok := v.AsString(); ok {
			if s == "" {
				return ListValue(nil), nil
			}
			return ListValue([]string{s}), nil
		}
	}
	return Value{}, fmt.Errorf("expected %s, got %s", kind, v.Kind())
}

// Param is shorthand for building schema entries.
func Param(name string, kind ValueKind, required bool, description string) ToolParameter {
	return ToolParameter{Name: name, Type: kind, Required: required, Description: description}
}

// WithDefault returns a copy of p carrying a default value.
func (p ToolParameter) WithDefault(v Value) ToolParameter {
	p.Default = &v
	return p
}
