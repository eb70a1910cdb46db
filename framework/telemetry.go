package framework

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType categorizes telemetry events.
type EventType string

const (
	EventTurnStart      EventType = "turn_start"
	EventTurnFinish     EventType = "turn_finish"
	EventLLMCall        EventType = "llm_call"
	EventPlanParsed     EventType = "plan_parsed"
	EventRiskAssessed   EventType = "risk_assessed"
	EventApprovalResult EventType = "approval_decision"
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
)

// Event captures structured telemetry data.
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	TurnID    string                 `json:"turn_id,omitempty"`
	Iteration int                    `json:"iteration,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Telemetry captures execution traces emitted by the agent loop. Tests
// typically swap in a recording sink.
type Telemetry interface {
	Emit(event Event)
}

// MultiplexTelemetry broadcasts events to multiple sinks.
type MultiplexTelemetry struct {
	Sinks []Telemetry
}

// Emit forwards the event to all registered sinks.
func (m MultiplexTelemetry) Emit(event Event) {
	for _, s := range m.Sinks {
		if s != nil {
			s.Emit(event)
		}
	}
}

// JSONFileTelemetry writes events as newline-delimited JSON to a file.
// This allows external tools to tail and process the stream in real-time.
type JSONFileTelemetry struct {
	path string
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewJSONFileTelemetry opens (or creates) the log file.
func NewJSONFileTelemetry(path string) (*JSONFileTelemetry, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONFileTelemetry{
		path: path,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes the JSON record.
func (j *JSONFileTelemetry) Emit(event Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.enc != nil {
		_ = j.enc.Encode(event)
	}
}

// Close releases the file handle.
func (j *JSONFileTelemetry) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

// ZapTelemetry emits events through a zap logger at debug level, which keeps
// every loop transition visible with --verbose and silent otherwise.
type ZapTelemetry struct {
	Logger *zap.Logger
}

// Emit logs the event.
func (t ZapTelemetry) Emit(event Event) {
	logger := t.Logger
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.String("session", event.SessionID),
		zap.String("turn", event.TurnID),
	}
	if event.Iteration > 0 {
		fields = append(fields, zap.Int("iteration", event.Iteration))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("meta", event.Metadata))
	}
	logger.Debug(event.Message, fields...)
}
