package framework

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ApprovalRecord is one entry in the approval history. Records are copied
// on the way in and out so callers can never mutate the log.
type ApprovalRecord struct {
	Timestamp   time.Time              `json:"timestamp"`
	RequestID   string                 `json:"request_id"`
	Tool        string                 `json:"tool"`
	Operation   string                 `json:"operation"`
	Description string                 `json:"description"`
	Risk        RiskLevel              `json:"risk"`
	Approved    bool                   `json:"approved"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// AuditLogger defines the approval history backend.
type AuditLogger interface {
	Log(ctx context.Context, record ApprovalRecord) error
	Query(ctx context.Context, filter AuditQuery) ([]ApprovalRecord, error)
}

// AuditQuery filters audit entries. Zero fields match everything.
type AuditQuery struct {
	Tool      string
	Operation string
	MinRisk   *RiskLevel
	Approved  *bool
	TimeStart time.Time
	TimeEnd   time.Time
}

// InMemoryAuditLogger appends records to a bounded buffer.
type InMemoryAuditLogger struct {
	mu     sync.RWMutex
	buffer []ApprovalRecord
	limit  int
}

// NewInMemoryAuditLogger builds a default logger.
func NewInMemoryAuditLogger(limit int) *InMemoryAuditLogger {
	if limit == 0 {
		limit = 2048
	}
	return &InMemoryAuditLogger{
		buffer: make([]ApprovalRecord, 0, limit),
		limit:  limit,
	}
}

// Log appends the record to the buffer.
func (l *InMemoryAuditLogger) Log(_ context.Context, record ApprovalRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	record.Details = copyDetails(record.Details)
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buffer) == l.limit {
		l.buffer = l.buffer[1:]
	}
	l.buffer = append(l.buffer, record)
	return nil
}

// Query filters based on the supplied query.
func (l *InMemoryAuditLogger) Query(_ context.Context, filter AuditQuery) ([]ApprovalRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var result []ApprovalRecord
	for _, record := range l.buffer {
		if filter.Tool != "" && record.Tool != filter.Tool {
			continue
		}
		if filter.Operation != "" && record.Operation != filter.Operation {
			continue
		}
		if filter.MinRisk != nil && record.Risk < *filter.MinRisk {
			continue
		}
		if filter.Approved != nil && record.Approved != *filter.Approved {
			continue
		}
		if !filter.TimeStart.IsZero() && record.Timestamp.Before(filter.TimeStart) {
			continue
		}
		if !filter.TimeEnd.IsZero() && record.Timestamp.After(filter.TimeEnd) {
			continue
		}
		record.Details = copyDetails(record.Details)
		result = append(result, record)
	}
	return result, nil
}

func copyDetails(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// AuditStore exposes a read API for servers or dashboards.
type AuditStore struct {
	logger AuditLogger
}

// NewAuditStore builds the store.
func NewAuditStore(logger AuditLogger) *AuditStore {
	return &AuditStore{logger: logger}
}

// Query proxies the request.
func (s *AuditStore) Query(ctx context.Context, filter AuditQuery) ([]ApprovalRecord, error) {
	if s.logger == nil {
		return nil, errors.New("audit logger missing")
	}
	return s.logger.Query(ctx, filter)
}
