package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/lexcodex/codebuddy/framework"
)

// Log appends an approval decision. SQLiteStore satisfies
// framework.AuditLogger so the approval history survives restarts.
func (s *SQLiteStore) Log(ctx context.Context, record framework.ApprovalRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	details := "{}"
	if len(record.Details) > 0 {
		data, err := json.Marshal(record.Details)
		if err != nil {
			return err
		}
		details = string(data)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO approvals (request_id, timestamp, tool, operation, description, risk, approved, details)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RequestID,
		record.Timestamp.UTC(),
		record.Tool,
		record.Operation,
		record.Description,
		int(record.Risk),
		record.Approved,
		details,
	)
	return err
}

// Query returns matching approval records, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, filter framework.AuditQuery) ([]framework.ApprovalRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, filter.Tool)
	}
	if filter.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, filter.Operation)
	}
	if filter.MinRisk != nil {
		where = append(where, "risk >= ?")
		args = append(args, int(*filter.MinRisk))
	}
	if filter.Approved != nil {
		where = append(where, "approved = ?")
		args = append(args, *filter.Approved)
	}
	if !filter.TimeStart.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.TimeStart.UTC())
	}
	if !filter.TimeEnd.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.TimeEnd.UTC())
	}
	query := `SELECT request_id, timestamp, tool, operation, description, risk, approved, details FROM approvals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []framework.ApprovalRecord
	for rows.Next() {
		var (
			rec                             framework.ApprovalRecord
			requestID, op, desc, rawDetails sql.NullString
			risk                            int
		)
		if err := rows.Scan(&requestID, &rec.Timestamp, &rec.Tool, &op, &desc, &risk, &rec.Approved, &rawDetails); err != nil {
			return nil, err
		}
		rec.RequestID = requestID.String
		rec.Operation = op.String
		rec.Description = desc.String
		rec.Risk = framework.RiskLevel(risk)
		if rawDetails.Valid && rawDetails.String != "" && rawDetails.String != "{}" {
			if err := json.Unmarshal([]byte(rawDetails.String), &rec.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
