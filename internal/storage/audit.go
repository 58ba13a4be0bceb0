package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NicholasJacob1990/litgo/internal/audit"
)

// AuditEvent is one row of the append-only audit_events table. Payload is the
// full recommend or feedback record as JSON.
type AuditEvent struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	CaseID    string          `json:"case_id"`
	LawyerID  string          `json:"lawyer_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// insertRecommendTx appends a recommend audit row inside the caller's
// transaction. The table is immutable.
func insertRecommendTx(ctx context.Context, tx pgx.Tx, rec audit.RecommendRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: marshal recommend audit: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO audit_events (kind, case_id, lawyer_id, payload, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		audit.KindRecommend, rec.CaseID, rec.LawyerID, payload, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("storage: insert recommend audit: %w", err)
	}
	return nil
}

// insertFeedbackTx appends a feedback audit row inside the caller's transaction.
func insertFeedbackTx(ctx context.Context, tx pgx.Tx, fb audit.FeedbackRecord) error {
	payload, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("storage: marshal feedback audit: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO audit_events (kind, case_id, lawyer_id, payload, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		audit.KindFeedback, fb.CaseID, fb.LawyerID, payload, fb.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("storage: insert feedback audit: %w", err)
	}
	return nil
}

// ListAuditEvents returns the audit trail for a case in insertion order,
// optionally filtered by kind.
func (db *DB) ListAuditEvents(ctx context.Context, caseID, kind string) ([]AuditEvent, error) {
	query := `SELECT id, kind, case_id, lawyer_id, payload, created_at
	          FROM audit_events WHERE case_id = $1`
	args := []any{caseID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += ` ORDER BY id`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit events %s: %w", caseID, err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.CaseID, &e.LawyerID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
